package portal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/session"
	"github.com/portalkeeper/portalkeeper/internal/client/storage/memory"
	"github.com/portalkeeper/portalkeeper/internal/config"
	"github.com/portalkeeper/portalkeeper/internal/models"
)

var testUser = models.UserIdentity{
	Username:        "tester",
	RadiusUserToken: "RT1",
	IsActive:        true,
	IsVerified:      true,
}

// собирает bridge с fake proxy (список сессий) и fake gateway
func newBridge(t *testing.T, proxy, gateway http.HandlerFunc) (*Bridge, *session.Resolver, string) {
	t.Helper()

	proxySrv := httptest.NewServer(proxy)
	t.Cleanup(proxySrv.Close)
	gatewaySrv := httptest.NewServer(gateway)
	t.Cleanup(gatewaySrv.Close)

	durable := memory.New()
	ephemeral := memory.New()
	t.Cleanup(func() {
		_ = durable.Close()
		_ = ephemeral.Close()
	})
	resolver := session.New(durable, ephemeral, "mobifi")

	cfg := config.CaptivePortal{
		LoginForm: config.LoginForm{
			Method:           "post",
			Action:           gatewaySrv.URL + "/login",
			MacaddrParamName: "macaddr",
			UsernameField:    "auth_user",
			PasswordField:    "auth_pass",
			AdditionalFields: []config.FormField{{Name: "zone", Value: "default"}},
		},
		LogoutForm: config.LogoutForm{
			Method:          "post",
			Action:          gatewaySrv.URL + "/logout",
			SessionIDField:  "id",
			LogoutBySession: true,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bridge, err := NewBridge(api.NewClient(proxySrv.URL, "mobifi"), resolver, cfg, logger)
	require.NoError(t, err)

	return bridge, resolver, gatewaySrv.URL
}

func noSessions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`[]`))
}

func TestLogin_SubmitsFormAndAuthorizes(t *testing.T) {
	var gotForm map[string]string
	bridge, _, _ := newBridge(t, noSessions, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"auth_user": r.PostForm.Get("auth_user"),
			"auth_pass": r.PostForm.Get("auth_pass"),
			"zone":      r.PostForm.Get("zone"),
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><title>Success</title></html>`))
	})

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)

	assert.Equal(t, PhaseAuthorized, result.Phase)
	assert.Equal(t, "tester", gotForm["auth_user"])
	// шлюзу уходит radius_user_token, не пароль пользователя
	assert.Equal(t, "RT1", gotForm["auth_pass"])
	assert.Equal(t, "default", gotForm["zone"])
}

func TestLogin_GatewayRejectsWithReply(t *testing.T) {
	bridge, _, _ := newBridge(t, noSessions, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.Redirect(w, r, "/portal?reply=Invalid+credentials", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><title>Portal</title></html>`))
	})

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)

	assert.Equal(t, PhaseRejected, result.Phase)
	assert.Equal(t, "Invalid credentials", result.Reply)
}

func TestLogin_CapturesMacaddrFromRedirect(t *testing.T) {
	bridge, resolver, _ := newBridge(t, noSessions, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.Redirect(w, r, "/granted?macaddr=AA%3ABB%3ACC%3ADD%3AEE%3AFF", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><title>Welcome</title></html>`))
	})

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)

	assert.Equal(t, PhaseAuthorized, result.Phase)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", result.Macaddr)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", resolver.Macaddr(context.Background()))
}

func TestLogin_ErrorPageTitleMeansRejection(t *testing.T) {
	bridge, _, _ := newBridge(t, noSessions, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><head><title>404 Not Found</title></head></html>`))
	})

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)

	assert.Equal(t, PhaseRejected, result.Phase)
	assert.Equal(t, "404 Not Found", result.Reply)
}

func TestLogin_SkippedWhenSessionAlreadyOpen(t *testing.T) {
	gatewayCalled := false
	bridge, resolver, _ := newBridge(t,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "true", r.URL.Query().Get("is_open"))
			assert.Equal(t, "AA:BB:CC:DD:EE:FF", r.URL.Query().Get("macaddr"))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[{"session_id":"s1","calling_station_id":"AA:BB:CC:DD:EE:FF","start_time":"2024-01-01T10:00:00Z","session_time":60,"input_octets":1,"output_octets":2}]`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			gatewayCalled = true
		})

	require.NoError(t, resolver.SetMacaddr(context.Background(), "AA:BB:CC:DD:EE:FF"))

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)

	assert.Equal(t, PhaseBound, result.Phase)
	assert.False(t, gatewayCalled, "gateway must not see a second login")
}

func TestLogin_UnknownMacSubmitsUnconditionally(t *testing.T) {
	gatewayCalled := false
	bridge, _, _ := newBridge(t,
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no session check before the gateway reported a mac address")
		},
		func(w http.ResponseWriter, r *http.Request) {
			gatewayCalled = true
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<html><title>Welcome</title></html>`))
		})

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)

	assert.Equal(t, PhaseAuthorized, result.Phase)
	assert.True(t, gatewayCalled)
}

func TestLogin_UnreachableGatewayIsNotARejection(t *testing.T) {
	bridge, _, gatewayURL := newBridge(t, noSessions, func(w http.ResponseWriter, r *http.Request) {})
	_ = gatewayURL

	// указываем на закрытый порт
	bridge.cfg.LoginForm.Action = "http://127.0.0.1:1/login"

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthorized, result.Phase)
}

func TestLogin_NoGatewayConfigured(t *testing.T) {
	bridge, _, _ := newBridge(t, noSessions, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway must not be called")
	})
	bridge.cfg.LoginForm.Action = ""

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthorized, result.Phase)
}

func TestLogout_SubmitsSessionID(t *testing.T) {
	var gotSessionID string
	bridge, _, _ := newBridge(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[{"session_id":"s42","calling_station_id":"AA:BB:CC:DD:EE:FF","start_time":"2024-01-01T10:00:00Z","session_time":60,"input_octets":1,"output_octets":2}]`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotSessionID = r.PostForm.Get("id")
			w.WriteHeader(http.StatusOK)
		})

	err := bridge.Logout(context.Background(), api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)
	assert.Equal(t, "s42", gotSessionID)
}

func TestLogout_NoOpenSession(t *testing.T) {
	gatewayCalled := false
	bridge, _, _ := newBridge(t, noSessions, func(w http.ResponseWriter, r *http.Request) {
		gatewayCalled = true
	})

	err := bridge.Logout(context.Background(), api.Credential{Value: "T1", Session: true})
	require.NoError(t, err)
	assert.False(t, gatewayCalled)
}

func TestLoginAndLogout_SingleExchangeAtATime(t *testing.T) {
	bridge, _, _ := newBridge(t,
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no backend call expected while an exchange is running")
		},
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no gateway call expected while an exchange is running")
		})

	// имитируем висящий обмен
	bridge.exchanging.Store(true)

	result, err := bridge.Login(context.Background(), testUser, api.Credential{Value: "T1", Session: true})
	require.ErrorIs(t, err, ErrExchangeInProgress)
	assert.Equal(t, PhaseIdle, result.Phase)

	err = bridge.Logout(context.Background(), api.Credential{Value: "T1", Session: true})
	require.ErrorIs(t, err, ErrExchangeInProgress)

	// завершенный обмен снимает блокировку
	bridge.exchanging.Store(false)
	_, err = bridge.Login(context.Background(), models.UserIdentity{Username: "tester"}, api.Credential{})
	assert.NotErrorIs(t, err, ErrExchangeInProgress)
}
