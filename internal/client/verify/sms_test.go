package verify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/identity"
	"github.com/portalkeeper/portalkeeper/internal/client/session"
	"github.com/portalkeeper/portalkeeper/internal/client/storage/memory"
	"github.com/portalkeeper/portalkeeper/internal/models"
)

var cred = api.Credential{Value: "T1", Session: true}

func newSMSFixture(t *testing.T, proxy http.HandlerFunc) (*SMSService, *identity.Store) {
	t.Helper()

	srv := httptest.NewServer(proxy)
	t.Cleanup(srv.Close)

	durable := memory.New()
	ephemeral := memory.New()
	t.Cleanup(func() {
		_ = durable.Close()
		_ = ephemeral.Close()
	})

	store := identity.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewSMSService(api.NewClient(srv.URL, "mobifi"),
		session.New(durable, ephemeral, "mobifi"), store, logger)

	return svc, store
}

func TestHasActiveCode(t *testing.T) {
	svc, _ := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"active":true}`))
	})

	active, err := svc.HasActiveCode(context.Background(), cred)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestHasActiveCode_Plain404MeansNoCode(t *testing.T) {
	svc, _ := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
	})

	active, err := svc.HasActiveCode(context.Background(), cred)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestHasActiveCode_InvalidOrganization404(t *testing.T) {
	svc, _ := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Invalid organization","response_code":"INVALID_ORGANIZATION"}`))
	})

	_, err := svc.HasActiveCode(context.Background(), cred)
	assert.ErrorIs(t, err, ErrInvalidOrganization)
}

func TestRequestCode_SetsCooldownAndSentFlag(t *testing.T) {
	calls := 0
	svc, _ := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"cooldown":30}`))
	})

	now := time.Now()
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, svc.RequestCode(ctx, cred, ""))
	assert.True(t, svc.CodeSent(ctx))
	assert.Equal(t, 1, calls)

	// повторный запрос внутри cooldown отклоняется локально
	err := svc.RequestCode(ctx, cred, "")
	assert.ErrorIs(t, err, ErrCooldownActive)
	assert.Equal(t, 1, calls, "no network request during cooldown")

	// после истечения cooldown запрос проходит
	now = now.Add(31 * time.Second)
	require.NoError(t, svc.RequestCode(ctx, cred, ""))
	assert.Equal(t, 2, calls)
}

func TestRequestCode_RejectsBadPhoneNumber(t *testing.T) {
	svc, _ := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid numbers must not reach the proxy")
	})

	err := svc.RequestCode(context.Background(), cred, "not-a-number")
	assert.Error(t, err)
}

func TestSubmitCode_VerifiesAndAuthorizes(t *testing.T) {
	svc, store := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"username":"tester","is_active":true,"is_verified":true,"method":"mobile_phone","radius_user_token":"RT1"}`))
	})

	require.NoError(t, store.Commit(models.UserIdentity{
		Username: "tester",
		Method:   "mobile_phone",
		IsActive: true,
	}, models.StatePendingVerification))

	snap, err := svc.SubmitCode(context.Background(), cred, "123456")
	require.NoError(t, err)

	assert.True(t, snap.User.IsVerified)
	assert.Equal(t, "RT1", snap.User.RadiusUserToken)
	assert.Equal(t, models.StateAuthorized, snap.State)
}

func TestSubmitCode_RejectsMalformedCode(t *testing.T) {
	svc, _ := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("malformed codes must not reach the proxy")
	})

	_, err := svc.SubmitCode(context.Background(), cred, "12")
	assert.Error(t, err)
}

func TestSubmitCode_BackendRejection(t *testing.T) {
	svc, store := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Invalid code."}`))
	})

	require.NoError(t, store.Commit(models.UserIdentity{
		Username: "tester", Method: "mobile_phone", IsActive: true,
	}, models.StatePendingVerification))

	_, err := svc.SubmitCode(context.Background(), cred, "999999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid code.")
	// состояние не изменилось
	assert.Equal(t, models.StatePendingVerification, store.Current().State)
}

func TestChangePhone(t *testing.T) {
	var gotNumber string
	svc, store := newSMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PhoneNumber string `json:"phone_number"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotNumber = req.PhoneNumber
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, store.Commit(models.UserIdentity{
		Username: "tester", Method: "mobile_phone", IsActive: true, IsVerified: true,
		PhoneNumber: "+15551230000",
	}, models.StatePendingVerification))

	require.NoError(t, svc.ChangePhone(context.Background(), cred, "+15551239999"))

	assert.Equal(t, "+15551239999", gotNumber)
	snap := store.Current()
	assert.Equal(t, "+15551239999", snap.User.PhoneNumber)
	assert.False(t, snap.User.IsVerified)
	assert.Equal(t, models.StatePendingVerification, snap.State)
}
