package verify

import (
	"context"
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
	"github.com/portalkeeper/portalkeeper/internal/config"
	"github.com/portalkeeper/portalkeeper/internal/models"
)

const trustedOrigin = "https://pay.example.com"

func newPaymentFixture(t *testing.T, settings config.Settings, proxy http.HandlerFunc) (*PaymentFlow, *identity.Store) {
	t.Helper()

	srv := httptest.NewServer(proxy)
	t.Cleanup(srv.Close)

	store := identity.New()
	require.NoError(t, store.Commit(models.UserIdentity{
		Username:   "tester",
		Method:     "bank_card",
		PaymentURL: trustedOrigin + "/pay/P1",
		IsActive:   true,
	}, models.StatePendingPayment))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	flow := NewPaymentFlow(api.NewClient(srv.URL, "mobifi"), store, settings, trustedOrigin, logger)
	flow.pollInterval = time.Millisecond

	return flow, store
}

func TestHandleMessage_UntrustedOriginDropped(t *testing.T) {
	flow, _ := newPaymentFixture(t, config.Settings{}, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("untrusted messages must not trigger requests")
	})

	outcome, err := flow.HandleMessage(context.Background(), cred, Message{
		Origin: "https://evil.example.com",
		Type:   MessagePaymentClose,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Ignored)
}

func TestHandleMessage_PaymentPageOriginTrusted(t *testing.T) {
	// страница оплаты живет не на портале: ее собственный origin тоже
	// считается доверенным
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	t.Cleanup(srv.Close)

	store := identity.New()
	require.NoError(t, store.Commit(models.UserIdentity{
		Username:   "tester",
		Method:     "bank_card",
		PaymentURL: "https://psp.example.net/pay/P1",
		IsActive:   true,
	}, models.StatePendingPayment))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	flow := NewPaymentFlow(api.NewClient(srv.URL, "mobifi"), store, config.Settings{}, "https://portal.example.com", logger)
	flow.pollInterval = time.Millisecond

	outcome, err := flow.HandleMessage(context.Background(), cred, Message{
		Origin: "https://psp.example.net",
		Type:   MessagePaymentClose,
	})
	require.NoError(t, err)
	assert.False(t, outcome.Ignored)
	assert.Equal(t, "success", outcome.Status)

	outcome, err = flow.HandleMessage(context.Background(), cred, Message{
		Origin: "https://psp.example.org",
		Type:   MessagePaymentClose,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Ignored)
}

func TestHandleMessage_UIHints(t *testing.T) {
	flow, _ := newPaymentFixture(t, config.Settings{}, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("ui hints must not trigger requests")
	})

	outcome, err := flow.HandleMessage(context.Background(), cred, Message{Origin: trustedOrigin, Type: MessageShowLoader})
	require.NoError(t, err)
	assert.True(t, outcome.ShowLoader)

	outcome, err = flow.HandleMessage(context.Background(), cred, Message{Origin: trustedOrigin, Type: MessageSetHeight, Height: 620})
	require.NoError(t, err)
	assert.Equal(t, 620, outcome.Height)
}

func TestPaymentClose_Success(t *testing.T) {
	flow, store := newPaymentFixture(t, config.Settings{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/mobifi/payment/status/P1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	outcome, err := flow.HandleMessage(context.Background(), cred, Message{Origin: trustedOrigin, Type: MessagePaymentClose})
	require.NoError(t, err)

	assert.Equal(t, "success", outcome.Status)
	assert.False(t, outcome.RepeatLogin)

	snap := store.Current()
	assert.True(t, snap.User.IsVerified)
	assert.Empty(t, snap.User.PaymentURL)
	assert.True(t, snap.User.MustLogin, "a fresh normal login is still required")
	assert.False(t, snap.User.MustLogout)
	assert.Equal(t, models.StateAuthorized, snap.State)
}

func TestPaymentClose_SuccessWithRepeatLogin(t *testing.T) {
	flow, store := newPaymentFixture(t,
		config.Settings{PaymentRequiresInternet: true},
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"success"}`))
		})

	outcome, err := flow.HandleMessage(context.Background(), cred, Message{Origin: trustedOrigin, Type: MessagePaymentClose})
	require.NoError(t, err)

	// доступ был выдан до платежа: шлюзовую сессию надо пересоздать
	assert.True(t, outcome.RepeatLogin)

	snap := store.Current()
	assert.True(t, snap.User.IsVerified)
	assert.True(t, snap.User.MustLogout)
	assert.True(t, snap.User.RepeatLogin)
	assert.False(t, snap.User.MustLogin)
	assert.Equal(t, models.StatePendingCaptivePortal, snap.State)
}

func TestPaymentClose_WaitingThenSuccess(t *testing.T) {
	calls := 0
	flow, _ := newPaymentFixture(t, config.Settings{}, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		if calls < 3 {
			_, _ = w.Write([]byte(`{"status":"waiting"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	outcome, err := flow.HandleMessage(context.Background(), cred, Message{Origin: trustedOrigin, Type: MessagePaymentClose})
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
	assert.Equal(t, 3, calls)
}

func TestPaymentClose_WaitingForever(t *testing.T) {
	flow, store := newPaymentFixture(t, config.Settings{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"waiting"}`))
	})
	flow.maxPolls = 2

	_, err := flow.HandleMessage(context.Background(), cred, Message{Origin: trustedOrigin, Type: MessagePaymentClose})
	assert.ErrorIs(t, err, ErrPaymentPending)
	assert.Equal(t, models.StatePendingPayment, store.Current().State)
}

func TestPaymentClose_Failed(t *testing.T) {
	flow, store := newPaymentFixture(t, config.Settings{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"failed","message":"Card declined."}`))
	})

	_, err := flow.HandleMessage(context.Background(), cred, Message{Origin: trustedOrigin, Type: MessagePaymentClose})
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.False(t, store.Current().User.IsVerified)
}

func TestPaymentClose_UnknownStatusTreatedAsFailed(t *testing.T) {
	flow, _ := newPaymentFixture(t, config.Settings{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	})

	_, err := flow.HandleMessage(context.Background(), cred, Message{Origin: trustedOrigin, Type: MessagePaymentClose})
	assert.ErrorIs(t, err, ErrPaymentFailed)
}

func TestPaymentIDFromURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "plain", url: "https://pay.example.com/pay/P1", expected: "P1"},
		{name: "trailing slash", url: "https://pay.example.com/pay/P1/", expected: "P1"},
		{name: "empty", url: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, paymentIDFromURL(tt.url))
		})
	}
}
