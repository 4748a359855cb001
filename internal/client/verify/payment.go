package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/identity"
	"github.com/portalkeeper/portalkeeper/internal/config"
	"github.com/portalkeeper/portalkeeper/internal/models"
	pkgapi "github.com/portalkeeper/portalkeeper/pkg/api"
)

// Message types the hosted payment page emits while the user pays.
const (
	MessageShowLoader   = "showLoader"
	MessageSetHeight    = "setHeight"
	MessagePaymentClose = "paymentClose"
)

// Message is one event from the embedded payment page.
type Message struct {
	Origin string
	Type   string
	Height int
}

// Outcome of handling one payment message.
type Outcome struct {
	// Ignored is set for messages from a foreign origin and for unknown
	// message types.
	Ignored bool
	// ShowLoader/Height pass UI hints through to the caller.
	ShowLoader bool
	Height     int
	// Status is the terminal payment status after paymentClose, one of
	// the api.PaymentStatus constants. Empty for non-terminal messages.
	Status string
	// RepeatLogin means the payment completed but access was granted
	// before it, so the captive-portal login has to be redone.
	RepeatLogin bool
}

var (
	// ErrPaymentFailed - платеж завершился неудачей или его статус
	// не удалось распознать
	ErrPaymentFailed = errors.New("payment failed")

	// ErrPaymentPending - платеж так и остался в waiting после всех
	// повторных опросов
	ErrPaymentPending = errors.New("payment still pending")
)

// PaymentFlow отслеживает hosted payment страницу и доводит платеж до
// терминального статуса
type PaymentFlow struct {
	apiClient *api.Client
	identity  *identity.Store
	settings  config.Settings
	logger    *slog.Logger

	// trustedOrigin - origin платежной страницы; сообщения с других
	// origin игнорируются
	trustedOrigin string

	pollInterval time.Duration
	maxPolls     int
}

// NewPaymentFlow создает payment flow для одной организации
func NewPaymentFlow(apiClient *api.Client, store *identity.Store, settings config.Settings, trustedOrigin string, logger *slog.Logger) *PaymentFlow {
	return &PaymentFlow{
		apiClient:     apiClient,
		identity:      store,
		settings:      settings,
		trustedOrigin: trustedOrigin,
		logger:        logger,
		pollInterval:  2 * time.Second,
		maxPolls:      5,
	}
}

// HandleMessage processes one event from the payment page. Anything not
// coming from a trusted origin is dropped without side effects.
func (f *PaymentFlow) HandleMessage(ctx context.Context, cred api.Credential, msg Message) (Outcome, error) {
	if !f.trustedMessageOrigin(msg.Origin) {
		f.logger.WarnContext(ctx, "payment message from untrusted origin dropped",
			slog.String("origin", msg.Origin))
		return Outcome{Ignored: true}, nil
	}

	switch msg.Type {
	case MessageShowLoader:
		return Outcome{ShowLoader: true}, nil
	case MessageSetHeight:
		return Outcome{Height: msg.Height}, nil
	case MessagePaymentClose:
		return f.resolveClose(ctx, cred)
	default:
		return Outcome{Ignored: true}, nil
	}
}

// trustedMessageOrigin accepts the configured embedding origin and the
// origin of the hosted payment page itself: провайдеры шлют paymentClose
// с собственного домена, не с домена портала.
func (f *PaymentFlow) trustedMessageOrigin(origin string) bool {
	if origin == f.trustedOrigin {
		return true
	}
	if po := originOf(f.identity.Current().User.PaymentURL); po != "" && origin == po {
		return true
	}
	return false
}

// originOf returns scheme://host of rawURL, or "" when it has no usable
// origin.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// resolveClose looks the payment status up after the page closed. A
// waiting status is re-polled a bounded number of times; anything the
// backend reports that is not success/waiting counts as failed.
func (f *PaymentFlow) resolveClose(ctx context.Context, cred api.Credential) (Outcome, error) {
	snap := f.identity.Current()
	paymentID := paymentIDFromURL(snap.User.PaymentURL)
	if paymentID == "" {
		return Outcome{}, fmt.Errorf("%w: no payment in flight", ErrPaymentFailed)
	}

	for attempt := 0; ; attempt++ {
		resp, err := f.apiClient.PaymentStatus(ctx, cred, paymentID)
		if err != nil {
			return Outcome{}, fmt.Errorf("payment status lookup failed: %w", err)
		}

		switch resp.Status {
		case pkgapi.PaymentStatusSuccess:
			return f.succeed(ctx, snap)
		case pkgapi.PaymentStatusWaiting:
			if attempt >= f.maxPolls {
				return Outcome{Status: pkgapi.PaymentStatusWaiting}, ErrPaymentPending
			}
			select {
			case <-ctx.Done():
				return Outcome{}, ctx.Err()
			case <-time.After(f.pollInterval):
			}
		case pkgapi.PaymentStatusFailed:
			return Outcome{Status: pkgapi.PaymentStatusFailed}, ErrPaymentFailed
		default:
			f.logger.WarnContext(ctx, "unknown payment status treated as failed",
				slog.String("status", resp.Status))
			return Outcome{Status: pkgapi.PaymentStatusFailed}, ErrPaymentFailed
		}
	}
}

// succeed commits the verified identity. When the payment needed network
// access to complete, the gateway session that granted it is now stale:
// the user must be logged out of the gateway and logged in again.
func (f *PaymentFlow) succeed(ctx context.Context, snap identity.Snapshot) (Outcome, error) {
	user := snap.User
	user.IsVerified = true
	user.PaymentURL = ""

	outcome := Outcome{Status: pkgapi.PaymentStatusSuccess}
	target := models.StateAuthorized

	if f.settings.PaymentRequiresInternet {
		// доступ был открыт только ради платежа: шлюзовую сессию надо
		// закрыть и создать заново
		user.MustLogin = false
		user.MustLogout = true
		user.RepeatLogin = true
		outcome.RepeatLogin = true
		target = models.StatePendingCaptivePortal
	} else {
		// доступ уже есть, нужен только обычный повторный login
		user.MustLogin = true
	}

	if err := f.identity.Commit(user, target); err != nil {
		return Outcome{}, err
	}

	f.logger.InfoContext(ctx, "payment verified",
		slog.Bool("repeat_login", outcome.RepeatLogin))
	return outcome, nil
}

// paymentIDFromURL extracts the payment id (last path segment) from the
// hosted payment URL.
func paymentIDFromURL(paymentURL string) string {
	if paymentURL == "" {
		return ""
	}
	u, err := url.Parse(paymentURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
