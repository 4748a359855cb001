// Package portal implements the captive-portal gateway exchange.
//
// The gateway expects a plain HTML form POST from the client device. The
// bridge performs that POST with a dedicated http.Client that owns its own
// cookie jar and follows the gateway's redirect chain, then inspects where
// the chain landed: a "reply" query parameter carries a rejection message,
// a MAC address parameter is captured for session filtering, and an error
// page title marks a dead gateway. All of the inspection is best effort -
// a gateway that answers garbage is treated as having accepted the login,
// matching how a real device behaves behind a half-broken portal.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/session"
	"github.com/portalkeeper/portalkeeper/internal/config"
	"github.com/portalkeeper/portalkeeper/internal/models"
)

// Phase is the state of one gateway exchange.
type Phase int

const (
	// PhaseIdle - обмен не начинался
	PhaseIdle Phase = iota
	// PhaseValidating - проверяем наличие открытых сессий
	PhaseValidating
	// PhaseBound - открытая сессия уже есть, логин не нужен
	PhaseBound
	// PhaseLoginSubmitted - форма отправлена шлюзу
	PhaseLoginSubmitted
	// PhaseAuthorized - шлюз принял логин
	PhaseAuthorized
	// PhaseRejected - шлюз отверг логин
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseBound:
		return "bound"
	case PhaseLoginSubmitted:
		return "login_submitted"
	case PhaseAuthorized:
		return "authorized"
	case PhaseRejected:
		return "rejected"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Result is the outcome of a gateway exchange.
type Result struct {
	Phase Phase
	// Reply is the gateway's rejection message, verbatim from the final
	// URL's reply parameter.
	Reply string
	// Macaddr is the MAC address the gateway reported, if any.
	Macaddr string
}

// ErrExchangeInProgress is returned when a gateway exchange is started
// while another one is still running.
var ErrExchangeInProgress = errors.New("gateway exchange already in progress")

// Bridge выполняет обмен с captive portal шлюзом
type Bridge struct {
	apiClient *api.Client
	resolver  *session.Resolver
	cfg       config.CaptivePortal
	logger    *slog.Logger
	gateway   *http.Client

	// exchanging держит не больше одного обмена со шлюзом за раз:
	// параллельные form POST путают учет сессий на стороне портала
	exchanging atomic.Bool
}

// NewBridge создает bridge с выделенным http.Client: у обмена со шлюзом
// своя cookie jar, не смешанная с запросами к proxy.
func NewBridge(apiClient *api.Client, resolver *session.Resolver, cfg config.CaptivePortal, logger *slog.Logger) (*Bridge, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Bridge{
		apiClient: apiClient,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
		gateway: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Login runs the gateway login exchange. The form is submitted only when
// the backend reports zero open sessions for this device: an open session
// means the gateway already granted access and a second login would either
// no-op or confuse it.
func (b *Bridge) Login(ctx context.Context, user models.UserIdentity, cred api.Credential) (Result, error) {
	if b.cfg.LoginForm.Action == "" {
		// организация без captive portal шлюза
		return Result{Phase: PhaseAuthorized}, nil
	}
	if user.RadiusUserToken == "" {
		return Result{Phase: PhaseIdle}, fmt.Errorf("no radius user token to submit")
	}
	if !b.exchanging.CompareAndSwap(false, true) {
		return Result{Phase: PhaseIdle}, ErrExchangeInProgress
	}
	defer b.exchanging.Store(false)

	if mac := b.resolver.Macaddr(ctx); mac == "" {
		// первая ассоциация: шлюз еще не сообщал MAC, сессий для этого
		// устройства быть не может
		b.logger.InfoContext(ctx, "no known mac address, submitting first-time login")
	} else {
		open, err := b.hasOpenSession(ctx, cred)
		if err != nil {
			b.logger.WarnContext(ctx, "open session check failed, submitting login anyway",
				slog.Any("error", err))
		} else if open {
			b.logger.InfoContext(ctx, "open session found, skipping gateway login")
			return Result{Phase: PhaseBound, Macaddr: mac}, nil
		}
	}

	form := url.Values{}
	form.Set(b.cfg.LoginForm.UsernameField, user.Username)
	form.Set(b.cfg.LoginForm.PasswordField, user.RadiusUserToken)
	for _, field := range b.cfg.LoginForm.AdditionalFields {
		form.Set(field.Name, field.Value)
	}

	finalURL, body, err := b.submit(ctx, b.cfg.LoginForm.Method, b.cfg.LoginForm.Action, form)
	if err != nil {
		// недоступный шлюз не считается отказом: устройство может уже
		// быть в сети, а портал просто не отвечает
		b.logger.WarnContext(ctx, "gateway unreachable", slog.Any("error", err))
		return Result{Phase: PhaseAuthorized}, nil
	}

	return b.inspect(ctx, finalURL, body), nil
}

// Logout mirrors the login exchange with the logout form. When the gateway
// logs out by session id, the current open session is looked up first.
func (b *Bridge) Logout(ctx context.Context, cred api.Credential) error {
	if b.cfg.LogoutForm.Action == "" {
		return nil
	}
	if !b.exchanging.CompareAndSwap(false, true) {
		return ErrExchangeInProgress
	}
	defer b.exchanging.Store(false)

	form := url.Values{}
	for _, field := range b.cfg.LogoutForm.AdditionalFields {
		form.Set(field.Name, field.Value)
	}

	if b.cfg.LogoutForm.LogoutBySession {
		sessionID, err := b.openSessionID(ctx, cred)
		if err != nil {
			return fmt.Errorf("session lookup for logout: %w", err)
		}
		if sessionID == "" {
			// нечего закрывать
			return nil
		}
		form.Set(b.cfg.LogoutForm.SessionIDField, sessionID)
	}

	if _, _, err := b.submit(ctx, b.cfg.LogoutForm.Method, b.cfg.LogoutForm.Action, form); err != nil {
		// best effort: шлюз сам закроет сессию по таймауту
		b.logger.WarnContext(ctx, "gateway logout failed", slog.Any("error", err))
	}
	return nil
}

// Sessions returns one page of the device's accounting sessions.
func (b *Bridge) Sessions(ctx context.Context, cred api.Credential, page int) (*api.SessionPage, error) {
	return b.apiClient.RadiusSessions(ctx, cred, api.SessionFilter{Page: page})
}

// hasOpenSession reports whether the backend sees an open accounting
// session for this device. The stored MAC address narrows the check to
// this device when the gateway reported one.
func (b *Bridge) hasOpenSession(ctx context.Context, cred api.Credential) (bool, error) {
	page, err := b.apiClient.RadiusSessions(ctx, cred, api.SessionFilter{
		OpenOnly: true,
		Macaddr:  b.resolver.Macaddr(ctx),
	})
	if err != nil {
		return false, err
	}
	return len(page.Sessions) > 0, nil
}

func (b *Bridge) openSessionID(ctx context.Context, cred api.Credential) (string, error) {
	page, err := b.apiClient.RadiusSessions(ctx, cred, api.SessionFilter{
		OpenOnly: true,
		Macaddr:  b.resolver.Macaddr(ctx),
	})
	if err != nil {
		return "", err
	}
	if len(page.Sessions) == 0 {
		return "", nil
	}
	return page.Sessions[0].SessionID, nil
}

// submit sends the form and follows redirects; returns the final URL and
// up to 64KiB of the final body.
func (b *Bridge) submit(ctx context.Context, method, action string, form url.Values) (*url.URL, string, error) {
	if method == "" {
		method = http.MethodPost
	}

	var req *http.Request
	var err error
	if strings.EqualFold(method, http.MethodGet) {
		target := action
		if encoded := form.Encode(); encoded != "" {
			target += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to create gateway request: %w", err)
	}

	resp, err := b.gateway.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	return resp.Request.URL, string(body), nil
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// inspect derives the exchange outcome from where the redirect chain
// landed.
func (b *Bridge) inspect(ctx context.Context, finalURL *url.URL, body string) Result {
	result := Result{Phase: PhaseAuthorized}

	query := finalURL.Query()

	if mac := query.Get(b.cfg.LoginForm.MacaddrParamName); mac != "" {
		result.Macaddr = mac
		if err := b.resolver.SetMacaddr(ctx, mac); err != nil {
			b.logger.WarnContext(ctx, "failed to persist macaddr", slog.Any("error", err))
		}
	}

	if reply := query.Get("reply"); reply != "" {
		result.Phase = PhaseRejected
		result.Reply = reply
		b.logger.WarnContext(ctx, "gateway rejected login", slog.String("reply", reply))
		return result
	}

	if m := titleRe.FindStringSubmatch(body); m != nil && strings.Contains(m[1], "404") {
		result.Phase = PhaseRejected
		result.Reply = strings.TrimSpace(m[1])
		b.logger.WarnContext(ctx, "gateway answered with an error page",
			slog.String("title", result.Reply))
	}

	return result
}
