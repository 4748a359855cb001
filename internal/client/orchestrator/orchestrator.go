// Package orchestrator drives the agent's authentication flow end to end.
// Each Run starts from whatever the stored state allows, revalidates it,
// settles pending gateway work and reports the single next action the
// caller has to take.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/auth"
	"github.com/portalkeeper/portalkeeper/internal/client/identity"
	"github.com/portalkeeper/portalkeeper/internal/client/portal"
	"github.com/portalkeeper/portalkeeper/internal/client/session"
	"github.com/portalkeeper/portalkeeper/internal/client/verify"
	"github.com/portalkeeper/portalkeeper/internal/models"
	pkgapi "github.com/portalkeeper/portalkeeper/pkg/api"
)

// Action is the next step the user (or the CLI) has to take.
type Action string

const (
	// ActionNone - доступ открыт, делать ничего не надо
	ActionNone Action = "none"
	// ActionLogin - нужен логин
	ActionLogin Action = "login"
	// ActionVerifySMS - нужен SMS код
	ActionVerifySMS Action = "verify_sms"
	// ActionPay - нужно завершить платеж
	ActionPay Action = "pay"
)

// Status is the outcome of one orchestrator run.
type Status struct {
	State      models.Lifecycle
	User       models.UserIdentity
	NextAction Action
	// Message is a human-readable reason, e.g. a gateway rejection reply
	// or a 403 detail from the backend.
	Message string
	// PaymentURL is set when NextAction is ActionPay.
	PaymentURL string
}

// Orchestrator связывает validator, bridge и верификационные flows
type Orchestrator struct {
	auth     *auth.Service
	bridge   *portal.Bridge
	sms      *verify.SMSService
	identity *identity.Store
	resolver *session.Resolver
	logger   *slog.Logger
}

// New создает orchestrator
func New(authSvc *auth.Service, bridge *portal.Bridge, sms *verify.SMSService, store *identity.Store, resolver *session.Resolver, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		auth:     authSvc,
		bridge:   bridge,
		sms:      sms,
		identity: store,
		resolver: resolver,
		logger:   logger,
	}
}

// Login аутентифицируется и сразу прогоняет flow до следующего шага
func (o *Orchestrator) Login(ctx context.Context, username, password string, rememberMe bool) (Status, error) {
	if _, err := o.auth.Login(ctx, username, password, rememberMe); err != nil {
		return Status{}, err
	}
	return o.Run(ctx)
}

// Register создает аккаунт и сразу продолжает как после login
func (o *Orchestrator) Register(ctx context.Context, req pkgapi.RegistrationRequest, rememberMe bool) (Status, error) {
	if _, err := o.auth.Register(ctx, req, rememberMe); err != nil {
		return Status{}, err
	}
	return o.Run(ctx)
}

// ChangePassword меняет пароль текущего пользователя
func (o *Orchestrator) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return o.auth.ChangePassword(ctx, currentPassword, newPassword)
}

// ResetPassword просит выслать письмо для сброса пароля
func (o *Orchestrator) ResetPassword(ctx context.Context, email string) error {
	return o.auth.ResetPassword(ctx, email)
}

// LastUsername returns the last logged-in username for prompt prefill.
func (o *Orchestrator) LastUsername(ctx context.Context) string {
	return o.resolver.LastUsername(ctx)
}

// Logout закрывает шлюзовую сессию и стирает локальное состояние.
// Шлюзовой logout - best effort: отсутствие сети не мешает локальному.
func (o *Orchestrator) Logout(ctx context.Context) error {
	if cred, err := o.Credential(ctx); err == nil {
		if err := o.bridge.Logout(ctx, cred); err != nil {
			o.logger.WarnContext(ctx, "gateway logout failed", slog.Any("error", err))
		}
	}
	return o.auth.Logout(ctx)
}

// Run revalidates the stored session and advances the flow as far as it
// can without user input.
func (o *Orchestrator) Run(ctx context.Context) (Status, error) {
	snap, err := o.auth.Validate(ctx)
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return Status{State: snap.State, NextAction: ActionLogin, Message: "login required"}, nil
	case errors.Is(err, auth.ErrInvalidToken):
		return Status{State: o.identity.Current().State, NextAction: ActionLogin, Message: err.Error()}, nil
	case err != nil:
		return Status{}, err
	}

	cred, err := o.Credential(ctx)
	if err != nil {
		return Status{State: snap.State, NextAction: ActionLogin, Message: "login required"}, nil
	}

	if snap.User.MustLogout {
		if err := o.handleForcedLogout(ctx, snap, cred); err != nil {
			return Status{}, err
		}
		snap = o.identity.Current()
	}

	return o.advance(ctx, snap, cred)
}

// handleForcedLogout closes the stale gateway session a completed payment
// left behind. With RepeatLogin set the flow continues into a fresh
// gateway login, otherwise it ends logged out.
func (o *Orchestrator) handleForcedLogout(ctx context.Context, snap identity.Snapshot, cred api.Credential) error {
	if err := o.bridge.Logout(ctx, cred); err != nil {
		o.logger.WarnContext(ctx, "forced gateway logout failed", slog.Any("error", err))
	}

	user := snap.User
	user.MustLogout = false
	if !user.RepeatLogin {
		return o.auth.Logout(ctx)
	}

	user.RepeatLogin = false
	if err := o.identity.Commit(user, snap.State); err != nil {
		return fmt.Errorf("failed to clear logout flags: %w", err)
	}
	return nil
}

func (o *Orchestrator) advance(ctx context.Context, snap identity.Snapshot, cred api.Credential) (Status, error) {
	user := snap.User

	switch snap.State {
	case models.StateAuthorized:
		if user.MustLogin {
			// платеж завершился, не трогая шлюзовую сессию; учетные
			// данные надо обновить обычным login
			user.MustLogin = false
			if err := o.identity.Commit(user, snap.State); err != nil {
				return Status{}, err
			}
			return Status{
				State:      snap.State,
				User:       user,
				NextAction: ActionLogin,
				Message:    "log in again to refresh your session",
			}, nil
		}
		return Status{State: snap.State, User: user, NextAction: ActionNone}, nil

	case models.StatePendingVerification:
		// код отправляется автоматически один раз за сессию, и только
		// если у пользователя еще нет активного кода: sent flag живет в
		// ephemeral slot, свежий процесс его не видит
		if !o.sms.CodeSent(ctx) {
			active, err := o.sms.HasActiveCode(ctx, cred)
			if err != nil {
				o.logger.WarnContext(ctx, "active code check failed", slog.Any("error", err))
			} else if !active {
				if err := o.sms.RequestCode(ctx, cred, ""); err != nil &&
					!errors.Is(err, verify.ErrCooldownActive) {
					o.logger.WarnContext(ctx, "automatic sms request failed", slog.Any("error", err))
				}
			}
		}
		return Status{
			State:      snap.State,
			User:       user,
			NextAction: ActionVerifySMS,
			Message:    "enter the code sent to " + user.PhoneNumber,
		}, nil

	case models.StatePendingPayment:
		return Status{
			State:      snap.State,
			User:       user,
			NextAction: ActionPay,
			Message:    "complete the payment to activate the account",
			PaymentURL: user.PaymentURL,
		}, nil

	case models.StatePendingCaptivePortal:
		result, err := o.bridge.Login(ctx, user, cred)
		if err != nil {
			return Status{}, fmt.Errorf("gateway exchange failed: %w", err)
		}
		if result.Phase == portal.PhaseRejected {
			// отказ шлюза заканчивается чистым logged-out состоянием
			if err := o.auth.Logout(ctx); err != nil {
				o.logger.WarnContext(ctx, "logout after gateway rejection failed", slog.Any("error", err))
			}
			return Status{
				State:      o.identity.Current().State,
				NextAction: ActionLogin,
				Message:    result.Reply,
			}, nil
		}

		if err := o.identity.Commit(user, models.StateAuthorized); err != nil {
			return Status{}, err
		}
		return Status{State: models.StateAuthorized, User: user, NextAction: ActionNone}, nil

	default:
		return Status{State: snap.State, NextAction: ActionLogin, Message: "login required"}, nil
	}
}

// Sessions returns the current page of RADIUS accounting sessions.
func (o *Orchestrator) Sessions(ctx context.Context, page int) (*api.SessionPage, error) {
	cred, err := o.Credential(ctx)
	if err != nil {
		return nil, auth.ErrNotAuthenticated
	}
	return o.bridge.Sessions(ctx, cred, page)
}

// Credential resolves the stored token into a request credential.
func (o *Orchestrator) Credential(ctx context.Context) (api.Credential, error) {
	token, err := o.resolver.Resolve(ctx)
	if err != nil {
		return api.Credential{}, err
	}
	return api.Credential{Value: token.Value, Session: token.Session}, nil
}
