// Package verify implements the two account verification flows: one-time
// SMS codes and hosted card payments.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/identity"
	"github.com/portalkeeper/portalkeeper/internal/client/session"
	"github.com/portalkeeper/portalkeeper/internal/models"
	"github.com/portalkeeper/portalkeeper/internal/validation"
	pkgapi "github.com/portalkeeper/portalkeeper/pkg/api"
)

var (
	// ErrCooldownActive - повторная отправка кода запрошена до истечения
	// cooldown; запрос в сеть не уходил
	ErrCooldownActive = errors.New("sms resend cooldown is still active")

	// ErrInvalidOrganization - backend сообщил, что организация не
	// настроена для SMS верификации
	ErrInvalidOrganization = errors.New("organization is not configured for sms verification")
)

// SMSService управляет жизненным циклом одноразового SMS кода
type SMSService struct {
	apiClient *api.Client
	resolver  *session.Resolver
	identity  *identity.Store
	logger    *slog.Logger

	// cooldown gate живет на клиенте: до его истечения resend
	// отклоняется без сетевого запроса
	cooldownUntil time.Time
	mu            sync.Mutex
	now           func() time.Time
}

// NewSMSService создает сервис SMS верификации
func NewSMSService(apiClient *api.Client, resolver *session.Resolver, store *identity.Store, logger *slog.Logger) *SMSService {
	return &SMSService{
		apiClient: apiClient,
		resolver:  resolver,
		identity:  store,
		logger:    logger,
		now:       time.Now,
	}
}

// HasActiveCode reports whether an SMS code is already in flight for the
// user. A plain 404 from the backend means "no active code"; a 404 whose
// body carries the INVALID_ORGANIZATION sentinel is a real configuration
// error. Older backends answer the plain 404 for both, which is why the
// sentinel check sits on the body and not the status.
func (s *SMSService) HasActiveCode(ctx context.Context, cred api.Credential) (bool, error) {
	resp, err := s.apiClient.PhoneTokenStatus(ctx, cred)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			if apiErr.ResponseCode == pkgapi.ResponseCodeInvalidOrganization {
				return false, fmt.Errorf("%w: %s", ErrInvalidOrganization, apiErr.Detail)
			}
			return false, nil
		}
		return false, fmt.Errorf("phone token status failed: %w", err)
	}
	return resp.Active, nil
}

// RequestCode asks the backend to send a one-time code. Resends inside the
// cooldown window are rejected locally. phoneNumber is optional: empty
// means the number already on the account.
func (s *SMSService) RequestCode(ctx context.Context, cred api.Credential, phoneNumber string) error {
	if phoneNumber != "" {
		if err := validation.ValidatePhoneNumber(phoneNumber); err != nil {
			return fmt.Errorf("invalid phone number: %w", err)
		}
	}

	s.mu.Lock()
	if remaining := s.cooldownUntil.Sub(s.now()); remaining > 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s left", ErrCooldownActive, remaining.Round(time.Second))
	}
	s.mu.Unlock()

	resp, err := s.apiClient.CreatePhoneToken(ctx, cred, pkgapi.CreatePhoneTokenRequest{
		PhoneNumber: phoneNumber,
	})
	if err != nil {
		return fmt.Errorf("failed to request sms code: %w", err)
	}

	if resp.Cooldown > 0 {
		s.mu.Lock()
		s.cooldownUntil = s.now().Add(time.Duration(resp.Cooldown) * time.Second)
		s.mu.Unlock()
	}

	if err := s.resolver.MarkPhoneTokenSent(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to persist sent flag", slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "sms code requested", slog.Int("cooldown", resp.Cooldown))
	return nil
}

// CodeSent reports whether a code was already requested in this session.
func (s *SMSService) CodeSent(ctx context.Context) bool {
	return s.resolver.PhoneTokenSent(ctx)
}

// SubmitCode verifies the user-entered code. On success the identity is
// refreshed from the backend reply and the lifecycle moves to authorized.
func (s *SMSService) SubmitCode(ctx context.Context, cred api.Credential, code string) (identity.Snapshot, error) {
	if err := validation.ValidateCode(code); err != nil {
		return s.identity.Current(), fmt.Errorf("invalid code: %w", err)
	}

	resp, err := s.apiClient.VerifyPhoneToken(ctx, cred, code)
	if err != nil {
		return s.identity.Current(), fmt.Errorf("code verification failed: %w", err)
	}

	snap := s.identity.Current()
	user := snap.User
	user.IsActive = resp.IsActive
	user.IsVerified = resp.IsVerified
	if resp.Username != "" {
		user.Username = resp.Username
	}
	if resp.PhoneNumber != "" {
		user.PhoneNumber = resp.PhoneNumber
	}
	if resp.RadiusUserToken != "" {
		user.RadiusUserToken = resp.RadiusUserToken
	}

	if err := s.identity.Commit(user, models.StateAuthorized); err != nil {
		return s.identity.Current(), err
	}

	s.logger.InfoContext(ctx, "phone number verified", slog.String("username", user.Username))
	return s.identity.Current(), nil
}

// ChangePhone updates the phone number on the account and resets the
// sent flag so the next code goes to the new number.
func (s *SMSService) ChangePhone(ctx context.Context, cred api.Credential, phoneNumber string) error {
	if err := validation.ValidatePhoneNumber(phoneNumber); err != nil {
		return fmt.Errorf("invalid phone number: %w", err)
	}

	if err := s.apiClient.ChangePhoneNumber(ctx, cred, phoneNumber); err != nil {
		return fmt.Errorf("phone change failed: %w", err)
	}

	snap := s.identity.Current()
	user := snap.User
	user.PhoneNumber = phoneNumber
	user.IsVerified = false
	if err := s.identity.Commit(user, models.StatePendingVerification); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "phone number changed")
	return nil
}
