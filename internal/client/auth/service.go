// Package auth implements the agent's login, logout and token validation
// flows against the session proxy.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/identity"
	"github.com/portalkeeper/portalkeeper/internal/client/session"
	"github.com/portalkeeper/portalkeeper/internal/models"
	pkgapi "github.com/portalkeeper/portalkeeper/pkg/api"
)

var (
	// ErrNotAuthenticated означает, что stored токена нет - агент не залогинен
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidToken означает, что backend отверг stored токен;
	// локальное состояние уже очищено
	ErrInvalidToken = errors.New("stored token rejected by the identity backend")
)

// Service предоставляет функции авторизации
type Service struct {
	apiClient *api.Client
	resolver  *session.Resolver
	identity  *identity.Store
	logger    *slog.Logger
}

// NewService создает новый сервис авторизации
func NewService(apiClient *api.Client, resolver *session.Resolver, store *identity.Store, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		resolver:  resolver,
		identity:  store,
		logger:    logger,
	}
}

// Login obtains a token from the identity backend and persists it into the
// slot matching rememberMe. A 401 with is_active=true in the body is a real
// but unverified account and counts as a successful login.
func (s *Service) Login(ctx context.Context, username, password string, rememberMe bool) (identity.Snapshot, error) {
	if username == "" {
		return identity.Snapshot{}, fmt.Errorf("username is required")
	}
	if password == "" {
		return identity.Snapshot{}, fmt.Errorf("password is required")
	}

	result, err := s.apiClient.ObtainToken(ctx, pkgapi.ObtainTokenRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return identity.Snapshot{}, fmt.Errorf("login failed: %w", err)
	}

	snap, err := s.acceptToken(ctx, result, username, rememberMe)
	if err != nil {
		return identity.Snapshot{}, fmt.Errorf("login failed: %w", err)
	}

	s.logger.InfoContext(ctx, "login succeeded",
		slog.String("username", snap.User.Username),
		slog.String("state", snap.State.String()),
		slog.Bool("remember_me", rememberMe),
	)
	return snap, nil
}

// Register creates a new account and logs it in with the issued token.
// An account that still needs SMS verification comes back as 401 with
// is_active=true and is accepted the same way Login does.
func (s *Service) Register(ctx context.Context, req pkgapi.RegistrationRequest, rememberMe bool) (identity.Snapshot, error) {
	if req.Username == "" {
		req.Username = req.Email
	}
	if req.Email == "" {
		return identity.Snapshot{}, fmt.Errorf("email is required")
	}
	if req.Password1 == "" {
		return identity.Snapshot{}, fmt.Errorf("password is required")
	}
	if req.Password1 != req.Password2 {
		return identity.Snapshot{}, fmt.Errorf("passwords do not match")
	}

	result, err := s.apiClient.Register(ctx, req)
	if err != nil {
		return identity.Snapshot{}, fmt.Errorf("registration failed: %w", err)
	}

	snap, err := s.acceptToken(ctx, result, req.Username, rememberMe)
	if err != nil {
		return identity.Snapshot{}, fmt.Errorf("registration failed: %w", err)
	}

	s.logger.InfoContext(ctx, "registration succeeded",
		slog.String("username", snap.User.Username),
		slog.String("state", snap.State.String()),
	)
	return snap, nil
}

// ChangePassword changes the current user's password on the identity
// backend. The stored token stays valid.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return fmt.Errorf("both the current and the new password are required")
	}

	token, err := s.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoToken) {
			return ErrNotAuthenticated
		}
		return fmt.Errorf("token resolve failed: %w", err)
	}

	cred := api.Credential{Value: token.Value, Session: token.Session}
	if err := s.apiClient.ChangePassword(ctx, cred, currentPassword, newPassword); err != nil {
		return fmt.Errorf("password change failed: %w", err)
	}
	s.logger.InfoContext(ctx, "password changed")
	return nil
}

// ResetPassword asks the identity backend to mail a password reset link.
// Works without a stored token.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if err := s.apiClient.ResetPassword(ctx, email); err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}
	s.logger.InfoContext(ctx, "password reset requested", slog.String("email", email))
	return nil
}

// acceptToken persists a freshly issued token and commits the identity
// record it came with.
func (s *Service) acceptToken(ctx context.Context, result *api.TokenResult, fallbackUsername string, rememberMe bool) (identity.Snapshot, error) {
	resp := result.Response
	accepted := result.StatusCode >= 200 && result.StatusCode < 300
	if !accepted && result.StatusCode == http.StatusUnauthorized && resp.IsActive && resp.Key != "" {
		// существующий, но не верифицированный пользователь
		accepted = true
	}
	if !accepted {
		detail := result.ErrorDetail
		if detail == "" {
			detail = fmt.Sprintf("rejected with status %d", result.StatusCode)
		}
		return identity.Snapshot{}, errors.New(detail)
	}

	tokenValue := resp.Key
	if rememberMe {
		if result.SignedCookie == "" {
			return identity.Snapshot{}, fmt.Errorf("proxy did not issue a session cookie")
		}
		tokenValue = result.SignedCookie
	}
	if err := s.resolver.Save(ctx, tokenValue, rememberMe); err != nil {
		return identity.Snapshot{}, fmt.Errorf("failed to store token: %w", err)
	}

	user := models.UserIdentity{
		Username:        resp.Username,
		Email:           resp.Email,
		PhoneNumber:     resp.PhoneNumber,
		Method:          resp.Method,
		AuthToken:       resp.Key,
		RadiusUserToken: resp.RadiusUserToken,
		PaymentURL:      resp.PaymentURL,
		IsActive:        resp.IsActive,
		IsVerified:      resp.IsVerified,
	}
	if user.Username == "" {
		user.Username = fallbackUsername
	}

	if err := s.resolver.SaveUsername(ctx, user.Username); err != nil {
		s.logger.WarnContext(ctx, "failed to remember username", slog.Any("error", err))
	}

	if err := s.commit(user); err != nil {
		return identity.Snapshot{}, err
	}
	return s.identity.Current(), nil
}

// Validate revalidates the stored token against the identity backend.
//
// Revalidation is skipped while a captive-portal exchange or a card payment
// is in flight: the current record already carries a radius_user_token or a
// live payment_url and a round-trip would only race those flows. A body
// whose response_code is not the success sentinel fails the validation even
// under HTTP 200, and any failure - sentinel, HTTP error or an unreachable
// backend - wipes local state: a token is never retained after a validation
// it did not pass.
func (s *Service) Validate(ctx context.Context) (identity.Snapshot, error) {
	snap := s.identity.Current()
	if snap.User.RadiusUserToken != "" || snap.User.PendingCardPayment() {
		s.logger.DebugContext(ctx, "revalidation skipped", slog.String("state", snap.State.String()))
		return snap, nil
	}

	token, err := s.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoToken) {
			if !snap.User.IsEmpty() {
				// запись уже наполнена backend'ом в этом запуске,
				// токен для нее не обязателен
				return snap, nil
			}
			s.logout(ctx)
			return s.identity.Current(), ErrNotAuthenticated
		}
		return snap, fmt.Errorf("token resolve failed: %w", err)
	}

	resp, err := s.apiClient.ValidateToken(ctx, api.Credential{Value: token.Value, Session: token.Session})
	if err != nil {
		s.logout(ctx)

		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden && apiErr.Detail != "" {
			// 403 detail показывается пользователю дословно
			// (лимит трафика, исчерпанный план и т.п.)
			return s.identity.Current(), fmt.Errorf("%w: %s", ErrInvalidToken, apiErr.Detail)
		}
		return s.identity.Current(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if resp.ResponseCode != pkgapi.ResponseCodeValidationSuccessful {
		s.logger.WarnContext(ctx, "validation returned failure sentinel",
			slog.String("response_code", resp.ResponseCode))
		s.logout(ctx)
		return s.identity.Current(), ErrInvalidToken
	}

	user := models.UserIdentity{
		Username:        resp.Username,
		Email:           resp.Email,
		PhoneNumber:     resp.PhoneNumber,
		Method:          resp.Method,
		AuthToken:       resp.AuthToken,
		RadiusUserToken: resp.RadiusUserToken,
		PaymentURL:      resp.PaymentURL,
		IsActive:        resp.IsActive,
		IsVerified:      resp.IsVerified,
	}
	if user.AuthToken == "" && token.Session {
		user.AuthToken = token.Value
	}

	if err := s.commit(user); err != nil {
		return s.identity.Current(), err
	}
	return s.identity.Current(), nil
}

// Logout drops the stored token and resets the identity.
func (s *Service) Logout(ctx context.Context) error {
	s.logout(ctx)
	s.logger.InfoContext(ctx, "logged out")
	return nil
}

func (s *Service) logout(ctx context.Context) {
	if err := s.resolver.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear stored token", slog.Any("error", err))
	}
	s.identity.Reset()
}

// commit moves the lifecycle to the state the identity record calls for,
// holding the current state when the move is not a legal transition.
func (s *Service) commit(user models.UserIdentity) error {
	current := s.identity.Current().State
	target := desiredState(user)
	if _, err := models.Transition(current, target); err != nil {
		target = current
	}
	if err := s.identity.Commit(user, target); err != nil {
		return fmt.Errorf("identity update failed: %w", err)
	}
	return nil
}

// desiredState derives the lifecycle state a fresh identity record asks for.
func desiredState(user models.UserIdentity) models.Lifecycle {
	switch {
	case user.PendingCardPayment():
		return models.StatePendingPayment
	case !user.IsVerified && user.Method == pkgapi.MethodMobilePhone:
		return models.StatePendingVerification
	default:
		return models.StatePendingCaptivePortal
	}
}
