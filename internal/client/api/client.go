// Package api implements the agent's HTTP client against the session proxy.
// All requests and responses are JSON; proxy error bodies are surfaced as
// *Error so callers can branch on status and response_code.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/portalkeeper/portalkeeper/pkg/api"
)

// Error is a non-2xx reply from the proxy (or the identity backend behind
// it, passed through unchanged).
type Error struct {
	StatusCode   int
	Detail       string
	ResponseCode string
	Body         []byte
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

// Credential carries the resolved token into a request. Session tokens are
// raw and go out as a bearer header; durable tokens are the proxy's signed
// cookie value and go back the same way they arrived.
type Credential struct {
	Value   string
	Session bool
}

// Client представляет HTTP клиент для взаимодействия с session proxy
type Client struct {
	httpClient *http.Client
	baseURL    string
	orgSlug    string
}

// NewClient создает новый API клиент для одной организации
func NewClient(baseURL, orgSlug string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		orgSlug: orgSlug,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TokenResult is the login reply plus the signed cookie the proxy set.
// ErrorDetail is filled from the body on non-2xx statuses.
type TokenResult struct {
	Response     *api.TokenResponse
	SignedCookie string
	ErrorDetail  string
	StatusCode   int
}

// ObtainToken выполняет аутентификацию пользователя. Не-2xx ответ не всегда
// ошибка: backend отвечает 401 с is_active=true для существующего, но еще
// не верифицированного пользователя, поэтому тело и cookie возвращаются
// вместе со статусом и caller решает сам.
func (c *Client) ObtainToken(ctx context.Context, req api.ObtainTokenRequest) (*TokenResult, error) {
	path := fmt.Sprintf("/api/v1/%s/account/token", c.orgSlug)
	return c.tokenRequest(ctx, path, req)
}

// Register создает новый аккаунт. Ответ разбирается так же, как у
// ObtainToken: успешная регистрация сразу выдает токен и cookie.
func (c *Client) Register(ctx context.Context, req api.RegistrationRequest) (*TokenResult, error) {
	path := fmt.Sprintf("/api/v1/%s/account", c.orgSlug)
	return c.tokenRequest(ctx, path, req)
}

// tokenRequest sends a JSON POST to a token-issuing endpoint and captures
// the signed session cookie alongside the parsed body.
func (c *Client) tokenRequest(ctx context.Context, path string, payload any) (*TokenResult, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var tokenResp api.TokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := &TokenResult{Response: &tokenResp, StatusCode: resp.StatusCode}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == c.orgSlug+"_auth_token" {
			result.SignedCookie = cookie.Value
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			result.ErrorDetail = errResp.Detail
		}
	}
	return result, nil
}

// ValidateToken проверяет stored токен у identity backend'а
func (c *Client) ValidateToken(ctx context.Context, cred Credential) (*api.ValidateTokenResponse, error) {
	var resp api.ValidateTokenResponse
	path := fmt.Sprintf("/api/v1/%s/account/token/validate", c.orgSlug)
	body := api.ValidateTokenRequest{Token: cred.Value, Session: cred.Session}

	if err := c.do(ctx, requestSpec{method: http.MethodPost, path: path, body: body}, &resp, nil); err != nil {
		return nil, fmt.Errorf("validate token request failed: %w", err)
	}
	return &resp, nil
}

// SessionFilter задает фильтры для списка RADIUS сессий
type SessionFilter struct {
	OpenOnly bool
	Macaddr  string
	Page     int
}

// SessionPage is one page of accounting sessions. HasNext reports whether
// the backend advertised a continuation via the Link header.
type SessionPage struct {
	Sessions []api.RadiusSession
	HasNext  bool
}

// RadiusSessions возвращает страницу RADIUS accounting сессий
func (c *Client) RadiusSessions(ctx context.Context, cred Credential, filter SessionFilter) (*SessionPage, error) {
	query := url.Values{"token": {cred.Value}}
	if cred.Session {
		query.Set("session", "true")
	}
	if filter.OpenOnly {
		query.Set("is_open", "true")
	}
	if filter.Macaddr != "" {
		query.Set("macaddr", filter.Macaddr)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}

	var sessions []api.RadiusSession
	var header http.Header
	path := fmt.Sprintf("/api/v1/%s/account/session?%s", c.orgSlug, query.Encode())

	if err := c.do(ctx, requestSpec{method: http.MethodGet, path: path}, &sessions, &header); err != nil {
		return nil, fmt.Errorf("session list request failed: %w", err)
	}

	return &SessionPage{
		Sessions: sessions,
		HasNext:  linkHasNext(header.Get("Link")),
	}, nil
}

// CreatePhoneToken просит backend отправить одноразовый SMS код
func (c *Client) CreatePhoneToken(ctx context.Context, cred Credential, req api.CreatePhoneTokenRequest) (*api.CreatePhoneTokenResponse, error) {
	var resp api.CreatePhoneTokenResponse
	path := fmt.Sprintf("/api/v1/%s/account/phone/token", c.orgSlug)

	if err := c.do(ctx, requestSpec{method: http.MethodPost, path: path, body: req, cred: &cred}, &resp, nil); err != nil {
		return nil, fmt.Errorf("create phone token request failed: %w", err)
	}
	return &resp, nil
}

// PhoneTokenStatus проверяет, есть ли у пользователя активный SMS код
func (c *Client) PhoneTokenStatus(ctx context.Context, cred Credential) (*api.PhoneTokenStatusResponse, error) {
	var resp api.PhoneTokenStatusResponse
	path := fmt.Sprintf("/api/v1/%s/account/phone/token/status", c.orgSlug)

	if err := c.do(ctx, requestSpec{method: http.MethodGet, path: path, cred: &cred}, &resp, nil); err != nil {
		return nil, fmt.Errorf("phone token status request failed: %w", err)
	}
	return &resp, nil
}

// VerifyPhoneToken отправляет введенный пользователем SMS код
func (c *Client) VerifyPhoneToken(ctx context.Context, cred Credential, code string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	path := fmt.Sprintf("/api/v1/%s/account/phone/verify", c.orgSlug)
	body := api.VerifyPhoneTokenRequest{Token: cred.Value, Session: cred.Session, Code: code}

	if err := c.do(ctx, requestSpec{method: http.MethodPost, path: path, body: body}, &resp, nil); err != nil {
		return nil, fmt.Errorf("verify phone token request failed: %w", err)
	}
	return &resp, nil
}

// ChangePhoneNumber меняет номер телефона пользователя
func (c *Client) ChangePhoneNumber(ctx context.Context, cred Credential, phoneNumber string) error {
	path := fmt.Sprintf("/api/v1/%s/account/phone/change", c.orgSlug)
	body := api.PhoneChangeRequest{PhoneNumber: phoneNumber}

	if err := c.do(ctx, requestSpec{method: http.MethodPost, path: path, body: body, cred: &cred}, nil, nil); err != nil {
		return fmt.Errorf("phone change request failed: %w", err)
	}
	return nil
}

// ChangePassword меняет пароль текущего пользователя. Токен уходит в
// теле, как у validate: durable токен proxy распишет сам.
func (c *Client) ChangePassword(ctx context.Context, cred Credential, currentPassword, newPassword string) error {
	path := fmt.Sprintf("/api/v1/%s/account/password/change", c.orgSlug)
	body := api.PasswordChangeRequest{
		Token:           cred.Value,
		Session:         cred.Session,
		CurrentPassword: currentPassword,
		NewPassword1:    newPassword,
		NewPassword2:    newPassword,
	}

	if err := c.do(ctx, requestSpec{method: http.MethodPost, path: path, body: body}, nil, nil); err != nil {
		return fmt.Errorf("password change request failed: %w", err)
	}
	return nil
}

// ResetPassword просит backend отправить письмо для сброса пароля
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	path := fmt.Sprintf("/api/v1/%s/account/password/reset", c.orgSlug)
	body := api.PasswordResetRequest{Email: email}

	if err := c.do(ctx, requestSpec{method: http.MethodPost, path: path, body: body}, nil, nil); err != nil {
		return fmt.Errorf("password reset request failed: %w", err)
	}
	return nil
}

// PaymentStatus возвращает терминальный статус платежа
func (c *Client) PaymentStatus(ctx context.Context, cred Credential, paymentID string) (*api.PaymentStatusResponse, error) {
	var resp api.PaymentStatusResponse
	path := fmt.Sprintf("/api/v1/%s/payment/status/%s", c.orgSlug, url.PathEscape(paymentID))

	if err := c.do(ctx, requestSpec{method: http.MethodGet, path: path, cred: &cred}, &resp, nil); err != nil {
		return nil, fmt.Errorf("payment status request failed: %w", err)
	}
	return &resp, nil
}

type requestSpec struct {
	method string
	path   string
	body   any
	cred   *Credential
}

// do выполняет HTTP запрос
func (c *Client) do(ctx context.Context, spec requestSpec, result any, header *http.Header) error {
	var bodyReader io.Reader
	if spec.body != nil {
		jsonData, err := json.Marshal(spec.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, c.baseURL+spec.path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if spec.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if spec.cred != nil {
		// session токен - raw, уходит bearer'ом; durable - подписанное
		// значение cookie, возвращается той же дорогой
		if spec.cred.Session {
			req.Header.Set("Authorization", "Bearer "+spec.cred.Value)
		} else {
			req.AddCookie(&http.Cookie{
				Name:  c.orgSlug + "_auth_token",
				Value: spec.cred.Value,
			})
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if header != nil {
		*header = resp.Header
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode, Body: respBody}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Detail = errResp.Detail
			apiErr.ResponseCode = errResp.ResponseCode
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// linkHasNext разбирает RFC 5988 Link header на предмет rel="next"
func linkHasNext(link string) bool {
	if link == "" {
		return false
	}
	for _, part := range strings.Split(link, ",") {
		if strings.Contains(part, `rel="next"`) {
			return true
		}
	}
	return false
}
