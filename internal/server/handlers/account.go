package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/portalkeeper/portalkeeper/internal/server/upstream"
	"github.com/portalkeeper/portalkeeper/pkg/api"
)

// Register обрабатывает POST /api/v1/{org}/account
// Метод верификации клиент не выбирает: он выводится из настроек
// организации, телефон принимается только когда включена SMS верификация.
// Успешная регистрация сразу получает подписанные session cookies, как
// обычный логин.
func (h *ProxyHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	var req api.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password1 == "" || req.Password2 == "" {
		h.sendError(w, "username, email and both passwords are required", http.StatusBadRequest)
		return
	}

	if org.Config.Settings.MobilePhoneVerification {
		req.Method = api.MethodMobilePhone
	} else {
		req.Method = api.MethodNone
		req.PhoneNumber = ""
	}
	if org.Config.Settings.Subscriptions && req.RequiresPayment {
		req.Method = api.MethodBankCard
	}
	req.RequiresPayment = false

	body, err := json.Marshal(req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal registration body", slog.Any("error", err))
		h.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp, err := org.Upstream.PostJSON(ctx, upstream.Registration(org.Config.Slug), body,
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	if shouldSetCookies(resp) {
		var tokenResp api.TokenResponse
		if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
			h.logger.ErrorContext(ctx, "unparseable registration response",
				slog.Int("status", resp.StatusCode), slog.Any("error", err))
			h.sendError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		username := tokenResp.Username
		if username == "" {
			username = req.Username
		}
		if err := h.setSessionCookies(w, org, tokenResp.Key, username); err != nil {
			h.logger.ErrorContext(ctx, "failed to sign session cookies", slog.Any("error", err))
			h.sendError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	h.forward(w, r, resp)
}

// ChangePassword обрабатывает POST /api/v1/{org}/account/password/change
// Токен приходит в теле, как у validate: durable cookie расписывается
// перед пересылкой.
func (h *ProxyHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	var req api.PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword1 == "" || req.NewPassword2 == "" {
		h.sendError(w, "current and new passwords are required", http.StatusBadRequest)
		return
	}

	token := req.Token
	if token != "" && !req.Session {
		unsigned, err := org.Signer.Unsign(token)
		if err != nil {
			h.logger.WarnContext(ctx, "rejecting unverifiable token cookie",
				slog.String("org", org.Config.Slug), slog.Any("error", err))
			token = ""
		} else {
			token = unsigned
		}
	}
	if token == "" {
		h.sendError(w, "Invalid Token", http.StatusUnauthorized)
		return
	}

	body, err := json.Marshal(map[string]string{
		"current_password": req.CurrentPassword,
		"new_password":     req.NewPassword1,
		"confirm_password": req.NewPassword2,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal password change body", slog.Any("error", err))
		h.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp, err := org.Upstream.PostJSON(ctx, upstream.PasswordChange(org.Config.Slug), body,
		upstream.WithBearer(token),
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	h.forward(w, r, resp)
}

// ResetPassword обрабатывает POST /api/v1/{org}/account/password/reset
// Единственный account endpoint без токена: пользователь как раз потерял
// доступ.
func (h *ProxyHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	var req api.PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		h.sendError(w, "email is required", http.StatusBadRequest)
		return
	}

	resp, err := org.Upstream.PostForm(ctx, upstream.PasswordReset(org.Config.Slug),
		url.Values{"email": {req.Email}},
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	h.forward(w, r, resp)
}
