package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/portalkeeper/portalkeeper/internal/server/upstream"
	"github.com/portalkeeper/portalkeeper/pkg/api"
)

// ObtainToken обрабатывает POST /api/v1/{org}/account/token
// Пересылает учетные данные в identity backend и превращает полученный
// bearer токен в подписанные cookies.
func (h *ProxyHandler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	var req api.ObtainTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		h.sendError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	resp, err := org.Upstream.PostForm(ctx, upstream.UserAuthToken(org.Config.Slug),
		url.Values{
			"username": {req.Username},
			"password": {req.Password},
		},
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	if shouldSetCookies(resp) {
		var tokenResp api.TokenResponse
		if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
			h.logger.ErrorContext(ctx, "unparseable token response",
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

// shouldSetCookies reports whether the reply carries a real session token.
// Besides 2xx this covers one special case: HTTP 401 with is_active true
// means an existing user who has not completed verification yet; the agent
// still needs the session cookies to drive the verification flow.
func shouldSetCookies(resp *upstream.Response) bool {
	if resp.OK() {
		return true
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}
	var body api.TokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return false
	}
	return body.IsActive && body.Key != ""
}
