package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/portalkeeper/portalkeeper/internal/server/upstream"
	"github.com/portalkeeper/portalkeeper/pkg/api"
)

// ValidateToken обрабатывает POST /api/v1/{org}/account/token/validate
// Session=false означает durable cookie: значение подписано сервером и
// подпись снимается перед пересылкой в identity backend.
func (h *ProxyHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	var req api.ValidateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		h.sendError(w, "token is required", http.StatusBadRequest)
		return
	}

	token := req.Token
	if !req.Session {
		unsigned, err := org.Signer.Unsign(token)
		if err != nil {
			// tampered or expired cookie: the agent must drop it
			h.logger.WarnContext(ctx, "rejecting unverifiable token cookie",
				slog.String("org", org.Config.Slug), slog.Any("error", err))
			h.sendJSON(w, api.ErrorResponse{
				ResponseCode: api.ResponseCodeInternalServerError,
			}, http.StatusUnauthorized)
			return
		}
		token = unsigned
	}

	resp, err := org.Upstream.PostForm(ctx, upstream.ValidateAuthToken(org.Config.Slug),
		url.Values{"token": {token}},
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	h.forward(w, r, resp)
}
