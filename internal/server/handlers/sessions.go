package handlers

import (
	"net/http"
	"net/url"

	"github.com/portalkeeper/portalkeeper/internal/server/upstream"
)

// forwardedSessionParams are the accounting filters passed through to the
// identity backend. The token/session pair is consumed here and never
// forwarded.
var forwardedSessionParams = []string{"is_open", "macaddr", "page"}

// RadiusSessions обрабатывает GET /api/v1/{org}/account/session
// Проксирует список RADIUS accounting сессий; pagination continuation
// передается через заголовок Link без изменений.
func (h *ProxyHandler) RadiusSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	token := query.Get("token")
	if token == "" {
		h.sendError(w, "token is required", http.StatusBadRequest)
		return
	}
	if query.Get("session") != "true" {
		unsigned, err := org.Signer.Unsign(token)
		if err != nil {
			h.sendError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		token = unsigned
	}

	params := url.Values{}
	for _, name := range forwardedSessionParams {
		if v := query.Get(name); v != "" {
			params.Set(name, v)
		}
	}

	resp, err := org.Upstream.Get(ctx, upstream.UserRadiusSessions(org.Config.Slug), params,
		upstream.WithBearer(token),
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	if link := resp.Header.Get("Link"); link != "" {
		w.Header().Set("Link", link)
	}
	h.forward(w, r, resp)
}
