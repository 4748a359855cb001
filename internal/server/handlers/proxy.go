// Package handlers implements the proxy's HTTP surface. Each handler
// terminates an agent request, forwards it to the organization's identity
// backend and passes the backend's status and JSON body through unchanged;
// the only local processing is cookie signing/unsigning.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/portalkeeper/portalkeeper/internal/config"
	"github.com/portalkeeper/portalkeeper/internal/cookiesign"
	"github.com/portalkeeper/portalkeeper/internal/server/upstream"
	"github.com/portalkeeper/portalkeeper/pkg/api"
)

// Org bundles the per-organization collaborators the handlers need.
type Org struct {
	Config   *config.Organization
	Signer   *cookiesign.Signer
	Upstream *upstream.Client
}

// ProxyHandler serves the /api/v1/{org}/... endpoints.
type ProxyHandler struct {
	logger *slog.Logger
	orgs   map[string]*Org
}

// NewProxyHandler creates the proxy handler for the configured organizations.
func NewProxyHandler(logger *slog.Logger, orgs map[string]*Org) *ProxyHandler {
	return &ProxyHandler{
		logger: logger,
		orgs:   orgs,
	}
}

// org resolves the organization from the request path. Unknown slugs get a
// 404 with the backend's error shape so agents handle both identically.
func (h *ProxyHandler) org(w http.ResponseWriter, r *http.Request) (*Org, bool) {
	slug := r.PathValue("org")
	org, ok := h.orgs[slug]
	if !ok {
		h.logger.WarnContext(r.Context(), "unknown organization slug", slog.String("slug", slug))
		h.sendJSON(w, api.ErrorResponse{Detail: "Not found."}, http.StatusNotFound)
		return nil, false
	}
	return org, true
}

// sendJSON пишет ответ в формате JSON
func (h *ProxyHandler) sendJSON(w http.ResponseWriter, payload any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError пишет ответ с ошибкой
func (h *ProxyHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, api.ErrorResponse{Detail: message}, statusCode)
}

// sendUpstreamUnavailable is the uniform reply for transport failures
// against the identity backend. The error is logged, the agent only ever
// sees a generic body.
func (h *ProxyHandler) sendUpstreamUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "identity backend unreachable", slog.Any("error", err))
	h.sendJSON(w, api.ErrorResponse{
		Detail:       "Internal server error",
		ResponseCode: api.ResponseCodeInternalServerError,
	}, http.StatusInternalServerError)
}

// forward passes an upstream reply through unchanged. Non-2xx replies are
// logged with status and body for operability.
func (h *ProxyHandler) forward(w http.ResponseWriter, r *http.Request, resp *upstream.Response) {
	if !resp.OK() {
		h.logger.WarnContext(r.Context(), "identity backend error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(resp.Body)),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Error("failed to write response", slog.Any("error", err))
	}
}

// stripAuthToken removes the refreshed auth_token field the backend includes
// in some replies: it must never reach the agent in plaintext responses
// because the signed cookie is the only sanctioned transport for it.
func stripAuthToken(body []byte) []byte {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return body
	}
	if _, ok := payload["auth_token"]; !ok {
		return body
	}
	delete(payload, "auth_token")
	cleaned, err := json.Marshal(payload)
	if err != nil {
		return body
	}
	return cleaned
}

// cookieToken reads and unsigns the organization's auth cookie.
func (h *ProxyHandler) cookieToken(r *http.Request, org *Org) (string, error) {
	cookie, err := r.Cookie(org.Config.Slug + "_auth_token")
	if err != nil {
		return "", err
	}
	return org.Signer.Unsign(cookie.Value)
}

// setSessionCookies sets the signed auth-token and username cookies.
func (h *ProxyHandler) setSessionCookies(w http.ResponseWriter, org *Org, token, username string) error {
	signedToken, err := org.Signer.Sign(token)
	if err != nil {
		return err
	}
	signedUsername, err := org.Signer.Sign(username)
	if err != nil {
		return err
	}

	maxAge := int(cookiesign.CookieMaxAge.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     org.Config.Slug + "_auth_token",
		Value:    signedToken,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     org.Config.Slug + "_username",
		Value:    signedUsername,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}
