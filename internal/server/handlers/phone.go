package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/portalkeeper/portalkeeper/internal/server/upstream"
	"github.com/portalkeeper/portalkeeper/pkg/api"
)

// CreatePhoneToken обрабатывает POST /api/v1/{org}/account/phone/token
// Запрашивает отправку одноразового SMS кода. Аутентификация через
// bearer токен или подписанный auth cookie.
func (h *ProxyHandler) CreatePhoneToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	token, ok := h.bearerOrCookie(r, org)
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req api.CreatePhoneTokenRequest
	// body опционален: без phone_number код уходит на номер из профиля
	_ = json.NewDecoder(r.Body).Decode(&req)

	data := url.Values{}
	if req.PhoneNumber != "" {
		data.Set("phone_number", req.PhoneNumber)
	}

	resp, err := org.Upstream.PostForm(ctx, upstream.CreatePhoneToken(org.Config.Slug), data,
		upstream.WithBearer(token),
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	resp.Body = stripAuthToken(resp.Body)
	h.forward(w, r, resp)
}

// PhoneTokenStatus обрабатывает GET /api/v1/{org}/account/phone/token/status
// Ответ 404 пересылается как есть: агент сам решает, значит ли он
// "нет активного кода" или ошибку конфигурации.
func (h *ProxyHandler) PhoneTokenStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	token, ok := h.bearerOrCookie(r, org)
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	resp, err := org.Upstream.Get(ctx, upstream.PhoneTokenStatus(org.Config.Slug), nil,
		upstream.WithBearer(token),
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	h.forward(w, r, resp)
}

// VerifyPhoneToken обрабатывает POST /api/v1/{org}/account/phone/verify
func (h *ProxyHandler) VerifyPhoneToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	var req struct {
		Token   string `json:"token"`
		Code    string `json:"code"`
		Session bool   `json:"session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		h.sendError(w, "code is required", http.StatusBadRequest)
		return
	}

	token := req.Token
	if token == "" {
		cookieValue, err := h.cookieToken(r, org)
		if err != nil {
			h.sendError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		token = cookieValue
	} else if !req.Session {
		unsigned, err := org.Signer.Unsign(token)
		if err != nil {
			h.sendError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		token = unsigned
	}

	resp, err := org.Upstream.PostForm(ctx, upstream.VerifyPhoneToken(org.Config.Slug),
		url.Values{"code": {req.Code}},
		upstream.WithBearer(token),
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	resp.Body = stripAuthToken(resp.Body)
	h.forward(w, r, resp)
}

// ChangePhoneNumber обрабатывает POST /api/v1/{org}/account/phone/change
func (h *ProxyHandler) ChangePhoneNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	token, ok := h.bearerOrCookie(r, org)
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req api.PhoneChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PhoneNumber == "" {
		h.sendError(w, "phone_number is required", http.StatusBadRequest)
		return
	}

	resp, err := org.Upstream.PostForm(ctx, upstream.ChangePhoneNumber(org.Config.Slug),
		url.Values{"phone_number": {req.PhoneNumber}},
		upstream.WithBearer(token),
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	resp.Body = stripAuthToken(resp.Body)
	h.forward(w, r, resp)
}

// bearerOrCookie resolves the backend token either from an Authorization
// header (already plaintext) or from the signed auth cookie.
func (h *ProxyHandler) bearerOrCookie(r *http.Request, org *Org) (string, bool) {
	const bearerPrefix = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		token := strings.TrimSpace(auth[len(bearerPrefix):])
		if token != "" {
			return token, true
		}
	}
	token, err := h.cookieToken(r, org)
	if err != nil {
		return "", false
	}
	return token, true
}
