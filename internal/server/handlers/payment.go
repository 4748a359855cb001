package handlers

import (
	"net/http"

	"github.com/portalkeeper/portalkeeper/internal/server/upstream"
)

// PaymentStatus обрабатывает GET /api/v1/{org}/payment/status/{paymentId}
// Терминальный статус hosted payment flow. Токен приходит либо bearer'ом
// (уже plaintext), либо подписанным cookie (подпись снимается тут).
func (h *ProxyHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, ok := h.org(w, r)
	if !ok {
		return
	}

	paymentID := r.PathValue("paymentId")
	if paymentID == "" {
		h.sendError(w, "payment id is required", http.StatusBadRequest)
		return
	}

	token, ok := h.bearerOrCookie(r, org)
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	resp, err := org.Upstream.Get(ctx, upstream.PaymentStatus(org.Config.Slug, paymentID), nil,
		upstream.WithBearer(token),
		upstream.WithAcceptLanguage(r.Header.Get("Accept-Language")),
	)
	if err != nil {
		h.sendUpstreamUnavailable(w, r, err)
		return
	}

	h.forward(w, r, resp)
}
