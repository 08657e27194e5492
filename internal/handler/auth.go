package handler

import (
	"net/http"

	"github.com/obot-platform/shopinstall/internal/nonce"
	"github.com/obot-platform/shopinstall/internal/signature"
)

// Auth starts an install.
// GET /auth?shop=<shop>&hmac=...
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ctx := nonce.WithHTTP(r.Context(), w, r)

	redirectURL, err := h.install.Initiate(ctx, query.Get("shop"), query.Get(signature.FieldHMAC) != "")
	if err != nil {
		h.handshakeError(w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// AuthCallback finishes an install and returns the token response.
// GET /auth/callback?shop=...&code=...&state=...&hmac=...
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := nonce.WithHTTP(r.Context(), w, r)

	body, err := h.install.Callback(ctx, r.URL.Query())
	if err != nil {
		h.handshakeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Options answers CORS preflights on the auth routes.
func (h *Handler) Options(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
