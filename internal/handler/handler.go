// Package handler implements the HTTP surface of the install service.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/obot-platform/shopinstall/internal/config"
	"github.com/obot-platform/shopinstall/internal/logger"
	"github.com/obot-platform/shopinstall/internal/metrics"
	"github.com/obot-platform/shopinstall/internal/nonce"
	"github.com/obot-platform/shopinstall/internal/service"
	"github.com/obot-platform/shopinstall/internal/shopify"
)

// Handler contains all HTTP handlers
type Handler struct {
	cfg     *config.Config
	install *service.InstallService
	states  nonce.Store
	metrics *metrics.Metrics
	log     *logger.Logger
}

// New creates a Handler. m may be nil, in which case /metrics is not served.
func New(cfg *config.Config, install *service.InstallService, states nonce.Store, m *metrics.Metrics, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		install: install,
		states:  states,
		metrics: m,
		log:     log,
	}
}

// JSON helper to write JSON responses
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error helper to write error responses
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// serializedError is the body for failures that are not a plain rejection.
// It carries enough of the underlying failure to debug from the caller side.
type serializedError struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Op         string `json:"op,omitempty"`
	Error      any    `json:"error,omitempty"`
}

// handshakeError writes the response for an error returned by the install
// service.
func (h *Handler) handshakeError(w http.ResponseWriter, err error) {
	var rej *service.Rejection
	if errors.As(err, &rej) {
		status := http.StatusForbidden
		if rej == service.ErrMissingParameters {
			status = http.StatusBadRequest
		}
		h.Error(w, status, rej.Message)
		return
	}

	body := serializedError{
		Type:       "error",
		Name:       "Error",
		Message:    err.Error(),
		StatusCode: http.StatusInternalServerError,
	}

	var storeErr *service.StoreError
	var upErr *service.UpstreamError
	switch {
	case errors.As(err, &storeErr):
		body.Name = "StoreFailure"
		body.Op = storeErr.Op
	case errors.As(err, &upErr):
		body.Name = "UpstreamExchangeFailed"
		var exErr *shopify.ExchangeError
		if errors.As(err, &exErr) {
			body.Op = exErr.Op
			if exErr.StatusCode >= http.StatusBadRequest {
				body.StatusCode = exErr.StatusCode
			}
			body.Error = upstreamBody(exErr.Body)
		}
	}

	h.JSON(w, body.StatusCode, body)
}

// upstreamBody echoes the shop's response, as JSON when it is JSON.
func upstreamBody(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}
