package middleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/obot-platform/shopinstall/internal/logger"
)

// SensitiveQueryParams are query parameters that should be redacted in logs.
// The handshake carries its authorization code, state and signature in the
// query string.
var SensitiveQueryParams = []string{"code", "hmac", "signature", "state", "token", "password", "api_key", "secret", "apiKey"}

const redactedValue = "[REDACTED]"

// SanitizedLogger logs each request through log with sensitive query params
// redacted.
func SanitizedLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t1 := time.Now()

			defer func() {
				log.LogRequest(r, middleware.GetReqID(r.Context()), redactSensitiveParams(r.URL), ww.Status(), ww.BytesWritten(), time.Since(t1))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// redactSensitiveParams returns the request URI of u with every value of a
// sensitive parameter replaced.
func redactSensitiveParams(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}

	query := u.Query()
	redacted := false
	for _, name := range SensitiveQueryParams {
		values, ok := query[name]
		if !ok {
			continue
		}
		for i := range values {
			values[i] = redactedValue
		}
		redacted = true
	}
	if !redacted {
		return u.RequestURI()
	}
	return u.Path + "?" + query.Encode()
}
