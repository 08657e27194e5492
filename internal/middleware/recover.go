package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/obot-platform/shopinstall/internal/logger"
)

// Recover turns a panic in a handler into a 500 response in the serialized
// error shape and logs it. http.ErrAbortHandler is re-raised.
func Recover(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}

				log.Error("panic in handler",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)

				// Upgraded connections have no response to write.
				if r.Header.Get("Connection") == "Upgrade" {
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"type":       "error",
					"name":       "InternalServerError",
					"message":    http.StatusText(http.StatusInternalServerError),
					"statusCode": http.StatusInternalServerError,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
