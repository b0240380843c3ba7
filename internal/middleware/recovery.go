package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/conversant-bank/atm-backend/internal/handler"
	"github.com/conversant-bank/atm-backend/internal/logging"
)

// Recovery converts a handler panic into the standard error envelope so the
// terminal always gets a parseable response. http.ErrAbortHandler passes
// through untouched; the server uses it to abort the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logging.FromContext(r.Context()).Error("panic recovered",
					"error", err,
					"request_id", TraceIDFromContext(r.Context()),
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
