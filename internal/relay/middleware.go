package relay

import (
	"net/http"

	"github.com/charmbracelet/log"
)

// middlewareLog logs every request at debug level.
func middlewareLog(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("Request received", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
