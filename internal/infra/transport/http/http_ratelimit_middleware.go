package http

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/mkrupp/localauth/internal/infra/logging"
)

// RateLimitingMiddleware creates middleware that limits each client IP to
// requests per window. Rejected requests get 429 with a Retry-After header.
// A non-positive requests disables limiting.
func RateLimitingMiddleware(next http.Handler, requests int, window time.Duration, log logging.Logger) http.Handler {
	if requests <= 0 {
		return next
	}

	limiter := httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			log.WarnContext(r.Context(), "rate limited", "remote_addr", r.RemoteAddr)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	return limiter(next)
}
