package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/mkrupp/localauth/internal/domain"
	context_ "github.com/mkrupp/localauth/internal/infra/context"
	"github.com/mkrupp/localauth/internal/infra/logging"
	"github.com/mkrupp/localauth/internal/svc/authsvc/authclient"
)

const basicRealm = `Basic realm="localauth", charset="UTF-8"`

// AuthorizingMiddleware creates middleware that authenticates HTTP basic
// credentials through authClient.
// Requests without credentials or with wrong ones are rejected with 401,
// locked usernames with 429.
// On success, the authenticated user is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	authClient authclient.AuthClient,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			log.WarnContext(r.Context(), "no credentials provided")
			w.Header().Set("WWW-Authenticate", basicRealm)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		principal, err := authClient.Authenticate(r.Context(), username, password)
		if err != nil {
			log.WarnContext(r.Context(), "authenticate failed",
				logging.Group("user", "username", username),
				"error", err,
			)

			var locked *domain.LockedOutError
			if errors.As(err, &locked) {
				w.Header().Set("Retry-After", strconv.FormatInt(locked.Seconds(), 10))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)

				return
			}

			w.Header().Set("WWW-Authenticate", basicRealm)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithPrincipal(r.Context(), principal)))
	})
}
