package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/localauth/internal/domain"
	context_ "github.com/mkrupp/localauth/internal/infra/context"
	"github.com/mkrupp/localauth/internal/svc/authsvc/authclient"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			http.NotFound(w, r)

			return
		}

		w.Header().Set(authclient.TraceIDHeader, r.Header.Get(authclient.TraceIDHeader))

		switch r.FormValue("username") {
		case "alice":
			if r.FormValue("password") != "secret" {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

				return
			}

			_ = json.NewEncoder(w).Encode(domain.UserInfo{ID: "u1", Username: "alice", Role: domain.RoleAdmin})
		case "locked":
			w.Header().Set(authclient.RetryAfterHeader, "12")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		case "broken":
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		default:
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestHTTPClientAuthenticate(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	client := authclient.NewHTTPClient(authclient.HTTPClientConfig{LoginURL: srv.URL + "/auth/login"}, srv.Client())
	ctx := context_.WithTraceID(context.Background(), "trace-1")

	info, err := client.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.UserInfo{ID: "u1", Username: "alice", Role: domain.RoleAdmin}, info)

	_, err = client.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = client.Authenticate(ctx, "mallory", "secret")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = client.Authenticate(ctx, "locked", "secret")
	require.ErrorIs(t, err, domain.ErrLockedOut)

	var locked *domain.LockedOutError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 12*time.Second, locked.Remaining)

	_, err = client.Authenticate(ctx, "broken", "secret")
	require.ErrorIs(t, err, authclient.ErrUnexpectedStatus)
}

func TestHTTPClientUnreachable(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	url := srv.URL
	srv.Close()

	client := authclient.NewHTTPClient(authclient.HTTPClientConfig{LoginURL: url + "/auth/login"}, nil)

	_, err := client.Authenticate(context.Background(), "alice", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}
