package authsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mkrupp/localauth/internal/domain"
	context_ "github.com/mkrupp/localauth/internal/infra/context"
	"github.com/mkrupp/localauth/internal/infra/logging"
	http_ "github.com/mkrupp/localauth/internal/infra/transport/http"
)

var (
	// ErrNoUsername is returned when the username is missing from the request.
	ErrNoUsername = errors.New("no username")
	// ErrNoPassword is returned when the password is missing from the request.
	ErrNoPassword = errors.New("no password")
	// ErrNoPrincipal is returned when an authenticated route runs without a principal.
	ErrNoPrincipal = errors.New("no principal")
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// ErrorsResponse is the body of 400 responses carrying validation reasons.
type ErrorsResponse struct {
	Errors []string `json:"errors"`
}

// StrengthResponse is the body of a password strength check.
type StrengthResponse struct {
	PolicyResult

	Label       string   `json:"label"`
	Suggestions []string `json:"suggestions"`
}

// HTTPTransport handles HTTP requests for the authentication service.
// It provides endpoints for login, user creation and password management.
type HTTPTransport struct {
	authMgr *AuthManager
	log     logging.Logger
	cfg     HTTPTransportConfig
	mux     *http.ServeMux
}

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires an AuthManager for handling authentication operations.
//
// Routes:
//   - POST /auth/login: check credentials
//   - POST /auth/users: create a user (basic auth, admin)
//   - POST /auth/password: change own password (basic auth)
//   - PUT /auth/users/{username}/password: reset a password (basic auth, admin)
//   - GET /auth/users/{username}/status: login state of a user (basic auth, self or admin)
//   - POST /auth/password/strength: rate a candidate password.
func NewHTTPTransport(
	authMgr *AuthManager,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		authMgr: authMgr,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
		mux:     http.NewServeMux(),
	}

	authorized := func(h http.HandlerFunc) http.Handler {
		return http_.AuthorizingMiddleware(h, authMgr, ht.log)
	}

	ht.mux.HandleFunc("POST /auth/login", ht.HandleLogin)
	ht.mux.Handle("POST /auth/users", authorized(ht.HandleCreateUser))
	ht.mux.Handle("POST /auth/password", authorized(ht.HandleChangePassword))
	ht.mux.Handle("PUT /auth/users/{username}/password", authorized(ht.HandleResetPassword))
	ht.mux.Handle("GET /auth/users/{username}/status", authorized(ht.HandleStatus))
	ht.mux.HandleFunc("POST /auth/password/strength", ht.HandleStrength)

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// HandleLogin processes login requests.
// Expects form parameters: username, password.
// Returns the user on success.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user login failed", "error", err)
		} else {
			log.DebugContext(ctx, "user logged in")
		}
	}(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	username := r.FormValue("username")
	if username == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoUsername
	}

	log = log.With(logging.Group("user", "username", username))

	password := r.FormValue("password")
	if password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoPassword
	}

	info, err := ht.authMgr.Authenticate(r.Context(), username, password)
	if err != nil {
		writeError(w, err)

		return fmt.Errorf("authenticate: %w", err)
	}

	return writeJSON(w, http.StatusOK, info)
}

// HandleCreateUser processes user creation requests from an authenticated admin.
// Expects a JSON body with name, username, password and role.
func (ht *HTTPTransport) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreateUser(w, r)
}

func (ht *HTTPTransport) handleCreateUser(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "create user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user created")
		}
	}(r.Context())

	principal, ok := context_.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

		return ErrNoPrincipal
	}

	log = log.With(logging.Group("principal", "username", principal.Username, "role", principal.Role))

	var data domain.NewUser
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("decode request: %w", err)
	}

	info, err := ht.authMgr.CreateUser(r.Context(), data, principal.Role)
	if err != nil {
		writeError(w, err)

		return fmt.Errorf("create user: %w", err)
	}

	return writeJSON(w, http.StatusCreated, info)
}

// HandleChangePassword processes password changes by the authenticated user.
// The basic auth password is the old password.
// Expects form parameter: newPassword.
func (ht *HTTPTransport) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleChangePassword(w, r)
}

func (ht *HTTPTransport) handleChangePassword(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "change password failed", "error", err)
		} else {
			log.DebugContext(ctx, "password changed")
		}
	}(r.Context())

	principal, ok := context_.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

		return ErrNoPrincipal
	}

	log = log.With(logging.Group("user", "username", principal.Username))

	// AuthorizingMiddleware already verified these credentials.
	_, oldPassword, _ := r.BasicAuth()

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	err = ht.authMgr.ChangePassword(r.Context(), principal.Username, oldPassword, r.FormValue("newPassword"), false)
	if err != nil {
		writeError(w, err)

		return fmt.Errorf("change password: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// HandleResetPassword processes administrative password resets.
// Expects form parameter: newPassword. The old password is not checked.
func (ht *HTTPTransport) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleResetPassword(w, r)
}

func (ht *HTTPTransport) handleResetPassword(w http.ResponseWriter, r *http.Request) (err error) {
	username := r.PathValue("username")
	log := ht.log.With(
		logging.Group("http", "method", r.Method, "url", r.URL.String()),
		logging.Group("user", "username", username),
	)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "reset password failed", "error", err)
		} else {
			log.InfoContext(ctx, "password reset")
		}
	}(r.Context())

	principal, ok := context_.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

		return ErrNoPrincipal
	}

	log = log.With(logging.Group("principal", "username", principal.Username, "role", principal.Role))

	if principal.Role != domain.RoleAdmin {
		writeError(w, domain.ErrForbidden)

		return domain.ErrForbidden
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	if err := ht.authMgr.ChangePassword(r.Context(), username, "", r.FormValue("newPassword"), true); err != nil {
		writeError(w, err)

		return fmt.Errorf("reset password: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// HandleStatus reports whether a user must change its password and how close
// it is to being locked out. Users may query themselves, admins anyone.
func (ht *HTTPTransport) HandleStatus(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleStatus(w, r)
}

func (ht *HTTPTransport) handleStatus(w http.ResponseWriter, r *http.Request) (err error) {
	username := r.PathValue("username")
	log := ht.log.With(
		logging.Group("http", "method", r.Method, "url", r.URL.String()),
		logging.Group("user", "username", username),
	)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "status failed", "error", err)
		}
	}(r.Context())

	principal, ok := context_.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

		return ErrNoPrincipal
	}

	if principal.Role != domain.RoleAdmin && !strings.EqualFold(principal.Username, username) {
		writeError(w, domain.ErrForbidden)

		return domain.ErrForbidden
	}

	return writeJSON(w, http.StatusOK, ht.authMgr.Status(r.Context(), username))
}

// HandleStrength rates a candidate password.
// Expects form parameter: password.
func (ht *HTTPTransport) HandleStrength(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleStrength(w, r)
}

func (ht *HTTPTransport) handleStrength(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "strength check failed", "error", err)
		}
	}(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	password := r.FormValue("password")
	result := ValidatePassword(password)

	return writeJSON(w, http.StatusOK, StrengthResponse{
		PolicyResult: result,
		Label:        StrengthLabel(result.Strength),
		Suggestions:  PasswordSuggestions(password),
	})
}

// writeError maps a domain error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	var (
		locked  *domain.LockedOutError
		invalid *domain.ValidationError
	)

	switch {
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.FormatInt(locked.Seconds(), 10))
		http.Error(w, locked.Error(), http.StatusTooManyRequests)
	case errors.As(err, &invalid):
		_ = writeJSON(w, http.StatusBadRequest, ErrorsResponse{Errors: invalid.Reasons})
	case errors.Is(err, domain.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, domain.ErrSamePassword):
		http.Error(w, domain.ErrSamePassword.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}
