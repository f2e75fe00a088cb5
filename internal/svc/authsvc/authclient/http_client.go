package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mkrupp/localauth/internal/domain"
	context_ "github.com/mkrupp/localauth/internal/infra/context"
	"github.com/mkrupp/localauth/internal/infra/logging"
)

const (
	TraceIDHeader    = "X-Request-ID"
	RetryAfterHeader = "Retry-After"
)

// ErrUnexpectedStatus is returned when the auth service answers with a status
// the client does not understand.
var ErrUnexpectedStatus = errors.New("unexpected status")

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// LoginURL is the endpoint for login requests
	LoginURL string `env:"LOGIN_URL" default:"http://localhost:8080/auth/login"`
}

// HTTPClient implements AuthClient against a remote auth service.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, http.DefaultClient will be used.
func NewHTTPClient(
	cfg HTTPClientConfig,
	httpClient *http.Client,
) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.authsvc.authclient.http_client"),
		cfg:        cfg,
	}
}

// Authenticate implements AuthClient.Authenticate by posting the credentials
// as a form to the configured login endpoint.
func (ht *HTTPClient) Authenticate(ctx context.Context, username, password string) (_ domain.UserInfo, err error) {
	log := ht.log.With(logging.Group("user", "username", username))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "authenticate failed", "error", err)
		}
	}()

	form := url.Values{"username": {username}, "password": {password}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ht.cfg.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := ht.httpClient.Do(req)
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var info domain.UserInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return domain.UserInfo{}, fmt.Errorf("decode response: %w", err)
		}

		return info, nil
	case http.StatusUnauthorized:
		return domain.UserInfo{}, domain.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		seconds, _ := strconv.ParseInt(resp.Header.Get(RetryAfterHeader), 10, 64)

		return domain.UserInfo{}, &domain.LockedOutError{Remaining: time.Duration(seconds) * time.Second}
	default:
		return domain.UserInfo{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}
