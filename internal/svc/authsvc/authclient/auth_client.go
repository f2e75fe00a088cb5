package authclient

import (
	"context"

	"github.com/mkrupp/localauth/internal/domain"
)

// AuthClient defines the interface for checking user credentials.
type AuthClient interface {
	// Authenticate verifies username and password and returns the public view
	// of the user. Fails with domain.ErrInvalidCredentials or domain.ErrLockedOut.
	Authenticate(ctx context.Context, username, password string) (domain.UserInfo, error)
}
