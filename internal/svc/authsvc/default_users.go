package authsvc

import (
	"fmt"
	"time"

	"github.com/mkrupp/localauth/internal/domain"
)

// DefaultAccount is a factory account created on first run.
type DefaultAccount struct {
	ID       string
	Name     string
	Username string
	Role     domain.Role
	Password string
}

// DefaultAccounts are bootstrapped into an empty store. Their passwords must be
// changed on first login.
//
//nolint:gochecknoglobals
var DefaultAccounts = []DefaultAccount{
	{ID: "admin1", Name: "Administrator", Username: "Csfiac", Role: domain.RoleAdmin, Password: "032147"},
	{ID: "editor1", Name: "Editor", Username: "Iac", Role: domain.RoleEditor, Password: "Iac@123"},
	{ID: "viewer1", Name: "Viewer", Username: "viewer", Role: domain.RoleViewer, Password: "viewer123"},
}

// NewDefaultUsers hashes the factory passwords and returns records flagged for
// forced rotation.
func NewDefaultUsers(hasher *PasswordHasher, now time.Time) ([]domain.UserRecord, error) {
	users := make([]domain.UserRecord, 0, len(DefaultAccounts))

	for _, account := range DefaultAccounts {
		ph, err := hasher.Hash(account.Password, "")
		if err != nil {
			return nil, fmt.Errorf("hash password of %s: %w", account.Username, err)
		}

		users = append(users, domain.UserRecord{
			ID:                 account.ID,
			Name:               account.Name,
			Username:           account.Username,
			PasswordHash:       ph.Hash,
			PasswordSalt:       ph.Salt,
			Role:               account.Role,
			CreatedAt:          now,
			MustChangePassword: true,
			IsDefaultPassword:  true,
		})
	}

	return users, nil
}
