package domain

import (
	"strings"
	"time"
)

// Role is the capability tier of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Roles lists all known roles, highest capability first.
//
//nolint:gochecknoglobals
var Roles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}

	return false
}

// UserRecord is the persisted form of a registered principal.
// A record without PasswordSalt was created by the legacy unsalted scheme.
type UserRecord struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Username           string    `json:"username"`
	PasswordHash       string    `json:"passwordHash"`
	PasswordSalt       string    `json:"passwordSalt,omitempty"`
	Role               Role      `json:"role"`
	CreatedAt          time.Time `json:"createdAt"`
	PasswordChangedAt  time.Time `json:"passwordChangedAt,omitzero"`
	MustChangePassword bool      `json:"mustChangePassword"`
	IsDefaultPassword  bool      `json:"isDefaultPassword"`
}

// IsLegacy reports whether the record predates salted hashing.
func (u *UserRecord) IsLegacy() bool {
	return u.PasswordSalt == ""
}

// Matches reports whether username refers to this record, ignoring case.
func (u *UserRecord) Matches(username string) bool {
	return strings.EqualFold(u.Username, username)
}

// Info returns the public projection of the record.
func (u *UserRecord) Info() UserInfo {
	return UserInfo{
		ID:                 u.ID,
		Name:               u.Name,
		Username:           u.Username,
		Role:               u.Role,
		MustChangePassword: u.MustChangePassword,
		IsDefaultPassword:  u.IsDefaultPassword,
	}
}

// Mirror returns the non-secret fields pushed to a remote replica.
func (u *UserRecord) Mirror(updatedAt time.Time) UserMirror {
	return UserMirror{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

// UserInfo is what callers get back about a user. It never holds secrets.
type UserInfo struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Username           string `json:"username"`
	Role               Role   `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
	IsDefaultPassword  bool   `json:"isDefaultPassword"`
}

// NewUser is the payload for administrative user creation.
type NewUser struct {
	Name     string `json:"name"     validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role"     validate:"required"`
}

// UserMirror is the replica view of a user.
type UserMirror struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStatus summarises the login state of a username for UI feedback.
type UserStatus struct {
	Username           string `json:"username"`
	MustChangePassword bool   `json:"mustChangePassword"`
	RemainingAttempts  int    `json:"remainingAttempts"`
	LockoutSeconds     int64  `json:"lockoutSeconds"`
}
