package domain

import "time"

// LoginAttempt tracks consecutive failed logins for one username.
// It lives in memory only.
type LoginAttempt struct {
	Count        int
	LastAttempt  time.Time
	BlockedUntil time.Time // zero unless locked
}

// Locked reports whether the attempt record blocks logins at now.
func (a *LoginAttempt) Locked(now time.Time) bool {
	return !a.BlockedUntil.IsZero() && now.Before(a.BlockedUntil)
}

// Expired reports whether a lockout was set and has elapsed at now.
func (a *LoginAttempt) Expired(now time.Time) bool {
	return !a.BlockedUntil.IsZero() && !now.Before(a.BlockedUntil)
}
