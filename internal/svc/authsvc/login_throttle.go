package authsvc

import (
	"strings"
	"time"

	"github.com/mkrupp/localauth/internal/domain"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 30 * time.Second
)

// LoginThrottle counts failed logins per username and locks a username for
// LockoutDuration once MaxAttempts consecutive failures are reached.
// Expired lockouts are discarded lazily when queried.
// LoginThrottle is not safe for concurrent use; AuthManager guards it.
type LoginThrottle struct {
	MaxAttempts     int
	LockoutDuration time.Duration

	now      func() time.Time
	attempts map[string]*domain.LoginAttempt
}

// NewLoginThrottle creates a throttle. Non-positive limits fall back to the defaults.
func NewLoginThrottle(maxAttempts int, lockout time.Duration, now func() time.Time) *LoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}

	if now == nil {
		now = time.Now
	}

	return &LoginThrottle{
		MaxAttempts:     maxAttempts,
		LockoutDuration: lockout,
		now:             now,
		attempts:        make(map[string]*domain.LoginAttempt),
	}
}

// IsLocked reports whether username is currently locked.
func (t *LoginThrottle) IsLocked(username string) bool {
	attempt := t.lookup(username)

	return attempt != nil && attempt.Locked(t.now())
}

// RecordFailure counts a failed login and returns the updated record.
func (t *LoginThrottle) RecordFailure(username string) domain.LoginAttempt {
	key := throttleKey(username)

	attempt := t.lookup(username)
	if attempt == nil {
		attempt = &domain.LoginAttempt{}
		t.attempts[key] = attempt
	}

	now := t.now()
	attempt.Count++
	attempt.LastAttempt = now

	if attempt.Count >= t.MaxAttempts {
		attempt.BlockedUntil = now.Add(t.LockoutDuration)
	}

	return *attempt
}

// Clear forgets all failures of username.
func (t *LoginThrottle) Clear(username string) {
	delete(t.attempts, throttleKey(username))
}

// RemainingAttempts returns how many failures are left before a lockout.
func (t *LoginThrottle) RemainingAttempts(username string) int {
	attempt := t.lookup(username)
	if attempt == nil {
		return t.MaxAttempts
	}

	return max(0, t.MaxAttempts-attempt.Count)
}

// LockoutRemaining returns how long username stays locked, or 0.
func (t *LoginThrottle) LockoutRemaining(username string) time.Duration {
	attempt := t.lookup(username)
	if attempt == nil || attempt.BlockedUntil.IsZero() {
		return 0
	}

	return max(0, attempt.BlockedUntil.Sub(t.now()))
}

// lookup returns the live record for username, dropping it if its lockout
// has elapsed.
func (t *LoginThrottle) lookup(username string) *domain.LoginAttempt {
	key := throttleKey(username)

	attempt, ok := t.attempts[key]
	if !ok {
		return nil
	}

	if attempt.Expired(t.now()) {
		delete(t.attempts, key)

		return nil
	}

	return attempt
}

func throttleKey(username string) string {
	return strings.ToLower(username)
}
