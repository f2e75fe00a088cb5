package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrLockedOut is returned while a username is throttled after too many failed logins.
	ErrLockedOut = errors.New("account locked")
	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	// It deliberately does not say which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned when input fails validation. See ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when trying to create a user with an existing username.
	ErrConflict = errors.New("user already exists")
	// ErrNotFound is returned when looking up a non-existent user.
	ErrNotFound = errors.New("user not found")
	// ErrSamePassword is returned when a new password equals the current one.
	ErrSamePassword = errors.New("new password must differ from the current password")
	// ErrStorage marks failures of the credential store itself.
	ErrStorage = errors.New("storage error")
)

// ValidationError carries the human-readable reasons input was rejected.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrValidation.Error()
	}

	return ErrValidation.Error() + ": " + strings.Join(e.Reasons, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// LockedOutError is returned by Authenticate while a username is locked.
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("%s: retry in %d seconds", ErrLockedOut, e.Seconds())
}

func (e *LockedOutError) Is(target error) bool {
	return target == ErrLockedOut
}

// Seconds returns the remaining lockout rounded up to whole seconds.
func (e *LockedOutError) Seconds() int64 {
	return CeilSeconds(e.Remaining)
}

// CeilSeconds rounds d up to whole seconds; negative durations yield 0.
func CeilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}

	return int64(math.Ceil(d.Seconds()))
}
