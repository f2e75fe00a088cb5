package authsvc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/localauth/internal/svc/authsvc"
)

func TestLoginThrottle(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	throttle := authsvc.NewLoginThrottle(3, time.Minute, clock.Now)

	assert.False(t, throttle.IsLocked("alice"))
	assert.Equal(t, 3, throttle.RemainingAttempts("alice"))

	attempt := throttle.RecordFailure("alice")
	assert.Equal(t, 1, attempt.Count)
	assert.Equal(t, clock.Now(), attempt.LastAttempt)
	assert.True(t, attempt.BlockedUntil.IsZero())

	throttle.RecordFailure("Alice")
	assert.Equal(t, 1, throttle.RemainingAttempts("ALICE"))
	assert.False(t, throttle.IsLocked("alice"))

	attempt = throttle.RecordFailure("alice")
	assert.Equal(t, clock.Now().Add(time.Minute), attempt.BlockedUntil)
	assert.True(t, throttle.IsLocked("alice"))
	assert.Equal(t, time.Minute, throttle.LockoutRemaining("alice"))
	assert.False(t, throttle.IsLocked("bob"))

	clock.Advance(59 * time.Second)
	assert.True(t, throttle.IsLocked("alice"))

	clock.Advance(time.Second)
	assert.False(t, throttle.IsLocked("alice"))
	assert.Equal(t, 3, throttle.RemainingAttempts("alice"))
	assert.Equal(t, time.Duration(0), throttle.LockoutRemaining("alice"))

	// counting starts over after a lockout elapsed
	assert.Equal(t, 1, throttle.RecordFailure("alice").Count)

	throttle.Clear("ALICE")
	assert.Equal(t, 3, throttle.RemainingAttempts("alice"))
}

func TestLoginThrottleDefaults(t *testing.T) {
	t.Parallel()

	throttle := authsvc.NewLoginThrottle(0, 0, nil)
	assert.Equal(t, authsvc.DefaultMaxAttempts, throttle.MaxAttempts)
	assert.Equal(t, authsvc.DefaultLockoutDuration, throttle.LockoutDuration)
}
