package authsvc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/localauth/internal/svc/authsvc"
)

// singleRuleViolations maps passwords to the one rule each breaks.
//
//nolint:gochecknoglobals
var singleRuleViolations = map[string]string{
	"Ab1!xyz":                  authsvc.ReasonTooShort,
	strings.Repeat("Ab1!", 33): authsvc.ReasonTooLong,
	"tr0ub4dor&zeta":           authsvc.ReasonNoUpper,
	"TR0UB4DOR&ZETA":           authsvc.ReasonNoLower,
	"Troubador&Zeta":           authsvc.ReasonNoDigit,
	"Tr0ub4dorZeta":            authsvc.ReasonNoSpecial,
	"Abcde#9Xy":                authsvc.ReasonSequence,
	"Tr0ub4aaaa&Z":             authsvc.ReasonRepeated,
	"Zxcv#9Tqm":                authsvc.ReasonKeyboardLayout,
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	for password, reason := range singleRuleViolations {
		t.Run(reason, func(t *testing.T) {
			t.Parallel()

			result := authsvc.ValidatePassword(password)
			assert.False(t, result.Valid)
			assert.Equal(t, []string{reason}, result.Errors)
		})
	}
}

func TestValidatePasswordAccepts(t *testing.T) {
	t.Parallel()

	for _, password := range []string{strongPass, otherPass, "Adm1n!Secure", "Ünïcode#Pa55"} {
		result := authsvc.ValidatePassword(password)
		assert.True(t, result.Valid, password)
		assert.Empty(t, result.Errors, password)
		assert.Positive(t, result.Strength, password)
	}
}

func TestValidatePasswordEmpty(t *testing.T) {
	t.Parallel()

	result := authsvc.ValidatePassword("")
	assert.False(t, result.Valid)
	assert.Equal(t, []string{authsvc.ReasonRequired}, result.Errors)
	assert.Equal(t, 0, result.Strength)
}

func TestValidatePasswordReportsEveryRule(t *testing.T) {
	t.Parallel()

	result := authsvc.ValidatePassword("qwerty")
	assert.False(t, result.Valid)
	assert.ElementsMatch(t, []string{
		authsvc.ReasonTooShort,
		authsvc.ReasonNoUpper,
		authsvc.ReasonNoDigit,
		authsvc.ReasonNoSpecial,
		authsvc.ReasonCommon,
		authsvc.ReasonSequence,
		authsvc.ReasonKeyboardLayout,
	}, result.Errors)
}

func TestValidatePasswordLengthCountsRunes(t *testing.T) {
	t.Parallel()

	// eight runes, more than eight bytes
	result := authsvc.ValidatePassword("Äb1!ößçé")
	assert.NotContains(t, result.Errors, authsvc.ReasonTooShort)
}

func TestPasswordStrength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, authsvc.PasswordStrength(""))
	assert.Less(t, authsvc.PasswordStrength("password"), authsvc.PasswordStrength(strongPass))
	assert.Less(t, authsvc.PasswordStrength(strongPass), authsvc.PasswordStrength(strongPass+"-Kappa9"))
	assert.LessOrEqual(t, authsvc.PasswordStrength(strings.Repeat("aB3$", 40)), 100)
}

func TestStrengthLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  string
	}{
		{0, "very weak"},
		{29, "very weak"},
		{30, "weak"},
		{50, "fair"},
		{70, "strong"},
		{90, "very strong"},
		{100, "very strong"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, authsvc.StrengthLabel(tt.score), tt.score)
	}
}

func TestPasswordSuggestions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"use at least 8 characters",
		"add uppercase letters",
		"add digits",
		"add special characters (!@#$%...)",
		"longer passwords are safer (12+ characters)",
	}, authsvc.PasswordSuggestions("abc"))

	assert.Empty(t, authsvc.PasswordSuggestions(strongPass))
}
