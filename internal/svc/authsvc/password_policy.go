package authsvc

import (
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	maxIdenticalRun   = 3 // a run longer than this is rejected
)

const specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

//nolint:gochecknoglobals
var (
	commonPasswords = []string{
		"123456", "password", "123456789", "12345678", "12345",
		"1234567", "1234567890", "qwerty", "abc123", "111111",
		"123123", "admin", "letmein", "welcome", "monkey",
		"dragon", "master", "sunshine", "password1", "princess",
		"football", "admin123", "root", "toor", "pass",
		"test", "demo", "guest",
	}

	commonSequences  = []string{"12345", "abcde", "qwerty", "asdfgh", "zxcvbn"}
	keyboardPatterns = []string{"qwerty", "asdf", "zxcv", "1234"}
)

// Policy violation reasons.
const (
	ReasonRequired       = "password is required"
	ReasonTooShort       = "password must be at least 8 characters long"
	ReasonTooLong        = "password must be at most 128 characters long"
	ReasonNoUpper        = "password must contain at least one uppercase letter"
	ReasonNoLower        = "password must contain at least one lowercase letter"
	ReasonNoDigit        = "password must contain at least one digit"
	ReasonNoSpecial      = "password must contain at least one special character (!@#$%^&*...)"
	ReasonCommon         = "password is too common"
	ReasonSequence       = "password must not contain common sequences (12345, abcde, ...)"
	ReasonRepeated       = "password must not repeat the same character 4 or more times in a row"
	ReasonKeyboardLayout = "password must not contain keyboard patterns"
)

// PolicyResult is the outcome of validating a password.
type PolicyResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Strength int      `json:"strength"`
}

// ValidatePassword checks password against the strength rules. Every
// violated rule contributes one reason.
//
//nolint:cyclop
func ValidatePassword(password string) PolicyResult {
	if password == "" {
		return PolicyResult{Valid: false, Errors: []string{ReasonRequired}, Strength: 0}
	}

	var (
		reasons []string
		length  = utf8.RuneCountInString(password)
		lower   = strings.ToLower(password)
		classes = classify(password)
	)

	if length < minPasswordLength {
		reasons = append(reasons, ReasonTooShort)
	}

	if length > maxPasswordLength {
		reasons = append(reasons, ReasonTooLong)
	}

	if !classes.upper {
		reasons = append(reasons, ReasonNoUpper)
	}

	if !classes.lower {
		reasons = append(reasons, ReasonNoLower)
	}

	if !classes.digit {
		reasons = append(reasons, ReasonNoDigit)
	}

	if !classes.special {
		reasons = append(reasons, ReasonNoSpecial)
	}

	if isCommonPassword(password) {
		reasons = append(reasons, ReasonCommon)
	}

	if containsAny(lower, commonSequences) {
		reasons = append(reasons, ReasonSequence)
	}

	if longestRun(password) > maxIdenticalRun {
		reasons = append(reasons, ReasonRepeated)
	}

	if containsAny(lower, keyboardPatterns) {
		reasons = append(reasons, ReasonKeyboardLayout)
	}

	return PolicyResult{
		Valid:    len(reasons) == 0,
		Errors:   reasons,
		Strength: PasswordStrength(password),
	}
}

// PasswordStrength scores password from 0 to 100. The score is advisory and
// never gates anything.
func PasswordStrength(password string) int {
	var (
		score   int
		length  = utf8.RuneCountInString(password)
		classes = classify(password)
	)

	for _, threshold := range []int{8, 12, 16, 20} {
		if length >= threshold {
			score += 10
		}
	}

	for _, present := range []bool{classes.lower, classes.upper, classes.digit, classes.other} {
		if present {
			score += 10
		}
	}

	score += min(20, uniqueRunes(password)*2)

	if isCommonPassword(password) {
		score = max(0, score-50)
	}

	if longestRun(password) >= 3 {
		score = max(0, score-10)
	}

	if longestDigitRun(password) >= 4 {
		score = max(0, score-5)
	}

	return min(100, max(0, score))
}

// StrengthLabel describes a strength score in words.
func StrengthLabel(score int) string {
	switch {
	case score < 30:
		return "very weak"
	case score < 50:
		return "weak"
	case score < 70:
		return "fair"
	case score < 90:
		return "strong"
	default:
		return "very strong"
	}
}

// PasswordSuggestions returns hints for making password stronger.
func PasswordSuggestions(password string) []string {
	var (
		suggestions []string
		length      = utf8.RuneCountInString(password)
		classes     = classify(password)
	)

	if length < minPasswordLength {
		suggestions = append(suggestions, "use at least 8 characters")
	}

	if !classes.upper {
		suggestions = append(suggestions, "add uppercase letters")
	}

	if !classes.digit {
		suggestions = append(suggestions, "add digits")
	}

	if !classes.other {
		suggestions = append(suggestions, "add special characters (!@#$%...)")
	}

	if length < 12 {
		suggestions = append(suggestions, "longer passwords are safer (12+ characters)")
	}

	return suggestions
}

type charClasses struct {
	upper, lower, digit bool
	special             bool // one of specialChars
	other               bool // anything not ASCII alphanumeric
}

func classify(password string) charClasses {
	var c charClasses

	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= '0' && r <= '9':
			c.digit = true
		default:
			c.other = true

			if strings.ContainsRune(specialChars, r) {
				c.special = true
			}
		}
	}

	return c
}

func isCommonPassword(password string) bool {
	return slices.Contains(commonPasswords, strings.ToLower(password))
}

func containsAny(s string, needles []string) bool {
	return slices.ContainsFunc(needles, func(n string) bool {
		return strings.Contains(s, n)
	})
}

func longestRun(s string) int {
	var (
		best, cur int
		prev      rune
	)

	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			cur++
		} else {
			cur = 1
		}

		prev = r
		best = max(best, cur)
	}

	return best
}

func longestDigitRun(s string) int {
	var best, cur int

	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}

	return best
}

func uniqueRunes(s string) int {
	seen := make(map[rune]struct{})
	for _, r := range s {
		seen[r] = struct{}{}
	}

	return len(seen)
}
