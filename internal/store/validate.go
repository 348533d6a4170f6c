package store

import (
	"strings"
	"unicode"
)

// maxUsernameLen caps usernames so account directory names stay manageable.
const maxUsernameLen = 64

// forbiddenUsernameChars are rejected outright: path separators, the address
// separator, and whitespace would all let a username escape its directory or
// be confused with an address.
const forbiddenUsernameChars = "/\\.@: \t"

// minPasswordLen and minPasswordClasses define the strength policy: at least
// minPasswordLen characters drawn from at least minPasswordClasses of the
// four classes lower, upper, digit, other.
const (
	minPasswordLen     = 8
	minPasswordClasses = 3
)

// ValidateUsername checks a registration username against the naming policy.
// It does not consult the filesystem; duplicate detection happens at account
// creation.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	if len(username) > maxUsernameLen {
		return ErrUsernameTooLong
	}
	if strings.ContainsAny(username, forbiddenUsernameChars) {
		return ErrForbiddenUsername
	}
	for _, r := range username {
		if !unicode.IsPrint(r) {
			return ErrForbiddenUsername
		}
	}
	return nil
}

// ValidatePassword checks a registration password against the strength
// policy.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}

	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}

	classes := 0
	for _, present := range []bool{lower, upper, digit, other} {
		if present {
			classes++
		}
	}
	if classes < minPasswordClasses {
		return ErrWeakPassword
	}
	return nil
}
