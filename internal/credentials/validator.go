// Package credentials holds the registration-time rules for usernames and
// passwords.
package credentials

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Reason identifies the rule a credential violated.
type Reason string

const (
	ReasonTooShort         Reason = "too_short"
	ReasonTooLong          Reason = "too_long"
	ReasonBadCharset       Reason = "bad_charset"
	ReasonMissingUppercase Reason = "missing_uppercase"
	ReasonMissingLowercase Reason = "missing_lowercase"
	ReasonMissingDigit     Reason = "missing_digit"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 50
	PasswordMinLength = 8
	PasswordMaxLength = 20
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RejectionError reports the first rule a field violated.
type RejectionError struct {
	Field  string
	Reason Reason
}

func (e *RejectionError) Error() string {
	return e.Field + ": " + e.Message()
}

// Message is the client-facing description of the violated rule.
func (e *RejectionError) Message() string {
	switch e.Field {
	case "username":
		switch e.Reason {
		case ReasonTooShort:
			return fmt.Sprintf("Username must be at least %d characters", UsernameMinLength)
		case ReasonTooLong:
			return fmt.Sprintf("Username must be at most %d characters", UsernameMaxLength)
		case ReasonBadCharset:
			return "Username can only contain letters, numbers, and underscores"
		}
	case "password":
		switch e.Reason {
		case ReasonTooShort:
			return fmt.Sprintf("Password must be at least %d characters", PasswordMinLength)
		case ReasonTooLong:
			return fmt.Sprintf("Password must be at most %d characters", PasswordMaxLength)
		case ReasonMissingUppercase:
			return "Password must contain at least one uppercase letter"
		case ReasonMissingLowercase:
			return "Password must contain at least one lowercase letter"
		case ReasonMissingDigit:
			return "Password must contain at least one digit"
		}
	}
	return string(e.Reason)
}

// ValidateUsername trims s and checks its length and character set. It
// returns the trimmed username.
func ValidateUsername(s string) (string, error) {
	s = strings.TrimSpace(s)

	n := utf8.RuneCountInString(s)
	if n < UsernameMinLength {
		return "", &RejectionError{Field: "username", Reason: ReasonTooShort}
	}
	if n > UsernameMaxLength {
		return "", &RejectionError{Field: "username", Reason: ReasonTooLong}
	}
	if !usernamePattern.MatchString(s) {
		return "", &RejectionError{Field: "username", Reason: ReasonBadCharset}
	}
	return s, nil
}

// ValidatePassword checks length and character classes. Whitespace is
// significant and is not trimmed.
func ValidatePassword(s string) (string, error) {
	n := utf8.RuneCountInString(s)
	if n < PasswordMinLength {
		return "", &RejectionError{Field: "password", Reason: ReasonTooShort}
	}
	if n > PasswordMaxLength {
		return "", &RejectionError{Field: "password", Reason: ReasonTooLong}
	}

	var upper, lower, digit bool
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}

	switch {
	case !upper:
		return "", &RejectionError{Field: "password", Reason: ReasonMissingUppercase}
	case !lower:
		return "", &RejectionError{Field: "password", Reason: ReasonMissingLowercase}
	case !digit:
		return "", &RejectionError{Field: "password", Reason: ReasonMissingDigit}
	}
	return s, nil
}

// Validate checks the username first and the password second, returning the
// first violation found.
func Validate(username, password string) (string, error) {
	u, err := ValidateUsername(username)
	if err != nil {
		return "", err
	}
	if _, err := ValidatePassword(password); err != nil {
		return "", err
	}
	return u, nil
}
