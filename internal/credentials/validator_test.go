package credentials

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var rej *RejectionError
	require.True(t, errors.As(err, &rej), "expected RejectionError, got %v", err)
	return rej.Reason
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		reason Reason
	}{
		{"valid", "alice", "alice", ""},
		{"underscore and digits", "john_doe_42", "john_doe_42", ""},
		{"trimmed", "  bob  ", "bob", ""},
		{"min length", "abc", "abc", ""},
		{"max length", strings.Repeat("a", 50), strings.Repeat("a", 50), ""},
		{"too short", "ab", "", ReasonTooShort},
		{"too short after trim", "  ab  ", "", ReasonTooShort},
		{"too long", strings.Repeat("a", 51), "", ReasonTooLong},
		{"hyphen", "john-doe", "", ReasonBadCharset},
		{"inner space", "john doe", "", ReasonBadCharset},
		{"non ascii", "jöhn", "", ReasonBadCharset},
		{"empty", "", "", ReasonTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUsername(tt.input)
			if tt.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			assert.Equal(t, tt.reason, reasonOf(t, err))
		})
	}
}

func TestValidateUsername_AcceptedMatchesPattern(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)
	inputs := []string{"abc", " a_b ", "x", "Name_With_123", "bad name", "\tuser\n", strings.Repeat("z", 60), "a.b.c"}

	for _, in := range inputs {
		got, err := ValidateUsername(in)
		if err != nil {
			var rej *RejectionError
			assert.True(t, errors.As(err, &rej))
			continue
		}
		assert.Regexp(t, pattern, got)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason Reason
	}{
		{"valid", "Passw0rd", ""},
		{"max length", "Abcdefghijklmnopqr12", ""},
		{"inner whitespace kept", "Pass w0rd", ""},
		{"too short", "Pa0rd", ReasonTooShort},
		{"too long", "Abcdefghijklmnopqrs12", ReasonTooLong},
		{"missing upper", "passw0rd", ReasonMissingUppercase},
		{"missing lower", "PASSW0RD", ReasonMissingLowercase},
		{"missing digit", "Password", ReasonMissingDigit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePassword(tt.input)
			if tt.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.input, got)
				return
			}
			assert.Equal(t, tt.reason, reasonOf(t, err))
		})
	}
}

func TestValidate_UsernameReportedFirst(t *testing.T) {
	_, err := Validate("a!", "short")

	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "username", rej.Field)
}

func TestRejectionError_Message(t *testing.T) {
	err := &RejectionError{Field: "password", Reason: ReasonMissingDigit}
	assert.Equal(t, "Password must contain at least one digit", err.Message())
	assert.Equal(t, "password: Password must contain at least one digit", err.Error())
}
