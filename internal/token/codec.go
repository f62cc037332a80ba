// Package token issues and parses the signed, time-bounded access tokens
// handed to clients after login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KindAccess is the only token kind this service issues or accepts.
const KindAccess = "access"

// Reason explains why a token was rejected.
type Reason string

const (
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonExpired          Reason = "expired"
	ReasonWrongKind        Reason = "wrong_kind"
	ReasonMissingSubject   Reason = "missing_subject"
	ReasonMalformed        Reason = "malformed"
)

// RejectedError is returned by Parse for every token that is not accepted.
type RejectedError struct {
	Reason Reason
	Cause  error
}

func (e *RejectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token rejected: %s: %v", e.Reason, e.Cause)
	}
	return "token rejected: " + string(e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return e.Cause
}

// ReasonOf returns the rejection reason carried by err, or "" if err is not
// a RejectedError.
func ReasonOf(err error) Reason {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// Claims are the fields embedded in an access token.
type Claims struct {
	Kind string `json:"typ"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	ExpiresIn int // seconds
}

// Codec signs and verifies tokens with a process-wide symmetric secret.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewCodec creates a codec for an HMAC algorithm (HS256, HS384, HS512).
func NewCodec(secret, algorithm string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("token: unsupported signing algorithm %q", algorithm)
	}
	return &Codec{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

// Algorithm returns the configured signing algorithm name.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Issue signs an access token for subject valid for lifetime.
func (c *Codec) Issue(subject string, lifetime time.Duration) (*Issued, error) {
	now := c.now()
	expiresAt := now.Add(lifetime)

	claims := Claims{
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("token: sign: %w", err)
	}

	return &Issued{
		Token:     signed,
		ExpiresAt: expiresAt,
		ExpiresIn: int(lifetime.Seconds()),
	}, nil
}

// Parse verifies the signature first, then expiry, then the kind
// discriminator and subject.
func (c *Codec) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Kind != KindAccess {
		return nil, &RejectedError{Reason: ReasonWrongKind}
	}
	if claims.Subject == "" {
		return nil, &RejectedError{Reason: ReasonMissingSubject}
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.secret, nil
}

func classify(err error) *RejectedError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &RejectedError{Reason: ReasonMalformed, Cause: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &RejectedError{Reason: ReasonInvalidSignature, Cause: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &RejectedError{Reason: ReasonExpired, Cause: err}
	default:
		return &RejectedError{Reason: ReasonMalformed, Cause: err}
	}
}
