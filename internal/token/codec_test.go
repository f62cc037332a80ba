package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "HS256")
	require.NoError(t, err)
	return c
}

func signRaw(t *testing.T, claims jwt.Claims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestIssueThenParse(t *testing.T) {
	c := newTestCodec(t)

	issued, err := c.Issue("alice", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1800, issued.ExpiresIn)

	claims, err := c.Parse(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.Equal(t, claims.IssuedAt.Add(30*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestIssue_TokenIsURLSafe(t *testing.T) {
	c := newTestCodec(t)

	issued, err := c.Issue("user_with_underscore", time.Minute)
	require.NoError(t, err)

	assert.Len(t, strings.Split(issued.Token, "."), 3)
	assert.NotContains(t, issued.Token, "+")
	assert.NotContains(t, issued.Token, "/")
	assert.NotContains(t, issued.Token, "=")
}

func TestParse_Expired(t *testing.T) {
	c := newTestCodec(t)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	issued, err := c.Issue("alice", time.Hour)
	require.NoError(t, err)

	c.now = time.Now
	_, err = c.Parse(issued.Token)
	require.Error(t, err)
	assert.Equal(t, ReasonExpired, ReasonOf(err))
}

func TestParse_NoLeewayAtExpiry(t *testing.T) {
	c := newTestCodec(t)
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	issued, err := c.Issue("alice", time.Minute)
	require.NoError(t, err)

	c.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	_, err = c.Parse(issued.Token)
	assert.Equal(t, ReasonExpired, ReasonOf(err))
}

func TestParse_InvalidSignature(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec("another-secret", "HS256")
	require.NoError(t, err)

	issued, err := other.Issue("alice", time.Hour)
	require.NoError(t, err)

	_, err = c.Parse(issued.Token)
	assert.Equal(t, ReasonInvalidSignature, ReasonOf(err))
}

func TestParse_SignatureCheckedBeforeExpiry(t *testing.T) {
	c := newTestCodec(t)
	raw := signRaw(t, Claims{
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, "wrong-secret")

	_, err := c.Parse(raw)
	assert.Equal(t, ReasonInvalidSignature, ReasonOf(err))
}

func TestParse_AlgorithmMismatch(t *testing.T) {
	c := newTestCodec(t)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = c.Parse(raw)
	assert.Equal(t, ReasonInvalidSignature, ReasonOf(err))
}

func TestParse_WrongKind(t *testing.T) {
	c := newTestCodec(t)
	raw := signRaw(t, Claims{
		Kind: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	_, err := c.Parse(raw)
	assert.Equal(t, ReasonWrongKind, ReasonOf(err))
}

func TestParse_MissingSubject(t *testing.T) {
	c := newTestCodec(t)
	raw := signRaw(t, Claims{
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	_, err := c.Parse(raw)
	assert.Equal(t, ReasonMissingSubject, ReasonOf(err))
}

func TestParse_Malformed(t *testing.T) {
	c := newTestCodec(t)

	for _, raw := range []string{"", "not-a-token", "not.a.jwt", "a.b"} {
		_, err := c.Parse(raw)
		assert.Equal(t, ReasonMalformed, ReasonOf(err), "input %q", raw)
	}
}

func TestParse_MissingExpiry(t *testing.T) {
	c := newTestCodec(t)
	raw := signRaw(t, Claims{
		Kind:             KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}, testSecret)

	_, err := c.Parse(raw)
	assert.Equal(t, ReasonMalformed, ReasonOf(err))
}

func TestNewCodec_Validation(t *testing.T) {
	_, err := NewCodec("", "HS256")
	assert.Error(t, err)

	_, err = NewCodec("secret", "RS256")
	assert.Error(t, err)

	c, err := NewCodec("secret", "HS384")
	require.NoError(t, err)
	assert.Equal(t, "HS384", c.Algorithm())
}

func TestRotatedSecretInvalidatesTokens(t *testing.T) {
	before, err := NewCodec("secret-v1", "HS256")
	require.NoError(t, err)
	after, err := NewCodec("secret-v2", "HS256")
	require.NoError(t, err)

	issued, err := before.Issue("alice", time.Hour)
	require.NoError(t, err)

	_, err = after.Parse(issued.Token)
	assert.Equal(t, ReasonInvalidSignature, ReasonOf(err))
}
