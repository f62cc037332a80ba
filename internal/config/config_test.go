package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_SECRET_NAME", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET or JWT_SECRET_NAME must be set")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 30, cfg.JWT.ExpireMinutes)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Lifetime())
	assert.Equal(t, 12, cfg.Password.BcryptCost)
	assert.Equal(t, "dynamodb", cfg.Directory.Backend)
	assert.Equal(t, 5*time.Second, cfg.Directory.Timeout)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"algorithm", "JWT_ALGORITHM", "RS256"},
		{"expire minutes", "JWT_EXPIRE_MINUTES", "0"},
		{"bcrypt cost", "PASSWORD_BCRYPT_COST", "3"},
		{"backend", "DIRECTORY_BACKEND", "mongo"},
		{"port", "SERVER_PORT", "99999"},
		{"sample rate", "OBSERVABILITY_SAMPLE_RATE", "1.5"},
		{"trace exporter", "OBSERVABILITY_TRACE_EXPORTER", "zipkin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadWithSecrets_OverridesSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "placeholder")
	t.Setenv("JWT_SECRET_NAME", "prod/jwt")

	cfg, err := LoadWithSecrets(func(name string) (string, error) {
		assert.Equal(t, "prod/jwt", name)
		return "from-secrets-manager", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-secrets-manager", cfg.JWT.Secret)
}

func TestLoadWithSecrets_SecretNameAloneIsEnough(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_SECRET_NAME", "prod/jwt")

	cfg, err := LoadWithSecrets(func(string) (string, error) {
		return "from-secrets-manager", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-secrets-manager", cfg.JWT.Secret)

	_, err = LoadWithSecrets(func(string) (string, error) {
		return "  ", nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")

	// without a secret store the name cannot be resolved
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadWithSecrets_FetchFailure(t *testing.T) {
	t.Setenv("JWT_SECRET", "placeholder")
	t.Setenv("JWT_SECRET_NAME", "prod/jwt")

	_, err := LoadWithSecrets(func(string) (string, error) {
		return "", errors.New("access denied")
	})
	assert.Error(t, err)
}

func TestLoad_NormalizesBackendAndAlgorithm(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_ALGORITHM", "hs512")
	t.Setenv("DIRECTORY_BACKEND", " Memory ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "HS512", cfg.JWT.Algorithm)
	assert.Equal(t, "memory", cfg.Directory.Backend)
}
