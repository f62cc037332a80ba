package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/traffic-tacos/user-auth-api/internal/directory"
	"github.com/traffic-tacos/user-auth-api/internal/models"
	"github.com/traffic-tacos/user-auth-api/internal/password"
	"github.com/traffic-tacos/user-auth-api/internal/token"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

const testSecret = "test-secret-key"

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(testSecret, "HS256")
	require.NoError(t, err)
	return codec
}

func newTestService(t *testing.T, dir directory.Directory) *Service {
	t.Helper()
	return NewService(dir, password.NewBcryptHasher(bcrypt.MinCost), newTestCodec(t), 30*time.Minute, newTestLogger())
}

// brokenDirectory fails every lookup with a backend error
type brokenDirectory struct {
	directory.Directory
}

var errBackend = errors.New("connection refused")

func (brokenDirectory) FindByUsername(context.Context, string) (*models.User, error) {
	return nil, errBackend
}

func TestRegister_CreatesActiveUser(t *testing.T) {
	dir := directory.NewMemory()
	svc := newTestService(t, dir)

	out, err := svc.Register(context.Background(), "  alice  ", "Passw0rd")
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "alice", out.Username)
	assert.True(t, out.IsActive)
	assert.Nil(t, out.LastLogin)

	stored, err := dir.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd", stored.PasswordHash)
	assert.Zero(t, stored.LoginCount)
}

func TestRegister_ValidationOrder(t *testing.T) {
	svc := newTestService(t, directory.NewMemory())

	tests := []struct {
		name     string
		username string
		password string
		reason   string
	}{
		{"username checked before password", "ab", "short", "username_too_short"},
		{"bad charset", "al ice", "Passw0rd", "username_bad_charset"},
		{"password too short", "alice", "Pw0", "password_too_short"},
		{"password missing digit", "alice", "Password", "password_missing_digit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.password)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)
			assert.Equal(t, tt.reason, appErr.Reason)
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newTestService(t, directory.NewMemory())
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "Other1234")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUsernameTaken))
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	dir := directory.NewMemory()
	svc := newTestService(t, dir)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), "alice", "Passw0rd")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUsernameTaken))
	}
	assert.Equal(t, 1, succeeded)

	counts, err := dir.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)
}

// blindDirectory never finds a username, so every duplicate reaches Insert
type blindDirectory struct {
	*directory.Memory
}

func (blindDirectory) FindByUsername(context.Context, string) (*models.User, error) {
	return nil, directory.ErrNotFound
}

func TestRegister_InsertConflictIsUsernameTaken(t *testing.T) {
	dir := blindDirectory{directory.NewMemory()}
	svc := newTestService(t, dir)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "Other1234")
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.CodeUsernameTaken, appErr.Code)
	assert.Equal(t, MsgUsernameTaken, appErr.Message)

	counts, err := dir.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)
}

func TestRegister_DirectoryFailureIsInternal(t *testing.T) {
	svc := newTestService(t, brokenDirectory{})

	_, err := svc.Register(context.Background(), "alice", "Passw0rd")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInternalError, appErr.Code)
	assert.NotContains(t, appErr.Message, "connection refused")
	assert.ErrorIs(t, err, errBackend)
}

func TestLogin_IssuesTokenAndRecordsLogin(t *testing.T) {
	dir := directory.NewMemory()
	svc := newTestService(t, dir)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	resp, err := svc.Login(ctx, "alice", "Passw0rd", LoginOptions{RequireActive: true})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 1800, resp.ExpiresIn)

	claims, err := newTestCodec(t).Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = svc.Login(ctx, "alice", "Passw0rd", LoginOptions{})
	require.NoError(t, err)

	stored, err := dir.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.LoginCount)
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, *stored.LastLogin, stored.UpdatedAt)
}

func TestLogin_BadCredentialsIndistinguishable(t *testing.T) {
	svc := newTestService(t, directory.NewMemory())
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, "nobody", "Passw0rd", LoginOptions{})
	_, wrongErr := svc.Login(ctx, "alice", "Wrong1234", LoginOptions{})

	unknown, ok := apperrors.As(unknownErr)
	require.True(t, ok)
	wrong, ok := apperrors.As(wrongErr)
	require.True(t, ok)

	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Message, wrong.Message)
	assert.Equal(t, unknown.HTTPStatus(), wrong.HTTPStatus())
	assert.Equal(t, ReasonUnknownUser, unknown.Reason)
	assert.Equal(t, ReasonWrongPassword, wrong.Reason)
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	dir := directory.NewMemory()
	svc := newTestService(t, dir)
	ctx := context.Background()

	out, err := svc.Register(ctx, "alice", "Passw0rd")
	require.NoError(t, err)
	inactive := false
	_, err = dir.UpdateFields(ctx, out.ID, directory.Patch{IsActive: &inactive, UpdatedAt: time.Now()})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "Passw0rd", LoginOptions{RequireActive: true})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccountDeactivated))

	// the lenient entry point does not check the active flag
	resp, err := svc.Login(ctx, "alice", "Passw0rd", LoginOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	// a wrong password on a deactivated account still reads as bad credentials
	_, err = svc.Login(ctx, "alice", "Wrong1234", LoginOptions{RequireActive: true})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
}

func TestLogin_DirectoryFailureIsInternal(t *testing.T) {
	svc := newTestService(t, brokenDirectory{})

	_, err := svc.Login(context.Background(), "alice", "Passw0rd", LoginOptions{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternalError))
}
