// Package auth implements account registration, credential login and the
// bearer-token gate that protects user endpoints.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/credentials"
	"github.com/traffic-tacos/user-auth-api/internal/directory"
	"github.com/traffic-tacos/user-auth-api/internal/logging"
	"github.com/traffic-tacos/user-auth-api/internal/metrics"
	"github.com/traffic-tacos/user-auth-api/internal/models"
	"github.com/traffic-tacos/user-auth-api/internal/password"
	"github.com/traffic-tacos/user-auth-api/internal/token"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

// Client-facing messages. Login and token failures share one message per
// category so callers cannot tell which check failed.
const (
	MsgBadCredentials     = "Incorrect username or password"
	MsgInvalidToken       = "Could not validate credentials"
	MsgNotAuthenticated   = "Not authenticated"
	MsgAccountDeactivated = "Account is deactivated"
	MsgUsernameTaken      = "Username already registered"
)

// Internal rejection reasons for logs and metrics
const (
	ReasonUnknownUser        = "unknown_user"
	ReasonWrongPassword      = "wrong_password"
	ReasonMissingToken       = "missing_token"
	ReasonUserNotFound       = "user_not_found"
	ReasonAccountDeactivated = "account_deactivated"
)

const tokenTypeBearer = "bearer"

// LoginOptions selects the strictness of a login entry point.
type LoginOptions struct {
	// RequireActive rejects inactive accounts with ACCOUNT_DEACTIVATED.
	RequireActive bool
}

// Service is the authentication core.
type Service struct {
	dir      directory.Directory
	hasher   password.Hasher
	codec    *token.Codec
	lifetime time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewService wires the authentication core.
func NewService(dir directory.Directory, hasher password.Hasher, codec *token.Codec, lifetime time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		dir:      dir,
		hasher:   hasher,
		codec:    codec,
		lifetime: lifetime,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register validates the credentials, creates an active account and returns
// its public projection.
func (s *Service) Register(ctx context.Context, username, plain string) (*models.UserOut, error) {
	username, err := credentials.Validate(username, plain)
	if err != nil {
		metrics.RecordRegistration("invalid")
		return nil, rejection(err)
	}

	_, err = s.dir.FindByUsername(ctx, username)
	switch {
	case err == nil:
		metrics.RecordRegistration("conflict")
		return nil, apperrors.NewAppError(apperrors.CodeUsernameTaken, MsgUsernameTaken, nil)
	case !errors.Is(err, directory.ErrNotFound):
		metrics.RecordRegistration("error")
		return nil, apperrors.Internal("Failed to look up user", err)
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		metrics.RecordRegistration("error")
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := models.NewUser("", username, hash, s.now())
	if _, err := s.dir.Insert(ctx, user); err != nil {
		if errors.Is(err, directory.ErrConflict) {
			// lost a race with a concurrent registration
			metrics.RecordRegistration("conflict")
			return nil, apperrors.NewAppError(apperrors.CodeUsernameTaken, MsgUsernameTaken, nil)
		}
		metrics.RecordRegistration("error")
		return nil, apperrors.Internal("Failed to create user", err)
	}

	metrics.RecordRegistration("success")
	logging.WithUserID(s.logger, user.UserID).WithField("username", user.Username).Info("User registered")

	return user.Projection(), nil
}

// Login verifies the credentials, records the login and issues an access
// token whose subject is the username.
func (s *Service) Login(ctx context.Context, username, plain string, opts LoginOptions) (*models.TokenResponse, error) {
	variant := "form"
	if opts.RequireActive {
		variant = "json"
	}

	user, err := s.dir.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, s.loginRejected(variant, username, ReasonUnknownUser)
		}
		metrics.RecordLoginAttempt(variant, "error")
		return nil, apperrors.Internal("Failed to look up user", err)
	}

	if !s.hasher.Verify(plain, user.PasswordHash) {
		return nil, s.loginRejected(variant, username, ReasonWrongPassword)
	}

	if opts.RequireActive && !user.IsActive {
		metrics.RecordLoginAttempt(variant, ReasonAccountDeactivated)
		s.logger.WithField("username", username).Warn("Login rejected for deactivated account")
		return nil, apperrors.NewAppError(apperrors.CodeAccountDeactivated, MsgAccountDeactivated, nil).
			WithReason(ReasonAccountDeactivated)
	}

	if err := s.dir.RecordLogin(ctx, user.UserID, s.now()); err != nil {
		metrics.RecordLoginAttempt(variant, "error")
		return nil, apperrors.Internal("Failed to record login", err)
	}

	issued, err := s.codec.Issue(user.Username, s.lifetime)
	if err != nil {
		metrics.RecordLoginAttempt(variant, "error")
		return nil, apperrors.Internal("Failed to issue token", err)
	}

	metrics.RecordLoginAttempt(variant, "success")
	logging.WithUserID(s.logger, user.UserID).WithFields(logrus.Fields{
		"username": user.Username,
		"variant":  variant,
	}).Info("User logged in successfully")

	return &models.TokenResponse{
		AccessToken: issued.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   issued.ExpiresIn,
	}, nil
}

func (s *Service) loginRejected(variant, username, reason string) error {
	metrics.RecordLoginAttempt(variant, reason)
	s.logger.WithFields(logrus.Fields{
		"username": username,
		"reason":   reason,
	}).Warn("Login rejected")
	return apperrors.Unauthenticated(MsgBadCredentials, reason)
}

// rejection converts a credential rule violation into a validation error.
func rejection(err error) error {
	var rej *credentials.RejectionError
	if errors.As(err, &rej) {
		return apperrors.Validation(rej.Message()).
			WithReason(rej.Field + "_" + string(rej.Reason)).
			WithDetails(map[string]string{"field": rej.Field, "reason": string(rej.Reason)})
	}
	return apperrors.Internal("Failed to validate credentials", err)
}
