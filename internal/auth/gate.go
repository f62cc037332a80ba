package auth

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/directory"
	"github.com/traffic-tacos/user-auth-api/internal/metrics"
	"github.com/traffic-tacos/user-auth-api/internal/token"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

// Principal is the authenticated caller.
type Principal struct {
	Username string
	UserID   string
	IsActive bool
}

// Gate turns a raw bearer token into a Principal. A token is accepted only
// while the account it names still exists and is active.
type Gate struct {
	codec  *token.Codec
	dir    directory.Directory
	logger *logrus.Logger
}

// NewGate creates an authorization gate.
func NewGate(codec *token.Codec, dir directory.Directory, logger *logrus.Logger) *Gate {
	return &Gate{codec: codec, dir: dir, logger: logger}
}

// Authenticate validates raw and re-fetches the account it names.
func (g *Gate) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	if raw == "" {
		return nil, g.reject(ReasonMissingToken, MsgNotAuthenticated, nil)
	}

	claims, err := g.codec.Parse(raw)
	if err != nil {
		return nil, g.reject(string(token.ReasonOf(err)), MsgInvalidToken, err)
	}

	user, err := g.dir.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, g.reject(ReasonUserNotFound, MsgInvalidToken, nil)
		}
		return nil, apperrors.Internal("Failed to look up user", err)
	}

	if !user.IsActive {
		metrics.RecordTokenRejection(ReasonAccountDeactivated)
		g.logger.WithField("username", user.Username).Warn("Token rejected for deactivated account")
		return nil, apperrors.NewAppError(apperrors.CodeAccountDeactivated, MsgAccountDeactivated, nil).
			WithReason(ReasonAccountDeactivated)
	}

	return &Principal{
		Username: user.Username,
		UserID:   user.UserID,
		IsActive: user.IsActive,
	}, nil
}

// AuthenticateOptional returns nil instead of an error for any rejection,
// including directory failures.
func (g *Gate) AuthenticateOptional(ctx context.Context, raw string) *Principal {
	if raw == "" {
		return nil
	}
	p, err := g.Authenticate(ctx, raw)
	if err != nil {
		return nil
	}
	return p
}

func (g *Gate) reject(reason, message string, cause error) error {
	metrics.RecordTokenRejection(reason)
	entry := g.logger.WithField("reason", reason)
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Debug("Token rejected")
	return &apperrors.AppError{
		Code:    apperrors.CodeUnauthenticated,
		Message: message,
		Reason:  reason,
		Cause:   cause,
	}
}
