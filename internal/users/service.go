// Package users implements the account management operations available to
// authenticated callers.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/auth"
	"github.com/traffic-tacos/user-auth-api/internal/credentials"
	"github.com/traffic-tacos/user-auth-api/internal/directory"
	"github.com/traffic-tacos/user-auth-api/internal/logging"
	"github.com/traffic-tacos/user-auth-api/internal/models"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

const (
	msgUserNotFound    = "User not found"
	msgInvalidID       = "Invalid user ID"
	msgEmptyUpdate     = "No fields to update"
	msgAlreadyInactive = "User is already inactive"
)

// Service exposes user records to authenticated callers.
type Service struct {
	dir    directory.Directory
	logger *logrus.Logger
	now    func() time.Time
}

// NewService creates the user management service.
func NewService(dir directory.Directory, logger *logrus.Logger) *Service {
	return &Service{
		dir:    dir,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Me returns the caller's own projection.
func (s *Service) Me(ctx context.Context, p *auth.Principal) (*models.UserOut, error) {
	return s.Get(ctx, p.UserID)
}

func (s *Service) Get(ctx context.Context, id string) (*models.UserOut, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	user, err := s.dir.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return user.Projection(), nil
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]*models.UserOut, error) {
	users, err := s.dir.List(ctx, skip, limit)
	if err != nil {
		return nil, apperrors.WrapError(err, "Failed to list users")
	}
	return models.Projections(users), nil
}

func (s *Service) Count(ctx context.Context) (*models.UserCounts, error) {
	counts, err := s.dir.Count(ctx)
	if err != nil {
		return nil, apperrors.WrapError(err, "Failed to count users")
	}
	return &models.UserCounts{TotalUsers: counts.Total, ActiveUsers: counts.Active}, nil
}

// Update applies a partial update. A new username goes through the same
// rules as registration.
func (s *Service) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.UserOut, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	patch := directory.Patch{IsActive: upd.IsActive, UpdatedAt: s.now()}
	if upd.Username != nil {
		name, err := credentials.ValidateUsername(*upd.Username)
		if err != nil {
			var rej *credentials.RejectionError
			if errors.As(err, &rej) {
				return nil, apperrors.Validation(rej.Message()).WithReason("username_" + string(rej.Reason))
			}
			return nil, apperrors.Internal("Failed to validate username", err)
		}
		patch.Username = &name
	}
	if patch.Empty() {
		return nil, apperrors.BadRequest(msgEmptyUpdate)
	}

	user, err := s.dir.UpdateFields(ctx, id, patch)
	if err != nil {
		if errors.Is(err, directory.ErrConflict) {
			return nil, apperrors.NewAppError(apperrors.CodeUsernameTaken, auth.MsgUsernameTaken, nil)
		}
		return nil, lookupError(err)
	}

	logging.WithUserID(s.logger, id).Info("User updated")
	return user.Projection(), nil
}

// Deactivate soft-deletes the account. Deactivating an inactive account is
// an error rather than a no-op.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	user, err := s.dir.FindByID(ctx, id)
	if err != nil {
		return lookupError(err)
	}
	if !user.IsActive {
		return apperrors.NewAppError(apperrors.CodeAlreadyInactive, msgAlreadyInactive, nil)
	}

	// the guard closes the window between the read above and the write
	inactive := false
	patch := directory.Patch{IsActive: &inactive, UpdatedAt: s.now(), RequireActive: true}
	if _, err := s.dir.UpdateFields(ctx, id, patch); err != nil {
		if errors.Is(err, directory.ErrInactive) {
			return apperrors.NewAppError(apperrors.CodeAlreadyInactive, msgAlreadyInactive, nil)
		}
		return lookupError(err)
	}

	logging.WithUserID(s.logger, id).WithField("username", user.Username).Info("User deactivated")
	return nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.BadRequest(msgInvalidID)
	}
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return apperrors.NotFound(msgUserNotFound)
	}
	return apperrors.Internal("User directory error", err)
}
