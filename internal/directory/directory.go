// Package directory is the durable store of user records. The authentication
// core depends only on the Directory interface; backends are chosen at
// startup.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/traffic-tacos/user-auth-api/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("directory: user not found")
	// ErrConflict is returned when a write would duplicate a username.
	ErrConflict = errors.New("directory: username already exists")
	// ErrInactive is returned when a patch requires an active account and
	// the account is already inactive.
	ErrInactive = errors.New("directory: user is inactive")
	// ErrClosed is returned by Ping after Close.
	ErrClosed = errors.New("directory: closed")
)

// Counts summarizes the directory contents.
type Counts struct {
	Total  int64
	Active int64
}

// Patch is a partial update. Nil fields are left untouched; UpdatedAt is
// always written. With RequireActive set the write only applies to an
// active account and fails with ErrInactive otherwise.
type Patch struct {
	Username      *string
	IsActive      *bool
	UpdatedAt     time.Time
	RequireActive bool
}

// Empty reports whether the patch changes no user-visible field.
func (p Patch) Empty() bool {
	return p.Username == nil && p.IsActive == nil
}

// Directory is the persistence contract for user records.
type Directory interface {
	// FindByUsername returns ErrNotFound when absent.
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// FindByID returns ErrNotFound when absent.
	FindByID(ctx context.Context, id string) (*models.User, error)
	// Insert assigns an identifier when user.UserID is empty and returns it.
	// A duplicate username yields ErrConflict even under concurrent inserts.
	Insert(ctx context.Context, user *models.User) (string, error)
	// UpdateFields applies patch and returns the updated record.
	UpdateFields(ctx context.Context, id string, patch Patch) (*models.User, error)
	// RecordLogin atomically increments login_count and sets last_login and
	// updated_at to at.
	RecordLogin(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (Counts, error)
	List(ctx context.Context, skip, limit int) ([]*models.User, error)
	Ping(ctx context.Context) error
	Close() error
}
