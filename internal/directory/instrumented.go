package directory

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/traffic-tacos/user-auth-api/internal/metrics"
	"github.com/traffic-tacos/user-auth-api/internal/models"
	"github.com/traffic-tacos/user-auth-api/internal/tracing"
)

// Instrumented wraps a Directory with a per-call deadline, a span and a
// latency observation for every operation.
type Instrumented struct {
	next    Directory
	backend string
	timeout time.Duration
}

// Instrument wraps next. A zero timeout leaves the caller's deadline alone.
func Instrument(next Directory, backend string, timeout time.Duration) *Instrumented {
	return &Instrumented{next: next, backend: backend, timeout: timeout}
}

func (i *Instrumented) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "directory."+op)
	defer span.End()
	span.SetAttributes(attribute.String("directory.backend", i.backend))

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	metrics.RecordDirectoryOperation(op, outcome(err), time.Since(start))

	if outcome(err) == "error" {
		tracing.RecordError(span, err)
	}
	return err
}

// outcome buckets an error for metric labels. Not-found and conflict are
// expected answers, not failures.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func (i *Instrumented) FindByUsername(ctx context.Context, username string) (user *models.User, err error) {
	err = i.observe(ctx, "find_by_username", func(ctx context.Context) error {
		user, err = i.next.FindByUsername(ctx, username)
		return err
	})
	return user, err
}

func (i *Instrumented) FindByID(ctx context.Context, id string) (user *models.User, err error) {
	err = i.observe(ctx, "find_by_id", func(ctx context.Context) error {
		user, err = i.next.FindByID(ctx, id)
		return err
	})
	return user, err
}

func (i *Instrumented) Insert(ctx context.Context, u *models.User) (id string, err error) {
	err = i.observe(ctx, "insert", func(ctx context.Context) error {
		id, err = i.next.Insert(ctx, u)
		return err
	})
	return id, err
}

func (i *Instrumented) UpdateFields(ctx context.Context, id string, patch Patch) (user *models.User, err error) {
	err = i.observe(ctx, "update_fields", func(ctx context.Context) error {
		user, err = i.next.UpdateFields(ctx, id, patch)
		return err
	})
	return user, err
}

func (i *Instrumented) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return i.observe(ctx, "record_login", func(ctx context.Context) error {
		return i.next.RecordLogin(ctx, id, at)
	})
}

func (i *Instrumented) Count(ctx context.Context) (counts Counts, err error) {
	err = i.observe(ctx, "count", func(ctx context.Context) error {
		counts, err = i.next.Count(ctx)
		return err
	})
	return counts, err
}

func (i *Instrumented) List(ctx context.Context, skip, limit int) (users []*models.User, err error) {
	err = i.observe(ctx, "list", func(ctx context.Context) error {
		users, err = i.next.List(ctx, skip, limit)
		return err
	})
	return users, err
}

func (i *Instrumented) Ping(ctx context.Context) error {
	return i.observe(ctx, "ping", i.next.Ping)
}

func (i *Instrumented) Close() error {
	return i.next.Close()
}
