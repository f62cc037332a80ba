package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/traffic-tacos/user-auth-api/internal/models"
)

// Memory is an in-process Directory for local development and tests. Records
// are returned as copies so callers never alias stored state.
type Memory struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byUsername map[string]string
	order      []string
	closed     bool
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		byID:       make(map[string]*models.User),
		byUsername: make(map[string]string),
	}
}

func (m *Memory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m.byID[id]), nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (m *Memory) Insert(_ context.Context, user *models.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byUsername[user.Username]; taken {
		return "", ErrConflict
	}
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	if _, exists := m.byID[user.UserID]; exists {
		return "", ErrConflict
	}

	m.byID[user.UserID] = clone(user)
	m.byUsername[user.Username] = user.UserID
	m.order = append(m.order, user.UserID)
	return user.UserID, nil
}

func (m *Memory) UpdateFields(_ context.Context, id string, patch Patch) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.RequireActive && !u.IsActive {
		return nil, ErrInactive
	}

	if patch.Username != nil && *patch.Username != u.Username {
		if _, taken := m.byUsername[*patch.Username]; taken {
			return nil, ErrConflict
		}
		delete(m.byUsername, u.Username)
		m.byUsername[*patch.Username] = id
		u.Username = *patch.Username
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	u.UpdatedAt = patch.UpdatedAt
	return clone(u), nil
}

func (m *Memory) RecordLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	ts := at
	u.LastLogin = &ts
	u.UpdatedAt = at
	u.LoginCount++
	return nil
}

func (m *Memory) Count(_ context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := Counts{Total: int64(len(m.byID))}
	for _, u := range m.byID {
		if u.IsActive {
			c.Active++
		}
	}
	return c, nil
}

// List returns records in insertion order.
func (m *Memory) List(_ context.Context, skip, limit int) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if skip < 0 {
		skip = 0
	}
	out := make([]*models.User, 0)
	for i := skip; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, clone(m.byID[m.order[i]]))
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func clone(u *models.User) *models.User {
	cp := *u
	if u.LastLogin != nil {
		ts := *u.LastLogin
		cp.LastLogin = &ts
	}
	return &cp
}
