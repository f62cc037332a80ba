package models

import "time"

// User represents a persisted account record
type User struct {
	UserID       string     `json:"id" dynamodbav:"user_id"`        // Primary Key
	Username     string     `json:"username" dynamodbav:"username"` // Unique username
	PasswordHash string     `json:"-" dynamodbav:"password_hash"`   // bcrypt hash (never in JSON)
	CreatedAt    time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" dynamodbav:"updated_at"`
	IsActive     bool       `json:"is_active" dynamodbav:"is_active"`
	LastLogin    *time.Time `json:"last_login" dynamodbav:"last_login,omitempty"`
	LoginCount   int64      `json:"login_count" dynamodbav:"login_count"`
}

// NewUser builds a fresh record for registration.
func NewUser(userID, username, passwordHash string, now time.Time) *User {
	return &User{
		UserID:       userID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
		IsActive:     true,
		LastLogin:    nil,
		LoginCount:   0,
	}
}

// UserOut is the client-safe projection of a User
type UserOut struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
}

// Projection strips the password hash and internal counters.
func (u *User) Projection() *UserOut {
	return &UserOut{
		ID:        u.UserID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
	}
}

// Projections maps a slice of records to their projections.
func Projections(users []*User) []*UserOut {
	out := make([]*UserOut, 0, len(users))
	for _, u := range users {
		out = append(out, u.Projection())
	}
	return out
}

// LoginRequest represents login request payload (JSON or form encoded)
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// RegisterRequest represents registration request payload
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserUpdate represents a partial update; nil fields are left untouched
type UserUpdate struct {
	Username *string `json:"username" validate:"omitempty"`
	IsActive *bool   `json:"is_active"`
}

// ListUsersQuery represents pagination parameters for GET /users
type ListUsersQuery struct {
	Skip  int `query:"skip" validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=1,lte=100"`
}

// TokenResponse represents a successful login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// UserCounts represents GET /users/count
type UserCounts struct {
	TotalUsers  int64 `json:"total_users"`
	ActiveUsers int64 `json:"active_users"`
}
