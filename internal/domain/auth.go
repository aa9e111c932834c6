package domain

import "time"

// ============================================================
// Auth — Request / Response types (matches frontend API contract)
// ============================================================

// Role determines which dashboard a user sees and which routes they may call.
type Role string

const (
	RoleClient   Role = "CLIENT"
	RoleTaxAgent Role = "TAX_AGENT"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTaxAgent, RoleAdmin:
		return true
	}
	return false
}

// User is the account record returned by GET /v1/auth/profile.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body for 200/201 from login and register.
// The field name follows the frontend contract (snake_case).
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Caller identifies the authenticated principal of a request. Services
// take it explicitly instead of digging claims out of the context.
type Caller struct {
	UserID string
	Role   Role
}

// CanReview reports whether the caller may work the review queue.
func (c Caller) CanReview() bool {
	return c.Role == RoleTaxAgent || c.Role == RoleAdmin
}

// Credential represents stored login credentials.
type Credential struct {
	UserID         string     `json:"user_id"`
	PasswordHash   string     `json:"password_hash"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}
