package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/steuerflow/taxfiling-api/internal/domain"
)

// ============================================================
// AuthStore implementation — users and credentials via PostgREST
// ============================================================

type userRow struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:        r.ID,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      domain.Role(r.Role),
		CreatedAt: parseTime(r.CreatedAt),
	}
}

type credentialRow struct {
	UserID         string `json:"user_id"`
	PasswordHash   string `json:"password_hash"`
	FailedAttempts int    `json:"failed_attempts"`
	LockedUntil    string `json:"locked_until"`
	LastLoginAt    string `json:"last_login_at"`
}

func (r credentialRow) toDomain() domain.Credential {
	return domain.Credential{
		UserID:         r.UserID,
		PasswordHash:   r.PasswordHash,
		FailedAttempts: r.FailedAttempts,
		LockedUntil:    parseTimePtr(r.LockedUntil),
		LastLoginAt:    parseTimePtr(r.LastLoginAt),
	}
}

// CreateUser inserts the account record and its credential row.
func (c *Client) CreateUser(ctx context.Context, user *domain.User, passwordHash string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.email", user.Email))

	userData := map[string]any{
		"id":         user.ID,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"role":       string(user.Role),
		"created_at": user.CreatedAt,
	}

	body, err := c.doPost(ctx, "users", userData)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	rows, err := decodeRows[userRow](body, "users")
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: fmt.Errorf("insert returned no representation")}
	}

	credData := map[string]any{
		"user_id":         user.ID,
		"password_hash":   passwordHash,
		"failed_attempts": 0,
	}
	if _, err := c.doPost(ctx, "credentials", credData); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/credentials", Err: err}
	}

	u := rows[0].toDomain()
	return &u, nil
}

// GetUserByID fetches one account record.
func (c *Client) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByID")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return c.getUser(ctx, fmt.Sprintf("users?id=eq.%s&limit=1", url.QueryEscape(userID)), userID)
}

// GetUserByEmail fetches one account record by email. A missing row is
// reported as ErrNotFound; login treats it the same as a bad password.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByEmail")
	defer span.End()

	return c.getUser(ctx, fmt.Sprintf("users?email=eq.%s&limit=1", url.QueryEscape(email)), email)
}

func (c *Client) getUser(ctx context.Context, path, id string) (*domain.User, error) {
	var user *domain.User
	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows, err := decodeRows[userRow](body, "users")
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "user", ID: id}
		}
		u := rows[0].toDomain()
		user = &u
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	return user, nil
}

// GetCredential fetches the credential row of one user.
func (c *Client) GetCredential(ctx context.Context, userID string) (*domain.Credential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCredential")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var cred *domain.Credential
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("credentials?user_id=eq.%s&limit=1", url.QueryEscape(userID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows, err := decodeRows[credentialRow](body, "credentials")
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "credential", ID: userID}
		}
		cr := rows[0].toDomain()
		cred = &cr
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/credentials", Err: err}
	}
	return cred, nil
}

// UpdateCredential writes back lockout counters and login timestamps.
func (c *Client) UpdateCredential(ctx context.Context, cred *domain.Credential) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCredential")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", cred.UserID))

	data := map[string]any{
		"failed_attempts": cred.FailedAttempts,
		"updated_at":      time.Now().UTC(),
	}
	if cred.LockedUntil != nil {
		data["locked_until"] = cred.LockedUntil
	} else {
		data["locked_until"] = nil
	}
	if cred.LastLoginAt != nil {
		data["last_login_at"] = cred.LastLoginAt
	}

	path := fmt.Sprintf("credentials?user_id=eq.%s", url.QueryEscape(cred.UserID))
	if _, err := c.doPatch(ctx, path, data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/credentials", Err: err}
	}
	return nil
}
