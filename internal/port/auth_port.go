package port

import (
	"context"

	"github.com/steuerflow/taxfiling-api/internal/domain"
)

// AuthStore handles user account and credential data operations.
type AuthStore interface {
	CreateUser(ctx context.Context, user *domain.User, passwordHash string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetCredential(ctx context.Context, userID string) (*domain.Credential, error)
	UpdateCredential(ctx context.Context, cred *domain.Credential) error
}
