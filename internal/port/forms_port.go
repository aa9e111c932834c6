package port

import (
	"context"

	"github.com/steuerflow/taxfiling-api/internal/domain"
)

// FormStore handles persisted tax form data operations.
type FormStore interface {
	CreateForm(ctx context.Context, form *domain.TaxForm) (*domain.TaxForm, error)
	GetForm(ctx context.Context, formID string) (*domain.TaxForm, error)
	GetFormByApplicationID(ctx context.Context, applicationID string) (*domain.TaxForm, error)
	ListFormsByUser(ctx context.Context, userID string) ([]domain.TaxForm, error)
	ListForms(ctx context.Context) ([]domain.TaxForm, error)
	UpdateFormStatus(ctx context.Context, formID, status string) (*domain.TaxForm, error)
}
