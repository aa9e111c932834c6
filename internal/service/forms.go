package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/steuerflow/taxfiling-api/internal/domain"
	"github.com/steuerflow/taxfiling-api/internal/port"
)

var formsTracer = otel.Tracer("service/forms")

// validTransitions is the review lifecycle: submitted forms are picked
// up by an agent, then completed or rejected.
var validTransitions = map[string][]string{
	domain.StatusSubmitted: {domain.StatusInReview},
	domain.StatusInReview:  {domain.StatusCompleted, domain.StatusRejected},
}

// FormsService serves the dashboard API over persisted tax forms.
type FormsService struct {
	store  port.FormStore
	logger *zap.Logger
}

// NewFormsService creates a forms service.
func NewFormsService(store port.FormStore, logger *zap.Logger) *FormsService {
	return &FormsService{store: store, logger: logger}
}

// ListByUser returns the forms of one user. Clients may only list
// their own; agents and admins may list anyone's.
func (s *FormsService) ListByUser(ctx context.Context, caller domain.Caller, userID string) ([]domain.TaxForm, error) {
	ctx, span := formsTracer.Start(ctx, "FormsService.ListByUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if caller.UserID != userID && !caller.CanReview() {
		return nil, &domain.ErrForbidden{Action: "list forms of another user"}
	}
	return s.store.ListFormsByUser(ctx, userID)
}

// ListAll returns every form for the review dashboard.
func (s *FormsService) ListAll(ctx context.Context, caller domain.Caller) ([]domain.TaxForm, error) {
	ctx, span := formsTracer.Start(ctx, "FormsService.ListAll")
	defer span.End()

	if !caller.CanReview() {
		return nil, &domain.ErrForbidden{Action: "list all forms"}
	}
	return s.store.ListForms(ctx)
}

// Get returns one form by id, enforcing ownership for clients.
func (s *FormsService) Get(ctx context.Context, caller domain.Caller, formID string) (*domain.TaxForm, error) {
	ctx, span := formsTracer.Start(ctx, "FormsService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("form.id", formID))

	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form.UserID != caller.UserID && !caller.CanReview() {
		return nil, &domain.ErrForbidden{Action: "read form of another user"}
	}
	return form, nil
}

// GetByApplicationID resolves a form by its TAX-<timestamp> reference.
func (s *FormsService) GetByApplicationID(ctx context.Context, caller domain.Caller, applicationID string) (*domain.TaxForm, error) {
	ctx, span := formsTracer.Start(ctx, "FormsService.GetByApplicationID")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", applicationID))

	form, err := s.store.GetFormByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if form.UserID != caller.UserID && !caller.CanReview() {
		return nil, &domain.ErrForbidden{Action: "read form of another user"}
	}
	return form, nil
}

// Create persists a form that was assembled outside a wizard session,
// e.g. imported by an agent. Identifiers and timestamps are filled in
// when the payload does not carry them.
func (s *FormsService) Create(ctx context.Context, caller domain.Caller, form *domain.TaxForm) (*domain.TaxForm, error) {
	ctx, span := formsTracer.Start(ctx, "FormsService.Create")
	defer span.End()

	if form.UserID == "" {
		form.UserID = caller.UserID
	}
	if form.UserID != caller.UserID && !caller.CanReview() {
		return nil, &domain.ErrForbidden{Action: "create form for another user"}
	}

	now := time.Now().UTC()
	if form.ID == "" {
		form.ID = uuid.New().String()
	}
	if form.ApplicationID == "" {
		form.ApplicationID = "TAX-" + uuid.New().String()
	}
	if form.Status == "" {
		form.Status = domain.StatusSubmitted
	}
	if form.SubmittedAt == nil {
		form.SubmittedAt = &now
	}
	form.CreatedAt = now
	form.UpdatedAt = now

	created, err := s.store.CreateForm(ctx, form)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tax form created",
		zap.String("form_id", created.ID),
		zap.String("application_id", created.ApplicationID),
	)
	return created, nil
}

// UpdateStatus moves a form through the review lifecycle. Agents and
// admins only; transitions outside the lifecycle are rejected.
func (s *FormsService) UpdateStatus(ctx context.Context, caller domain.Caller, formID, status string) (*domain.TaxForm, error) {
	ctx, span := formsTracer.Start(ctx, "FormsService.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("form.id", formID),
		attribute.String("form.status", status),
	)

	if !caller.CanReview() {
		return nil, &domain.ErrForbidden{Action: "update form status"}
	}

	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(form.Status, status) {
		return nil, &domain.ErrValidation{
			Field:   "status",
			Message: "cannot move from " + form.Status + " to " + status,
		}
	}

	updated, err := s.store.UpdateFormStatus(ctx, formID, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("form status updated",
		zap.String("form_id", formID),
		zap.String("from", form.Status),
		zap.String("to", status),
		zap.String("by", caller.UserID),
	)
	return updated, nil
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
