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
// FormStore implementation — tax form CRUD via PostgREST
// ============================================================

// taxFormRow maps tax_forms table columns to our domain. Section
// columns are jsonb; timestamps arrive as strings and are parsed
// leniently because PostgREST emits them with and without zone.
type taxFormRow struct {
	ID            string         `json:"id"`
	ApplicationID string         `json:"application_id"`
	UserID        string         `json:"user_id"`
	Status        string         `json:"status"`
	Language      string         `json:"language"`
	CurrentStep   int            `json:"current_step"`
	TaxYear       map[string]any `json:"tax_year"`
	PersonalInfo  map[string]any `json:"personal_info"`
	IncomeInfo    map[string]any `json:"income_info"`
	RentalIncome  map[string]any `json:"rental_income"`
	ForeignIncome map[string]any `json:"foreign_income"`
	Expenses      map[string]any `json:"expenses"`
	WorkRelated   map[string]any `json:"work_related_expenses"`
	Special       map[string]any `json:"special_expenses"`
	Extraordinary map[string]any `json:"extraordinary_burdens"`
	Craftsmen     map[string]any `json:"craftsmen_services"`
	BusinessExp   map[string]any `json:"business_expenses"`
	BusinessInfo  map[string]any `json:"business_info"`
	Signature     map[string]any `json:"signature"`
	PdfSummaryURL string         `json:"pdf_summary_url"`
	SubmittedAt   string         `json:"submitted_at"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

func (r taxFormRow) toDomain() domain.TaxForm {
	return domain.TaxForm{
		ID:                   r.ID,
		ApplicationID:        r.ApplicationID,
		UserID:               r.UserID,
		Status:               r.Status,
		Language:             r.Language,
		CurrentStep:          r.CurrentStep,
		TaxYear:              r.TaxYear,
		PersonalInfo:         r.PersonalInfo,
		IncomeInfo:           r.IncomeInfo,
		RentalIncome:         r.RentalIncome,
		ForeignIncome:        r.ForeignIncome,
		Expenses:             r.Expenses,
		WorkRelatedExpenses:  r.WorkRelated,
		SpecialExpenses:      r.Special,
		ExtraordinaryBurdens: r.Extraordinary,
		CraftsmenServices:    r.Craftsmen,
		BusinessExpenses:     r.BusinessExp,
		BusinessInfo:         r.BusinessInfo,
		Signature:            r.Signature,
		PdfSummaryURL:        r.PdfSummaryURL,
		SubmittedAt:          parseTimePtr(r.SubmittedAt),
		CreatedAt:            parseTime(r.CreatedAt),
		UpdatedAt:            parseTime(r.UpdatedAt),
	}
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02T15:04:05", s)
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

// CreateForm persists a submitted tax form.
func (c *Client) CreateForm(ctx context.Context, form *domain.TaxForm) (*domain.TaxForm, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateForm")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", form.ApplicationID))

	data := map[string]any{
		"id":                    form.ID,
		"application_id":        form.ApplicationID,
		"user_id":               form.UserID,
		"status":                form.Status,
		"language":              form.Language,
		"current_step":          form.CurrentStep,
		"tax_year":              form.TaxYear,
		"personal_info":         form.PersonalInfo,
		"income_info":           form.IncomeInfo,
		"rental_income":         form.RentalIncome,
		"foreign_income":        form.ForeignIncome,
		"expenses":              form.Expenses,
		"work_related_expenses": form.WorkRelatedExpenses,
		"special_expenses":      form.SpecialExpenses,
		"extraordinary_burdens": form.ExtraordinaryBurdens,
		"craftsmen_services":    form.CraftsmenServices,
		"business_expenses":     form.BusinessExpenses,
		"business_info":         form.BusinessInfo,
		"signature":             form.Signature,
		"pdf_summary_url":       form.PdfSummaryURL,
		"submitted_at":          form.SubmittedAt,
		"created_at":            form.CreatedAt,
		"updated_at":            form.UpdatedAt,
	}

	var created *domain.TaxForm
	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "tax_forms", data)
		if err != nil {
			return err
		}
		rows, err := decodeRows[taxFormRow](body, "tax_forms")
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("tax_forms insert returned no representation")
		}
		f := rows[0].toDomain()
		created = &f
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/tax_forms", Err: err}
	}
	return created, nil
}

// GetForm fetches one tax form by its primary key.
func (c *Client) GetForm(ctx context.Context, formID string) (*domain.TaxForm, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetForm")
	defer span.End()
	span.SetAttributes(attribute.String("form.id", formID))

	return c.getOne(ctx, fmt.Sprintf("tax_forms?id=eq.%s&limit=1", url.QueryEscape(formID)), formID)
}

// GetFormByApplicationID fetches one tax form by its TAX-<timestamp> id.
func (c *Client) GetFormByApplicationID(ctx context.Context, applicationID string) (*domain.TaxForm, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetFormByApplicationID")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", applicationID))

	return c.getOne(ctx, fmt.Sprintf("tax_forms?application_id=eq.%s&limit=1", url.QueryEscape(applicationID)), applicationID)
}

func (c *Client) getOne(ctx context.Context, path, id string) (*domain.TaxForm, error) {
	var form *domain.TaxForm
	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows, err := decodeRows[taxFormRow](body, "tax_forms")
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "tax form", ID: id}
		}
		f := rows[0].toDomain()
		form = &f
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/tax_forms", Err: err}
	}
	return form, nil
}

// ListFormsByUser fetches all tax forms of one user, newest first.
func (c *Client) ListFormsByUser(ctx context.Context, userID string) ([]domain.TaxForm, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListFormsByUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("tax_forms?user_id=eq.%s&order=created_at.desc", url.QueryEscape(userID))
	return c.list(ctx, path)
}

// ListForms fetches every tax form, newest first. Agent dashboard only.
func (c *Client) ListForms(ctx context.Context) ([]domain.TaxForm, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListForms")
	defer span.End()

	return c.list(ctx, "tax_forms?order=created_at.desc")
}

func (c *Client) list(ctx context.Context, path string) ([]domain.TaxForm, error) {
	var forms []domain.TaxForm
	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows, err := decodeRows[taxFormRow](body, "tax_forms")
		if err != nil {
			return err
		}
		forms = make([]domain.TaxForm, 0, len(rows))
		for _, r := range rows {
			forms = append(forms, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/tax_forms", Err: err}
	}
	return forms, nil
}

// UpdateFormStatus moves a form through the review lifecycle and
// returns the updated record.
func (c *Client) UpdateFormStatus(ctx context.Context, formID, status string) (*domain.TaxForm, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateFormStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("form.id", formID),
		attribute.String("form.status", status),
	)

	var form *domain.TaxForm
	err := c.execute(ctx, func() error {
		body, err := c.doPatch(ctx, fmt.Sprintf("tax_forms?id=eq.%s", url.QueryEscape(formID)), map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		rows, err := decodeRows[taxFormRow](body, "tax_forms")
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "tax form", ID: formID}
		}
		f := rows[0].toDomain()
		form = &f
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/tax_forms", Err: err}
	}
	return form, nil
}
