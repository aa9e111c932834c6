package domain

import "time"

// FieldUpdate is one field write against a filing draft, as carried by
// PUT /v1/filings/{id}/fields. Field uses dotted notation relative to
// the section (address.street, children.0.taxId).
type FieldUpdate struct {
	Section string `json:"section"`
	Field   string `json:"field"`
	Value   any    `json:"value"`
}

// FilingState is the wizard state returned by every filing endpoint.
// Errors is present only while the last advance was blocked; messages
// are already localized to the filing's language.
type FilingState struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Language   string         `json:"language"`
	Step       int            `json:"step"`
	StepName   string         `json:"stepName"`
	StepCount  int            `json:"stepCount"`
	ShowErrors bool           `json:"showErrors"`
	Errors     map[string]any `json:"errors,omitempty"`
	Draft      map[string]any `json:"draft"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}
