package domain

import "time"

// Tax form lifecycle statuses. A form is created as StatusSubmitted by
// the filing pipeline; agents move it through review.
const (
	StatusSubmitted = "submitted"
	StatusInReview  = "in_review"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// Section is one top-level branch of a tax return (personalInfo,
// incomeInfo, ...). Sections are dynamic trees: the wizard builds them
// field by field and the validator addresses leaves by key path.
type Section = map[string]any

// TaxForm is the persisted tax return, flattened per the backend
// contract: each wizard section is its own JSON column.
type TaxForm struct {
	ID            string `json:"id"`
	ApplicationID string `json:"applicationId"`
	UserID        string `json:"userId,omitempty"`
	Status        string `json:"status"`
	Language      string `json:"language"`
	CurrentStep   int    `json:"currentStep"`

	TaxYear              Section `json:"taxYear,omitempty"`
	PersonalInfo         Section `json:"personalInfo,omitempty"`
	IncomeInfo           Section `json:"incomeInfo,omitempty"`
	RentalIncome         Section `json:"rentalIncome,omitempty"`
	ForeignIncome        Section `json:"foreignIncome,omitempty"`
	Expenses             Section `json:"expenses,omitempty"`
	WorkRelatedExpenses  Section `json:"workRelatedExpenses,omitempty"`
	SpecialExpenses      Section `json:"specialExpenses,omitempty"`
	ExtraordinaryBurdens Section `json:"extraordinaryBurdens,omitempty"`
	CraftsmenServices    Section `json:"craftsmenServices,omitempty"`
	BusinessExpenses     Section `json:"businessExpenses,omitempty"`
	BusinessInfo         Section `json:"businessInfo,omitempty"`
	Signature            Section `json:"signature,omitempty"`

	PdfSummaryURL string     `json:"pdfSummaryUrl,omitempty"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// SubmissionResult is returned to the client after the submit pipeline
// finishes. UploadWarnings lists files that could not be uploaded or
// came back without a download URL; the submission itself still counts.
type SubmissionResult struct {
	ID             string   `json:"id"`
	ApplicationID  string   `json:"applicationId"`
	Status         string   `json:"status"`
	PdfSummaryURL  string   `json:"pdfSummaryUrl,omitempty"`
	UploadWarnings []string `json:"uploadWarnings,omitempty"`
}

// FileAttachment is the wire shape of a file reference inside a draft
// field. Before upload Data holds the base64 payload; after upload Data
// is dropped and URL points at the stored object.
type FileAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Data        string `json:"data,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ServiceHealth describes the health of one dependency for /healthz.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthStatus is the /healthz response.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// FilingMetrics is the snapshot served by GET /v1/metrics/filing.
type FilingMetrics struct {
	SubmissionsTotal   int64   `json:"submissions_total"`
	SubmissionErrors   int64   `json:"submission_errors"`
	ValidationFailures int64   `json:"validation_failures"`
	UploadsTotal       int64   `json:"uploads_total"`
	UploadFailureRate  float64 `json:"upload_failure_rate"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	Period             string  `json:"period"`
}
