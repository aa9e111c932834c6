package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steuerflow/taxfiling-api/internal/domain"
	"github.com/steuerflow/taxfiling-api/internal/form"
)

// storageRoot is the top-level folder of every filing in the bucket.
const storageRoot = "TaxForm"

var unsafePathRe = regexp.MustCompile(`[^a-z0-9]+`)

// pendingUpload is one attachment discovered in the draft. index is
// the position inside its attachment array.
type pendingUpload struct {
	section string
	path    form.Path
	index   int
	name    string
	content string
	ctype   string
}

// Submit runs the submission pipeline: revalidate the signature step,
// upload every attached document in batches, render and upload the PDF
// summary, persist the flattened form and close the session. Document
// upload failures do not abort the submission; they are reported back
// as warnings.
func (s *FilingService) Submit(ctx context.Context, userID, filingID string) (*domain.SubmissionResult, error) {
	ctx, span := filingTracer.Start(ctx, "FilingService.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("filing.id", filingID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("submit", time.Since(start)) }()

	sess, err := s.ownedSession(userID, filingID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.wizard.AtLastStep() {
		return nil, &domain.ErrWrongStep{Operation: "submit", Step: sess.wizard.Step}
	}
	if errs := sess.wizard.Errors(); !errs.Empty() {
		s.metrics.IncrValidationFailure("11")
		return nil, &domain.ErrFormInvalid{
			Step:   sess.wizard.Step,
			Errors: s.bundle.Localize(errs.Tree(), sess.language),
		}
	}

	applicationID := fmt.Sprintf("TAX-%d", time.Now().UnixMilli())
	folder := s.filingFolder(sess, applicationID)
	span.SetAttributes(attribute.String("application.id", applicationID))

	draft, warnings := s.uploadDocuments(ctx, sess.wizard.Draft, folder)
	sess.wizard.Draft = draft

	taxForm := s.flatten(sess, applicationID)

	// PDF failure is tolerated the same way document failures are: the
	// submission proceeds without a summary URL.
	if pdfBytes, err := s.renderer.Render(taxForm, sess.language); err != nil {
		s.logger.Error("pdf render failed",
			zap.String("application_id", applicationID),
			zap.Error(err),
		)
		warnings = append(warnings, "tax-form-summary.pdf: "+err.Error())
	} else {
		pdfPath := fmt.Sprintf("%s/tax-form-summary.pdf", folder)
		if url, err := s.storage.Upload(ctx, pdfPath, "application/pdf", pdfBytes); err != nil {
			s.metrics.IncrUpload("failed")
			s.logger.Error("pdf upload failed",
				zap.String("application_id", applicationID),
				zap.Error(err),
			)
			warnings = append(warnings, "tax-form-summary.pdf: "+err.Error())
		} else {
			s.metrics.IncrUpload("ok")
			taxForm.PdfSummaryURL = url
		}
	}

	created, err := s.forms.CreateForm(ctx, taxForm)
	if err != nil {
		s.metrics.IncrSubmission("error")
		s.metrics.IncrExternalError("supabase/tax_forms")
		s.logger.Error("submission failed",
			zap.String("application_id", applicationID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrSubmission("success")
	s.sessions.Delete(filingID)
	s.logger.Info("tax form submitted",
		zap.String("application_id", applicationID),
		zap.String("form_id", created.ID),
		zap.String("user_id", userID),
		zap.Int("upload_warnings", len(warnings)),
	)

	return &domain.SubmissionResult{
		ID:             created.ID,
		ApplicationID:  created.ApplicationID,
		Status:         created.Status,
		PdfSummaryURL:  created.PdfSummaryURL,
		UploadWarnings: warnings,
	}, nil
}

// filingFolder builds the per-submission bucket folder:
// TaxForm/<date>/<sanitized applicant name or application id>.
func (s *FilingService) filingFolder(sess *session, applicationID string) string {
	pi := sess.wizard.Draft.Section("personalInfo")
	name := strings.TrimSpace(fmt.Sprintf("%v %v", pi["firstName"], pi["lastName"]))
	slug := sanitizeName(name)
	if slug == "" {
		slug = strings.ToLower(applicationID)
	}
	return fmt.Sprintf("%s/%s/%s", storageRoot, time.Now().Format("2006-01-02"), slug)
}

func sanitizeName(name string) string {
	slug := unsafePathRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// uploadDocuments finds every attachment array in the draft, uploads
// the contents in fixed-size batches and rewrites each entry to carry
// the storage URL instead of the base64 payload. Failed files stay in
// the draft untouched and are reported as warnings.
func (s *FilingService) uploadDocuments(ctx context.Context, draft form.Draft, folder string) (form.Draft, []string) {
	var pending []pendingUpload
	draft.Walk(func(section string, path form.Path, v any) bool {
		arr, ok := v.([]any)
		if !ok {
			return true
		}
		found := false
		for i, elem := range arr {
			m, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			data, _ := m["data"].(string)
			name, _ := m["name"].(string)
			if data == "" || name == "" {
				continue
			}
			ctype, _ := m["contentType"].(string)
			pending = append(pending, pendingUpload{
				section: section,
				path:    path,
				index:   i,
				name:    name,
				content: data,
				ctype:   ctype,
			})
			found = true
		}
		return !found
	})

	if len(pending) == 0 {
		return draft, nil
	}

	urls := make([]string, len(pending))
	failures := make([]error, len(pending))

	for start := 0; start < len(pending); start += s.cfg.UploadBatchSize {
		end := start + s.cfg.UploadBatchSize
		if end > len(pending) {
			end = len(pending)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				if err := s.bulkhead.Acquire(gctx); err != nil {
					failures[i] = err
					return nil
				}
				defer s.bulkhead.Release()

				urls[i], failures[i] = s.uploadOne(gctx, folder, pending[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	var warnings []string
	for i, p := range pending {
		if failures[i] != nil {
			s.metrics.IncrUpload("failed")
			s.logger.Warn("document upload failed",
				zap.String("file", p.name),
				zap.String("category", categoryOf(p.path)),
				zap.Error(failures[i]),
			)
			warnings = append(warnings, fmt.Sprintf("%s: %v", p.name, failures[i]))
			continue
		}
		s.metrics.IncrUpload("ok")
		draft = draft.Set(p.section, p.path, replaceAttachment(draft, p, urls[i]))
	}
	return draft, warnings
}

// uploadOne decodes and stores a single attachment under
// <folder>/files/<category>/<label>-<n>, where the label is the
// kebab-cased field name and n counts from 1.
func (s *FilingService) uploadOne(ctx context.Context, folder string, p pendingUpload) (string, error) {
	raw, err := decodeBase64(p.content)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", p.name, err)
	}

	category := categoryOf(p.path)
	path := fmt.Sprintf("%s/files/%s/%s-%d", folder, category, kebabCase(category), p.index+1)
	uctx := ctx
	if s.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, s.cfg.UploadTimeout)
		defer cancel()
	}
	return s.storage.Upload(uctx, path, p.ctype, raw)
}

// categoryOf names the bucket subfolder after the attachment field
// (taxCertificate, proof, invoiceCraftsmenServices, ...).
func categoryOf(p form.Path) string {
	if len(p) == 0 {
		return "files"
	}
	return p[len(p)-1]
}

// replaceAttachment rebuilds the attachment array with entry index
// switched from payload to URL form.
func replaceAttachment(draft form.Draft, p pendingUpload, url string) []any {
	cur, _ := draft.Get(p.section, p.path)
	arr, _ := cur.([]any)
	next := make([]any, len(arr))
	copy(next, arr)
	if p.index < len(next) {
		next[p.index] = map[string]any{
			"name": p.name,
			"url":  url,
		}
	}
	return next
}

var camelBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// kebabCase turns a camelCase field name into the lower-kebab label
// used in object names (taxCertificate becomes tax-certificate).
func kebabCase(s string) string {
	return strings.ToLower(camelBoundaryRe.ReplaceAllString(s, "$1-$2"))
}

// decodeBase64 accepts both raw base64 and data URLs
// (data:application/pdf;base64,...).
func decodeBase64(s string) ([]byte, error) {
	if idx := strings.Index(s, ";base64,"); idx >= 0 {
		s = s[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}

// flatten builds the persisted record from the wizard draft. Sections
// the backend stores as their own columns are lifted out of the
// incomeInfo and expenses trees.
func (s *FilingService) flatten(sess *session, applicationID string) *domain.TaxForm {
	d := sess.wizard.Draft
	income := d.Section("incomeInfo")
	expenses := d.Section("expenses")

	now := time.Now().UTC()
	return &domain.TaxForm{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		UserID:        sess.userID,
		Status:        domain.StatusSubmitted,
		Language:      sess.language,
		CurrentStep:   sess.wizard.Step,

		TaxYear:      d.Section("taxYear"),
		PersonalInfo: d.Section("personalInfo"),
		IncomeInfo:   pickKeys(income, "employment", "business"),
		RentalIncome: pickKeys(income,
			"hasRentalProperty", "rentalIncome", "rentalCosts", "rentalPropertyAddress"),
		ForeignIncome: pickKeys(income,
			"hasForeignIncome", "foreignIncomeCountry", "foreignIncomeType",
			"foreignIncomeAmount", "foreignIncomeTaxPaid", "foreignIncomeTaxCertificateFile"),
		Expenses:             expenses,
		WorkRelatedExpenses:  subSection(expenses, "workRelatedExpenses"),
		SpecialExpenses:      subSection(expenses, "specialExpenses"),
		ExtraordinaryBurdens: subSection(expenses, "extraordinaryBurdens"),
		CraftsmenServices:    subSection(expenses, "craftsmenServices"),
		BusinessExpenses:     subSection(expenses, "businessExpenses"),
		BusinessInfo:         d.Section("businessInfo"),
		Signature:            d.Section("signature"),

		SubmittedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func pickKeys(m map[string]any, keys ...string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any)
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func subSection(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}
