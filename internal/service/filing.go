// Package service — FilingService hosts the in-progress filing
// sessions: draft mutation, step validation and wizard navigation.
// Submission lives in submit.go.
package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/steuerflow/taxfiling-api/internal/domain"
	"github.com/steuerflow/taxfiling-api/internal/form"
	"github.com/steuerflow/taxfiling-api/internal/i18n"
	"github.com/steuerflow/taxfiling-api/internal/infra/cache"
	"github.com/steuerflow/taxfiling-api/internal/infra/observability"
	"github.com/steuerflow/taxfiling-api/internal/infra/resilience"
	"github.com/steuerflow/taxfiling-api/internal/port"
)

var filingTracer = otel.Tracer("service/filing")

// session is one live filing. The mutex serializes wizard updates;
// the wizard itself is a value type so reads under the lock can hand
// out consistent snapshots.
type session struct {
	mu        sync.Mutex
	id        string
	userID    string
	language  string
	wizard    form.Wizard
	createdAt time.Time
	updatedAt time.Time
}

// FilingConfig carries the submission pipeline knobs.
type FilingConfig struct {
	SessionTTL      time.Duration
	UploadBatchSize int
	UploadTimeout   time.Duration
}

// FilingService owns filing sessions and the submission pipeline.
type FilingService struct {
	sessions *cache.InMemory[*session]
	bundle   *i18n.Bundle
	forms    port.FormStore
	storage  port.ObjectStorage
	renderer port.SummaryRenderer
	bulkhead *resilience.Bulkhead
	cfg      FilingConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewFilingService creates a filing service.
func NewFilingService(forms port.FormStore, storage port.ObjectStorage, renderer port.SummaryRenderer, bundle *i18n.Bundle, bulkhead *resilience.Bulkhead, cfg FilingConfig, metrics *observability.Metrics, logger *zap.Logger) *FilingService {
	if cfg.UploadBatchSize <= 0 {
		cfg.UploadBatchSize = 5
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	return &FilingService{
		sessions: cache.New[*session](cfg.SessionTTL),
		bundle:   bundle,
		forms:    forms,
		storage:  storage,
		renderer: renderer,
		bulkhead: bulkhead,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// Languages lists the supported filing languages.
func (s *FilingService) Languages() []i18n.Language {
	return s.bundle.Languages()
}

// StartFiling opens a fresh wizard session for the user.
func (s *FilingService) StartFiling(ctx context.Context, userID, language string) (*domain.FilingState, error) {
	_, span := filingTracer.Start(ctx, "FilingService.StartFiling")
	defer span.End()

	now := time.Now().UTC()
	sess := &session{
		id:        uuid.New().String(),
		userID:    userID,
		language:  s.bundle.Match(language),
		wizard:    form.NewWizard(),
		createdAt: now,
		updatedAt: now,
	}
	s.sessions.Set(sess.id, sess)

	s.logger.Info("filing started",
		zap.String("filing_id", sess.id),
		zap.String("user_id", userID),
		zap.String("language", sess.language),
	)
	span.SetAttributes(attribute.String("filing.id", sess.id))

	return s.state(sess, nil), nil
}

// GetFiling returns the current wizard state.
func (s *FilingService) GetFiling(ctx context.Context, userID, filingID string) (*domain.FilingState, error) {
	_, span := filingTracer.Start(ctx, "FilingService.GetFiling")
	defer span.End()
	span.SetAttributes(attribute.String("filing.id", filingID))

	sess, err := s.ownedSession(userID, filingID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	var errs form.Errors
	if sess.wizard.ShowErrors {
		errs = sess.wizard.Errors()
	}
	return s.state(sess, errs), nil
}

// SetFields applies a batch of field updates to the draft. Updates are
// never validated here; validation runs when the user tries to leave
// the step.
func (s *FilingService) SetFields(ctx context.Context, userID, filingID string, updates []domain.FieldUpdate) (*domain.FilingState, error) {
	_, span := filingTracer.Start(ctx, "FilingService.SetFields")
	defer span.End()
	span.SetAttributes(
		attribute.String("filing.id", filingID),
		attribute.Int("update.count", len(updates)),
	)

	sess, err := s.ownedSession(userID, filingID)
	if err != nil {
		return nil, err
	}

	for _, u := range updates {
		if u.Section == "" || u.Field == "" {
			return nil, &domain.ErrValidation{Field: "updates", Message: "section and field are required"}
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, u := range updates {
		sess.wizard = sess.wizard.Apply(u.Section, form.ParsePath(u.Field), u.Value)
	}
	sess.updatedAt = time.Now().UTC()

	var errs form.Errors
	if sess.wizard.ShowErrors {
		errs = sess.wizard.Errors()
	}
	return s.state(sess, errs), nil
}

// Next validates the current step and advances on success. A blocked
// advance returns ErrFormInvalid with the localized error tree.
func (s *FilingService) Next(ctx context.Context, userID, filingID string) (*domain.FilingState, error) {
	_, span := filingTracer.Start(ctx, "FilingService.Next")
	defer span.End()
	span.SetAttributes(attribute.String("filing.id", filingID))

	sess, err := s.ownedSession(userID, filingID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.wizard.AtLastStep() {
		return nil, &domain.ErrWrongStep{Operation: "next", Step: sess.wizard.Step}
	}

	next, errs := sess.wizard.Next()
	sess.wizard = next
	sess.updatedAt = time.Now().UTC()

	if !errs.Empty() {
		s.metrics.IncrValidationFailure(strconv.Itoa(sess.wizard.Step))
		s.logger.Debug("step advance blocked",
			zap.String("filing_id", filingID),
			zap.Int("step", sess.wizard.Step),
		)
		return nil, &domain.ErrFormInvalid{
			Step:   sess.wizard.Step,
			Errors: s.bundle.Localize(errs.Tree(), sess.language),
		}
	}
	return s.state(sess, nil), nil
}

// Back moves one step towards the start. Never validates.
func (s *FilingService) Back(ctx context.Context, userID, filingID string) (*domain.FilingState, error) {
	_, span := filingTracer.Start(ctx, "FilingService.Back")
	defer span.End()
	span.SetAttributes(attribute.String("filing.id", filingID))

	sess, err := s.ownedSession(userID, filingID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.wizard = sess.wizard.Back()
	sess.updatedAt = time.Now().UTC()
	return s.state(sess, nil), nil
}

// ownedSession resolves a live session and enforces that the caller
// owns it. Filing sessions are private to the client who opened them.
func (s *FilingService) ownedSession(userID, filingID string) (*session, error) {
	sess, ok := s.sessions.Get(filingID)
	if !ok {
		s.metrics.IncrCacheMiss("session")
		return nil, &domain.ErrSessionNotFound{SessionID: filingID}
	}
	s.metrics.IncrCacheHit("session")
	s.sessions.Touch(filingID)

	if sess.userID != userID {
		return nil, &domain.ErrForbidden{Action: "access filing of another user"}
	}
	return sess, nil
}

// state builds the response snapshot. Caller must hold sess.mu unless
// the session is not yet shared.
func (s *FilingService) state(sess *session, errs form.Errors) *domain.FilingState {
	st := &domain.FilingState{
		ID:         sess.id,
		UserID:     sess.userID,
		Language:   sess.language,
		Step:       sess.wizard.Step,
		StepName:   form.StepNames[sess.wizard.Step],
		StepCount:  form.StepCount,
		ShowErrors: sess.wizard.ShowErrors,
		Draft:      sess.wizard.Draft,
		CreatedAt:  sess.createdAt,
		UpdatedAt:  sess.updatedAt,
	}
	if !errs.Empty() {
		st.Errors = s.bundle.Localize(errs.Tree(), sess.language)
	}
	return st
}
