package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/steuerflow/taxfiling-api/internal/domain"
	"github.com/steuerflow/taxfiling-api/internal/service"
)

// ============================================================
// 2. Filing wizard
// ============================================================

type startFilingRequest struct {
	Language string `json:"language"`
}

type setFieldsRequest struct {
	Updates []domain.FieldUpdate `json:"updates"`
}

func languagesHandler(filingSvc *service.FilingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/filings/languages")
		defer span.End()

		writeJSON(w, http.StatusOK, map[string]any{
			"languages": filingSvc.Languages(),
		})
	}
}

func startFilingHandler(filingSvc *service.FilingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/filings")
		defer span.End()

		var req startFilingRequest
		if r.ContentLength > 0 {
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		caller := CallerFromContext(ctx)
		state, err := filingSvc.StartFiling(ctx, caller.UserID, req.Language)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("filing.id", state.ID))

		writeJSON(w, http.StatusCreated, state)
	}
}

func getFilingHandler(filingSvc *service.FilingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/filings/{filingId}")
		defer span.End()

		filingID := chi.URLParam(r, "filingId")
		span.SetAttributes(attribute.String("filing.id", filingID))

		caller := CallerFromContext(ctx)
		state, err := filingSvc.GetFiling(ctx, caller.UserID, filingID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, state)
	}
}

func setFieldsHandler(filingSvc *service.FilingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/filings/{filingId}/fields")
		defer span.End()

		filingID := chi.URLParam(r, "filingId")
		span.SetAttributes(attribute.String("filing.id", filingID))

		var req setFieldsRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Updates) == 0 {
			writeError(w, http.StatusBadRequest, "updates must not be empty")
			return
		}

		caller := CallerFromContext(ctx)
		state, err := filingSvc.SetFields(ctx, caller.UserID, filingID, req.Updates)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, state)
	}
}

func nextStepHandler(filingSvc *service.FilingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/filings/{filingId}/next")
		defer span.End()

		filingID := chi.URLParam(r, "filingId")
		span.SetAttributes(attribute.String("filing.id", filingID))

		caller := CallerFromContext(ctx)
		state, err := filingSvc.Next(ctx, caller.UserID, filingID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, state)
	}
}

func backStepHandler(filingSvc *service.FilingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/filings/{filingId}/back")
		defer span.End()

		filingID := chi.URLParam(r, "filingId")
		span.SetAttributes(attribute.String("filing.id", filingID))

		caller := CallerFromContext(ctx)
		state, err := filingSvc.Back(ctx, caller.UserID, filingID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, state)
	}
}

func submitFilingHandler(filingSvc *service.FilingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/filings/{filingId}/submit")
		defer span.End()

		filingID := chi.URLParam(r, "filingId")
		span.SetAttributes(attribute.String("filing.id", filingID))

		caller := CallerFromContext(ctx)
		result, err := filingSvc.Submit(ctx, caller.UserID, filingID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("application.id", result.ApplicationID))

		writeJSON(w, http.StatusCreated, result)
	}
}
