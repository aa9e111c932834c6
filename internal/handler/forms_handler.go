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
// 3. Tax forms
// ============================================================

type formListResponse struct {
	Forms []domain.TaxForm `json:"forms"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func listFormsByUserHandler(formsSvc *service.FormsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tax-forms/user/{userId}")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		caller := CallerFromContext(ctx)
		forms, err := formsSvc.ListByUser(ctx, caller, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if forms == nil {
			forms = []domain.TaxForm{}
		}

		writeJSON(w, http.StatusOK, formListResponse{Forms: forms})
	}
}

func listFormsHandler(formsSvc *service.FormsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tax-forms")
		defer span.End()

		caller := CallerFromContext(ctx)
		forms, err := formsSvc.ListAll(ctx, caller)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if forms == nil {
			forms = []domain.TaxForm{}
		}

		writeJSON(w, http.StatusOK, formListResponse{Forms: forms})
	}
}

func getFormHandler(formsSvc *service.FormsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tax-forms/{formId}")
		defer span.End()

		formID := chi.URLParam(r, "formId")
		span.SetAttributes(attribute.String("form.id", formID))

		caller := CallerFromContext(ctx)
		form, err := formsSvc.Get(ctx, caller, formID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, form)
	}
}

func getFormByApplicationIDHandler(formsSvc *service.FormsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tax-forms/application/{applicationId}")
		defer span.End()

		applicationID := chi.URLParam(r, "applicationId")
		span.SetAttributes(attribute.String("application.id", applicationID))

		caller := CallerFromContext(ctx)
		form, err := formsSvc.GetByApplicationID(ctx, caller, applicationID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, form)
	}
}

func createFormHandler(formsSvc *service.FormsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tax-forms")
		defer span.End()

		var form domain.TaxForm
		if err := decodeBody(r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		caller := CallerFromContext(ctx)
		created, err := formsSvc.Create(ctx, caller, &form)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func updateFormStatusHandler(formsSvc *service.FormsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/tax-forms/{formId}/status")
		defer span.End()

		formID := chi.URLParam(r, "formId")
		span.SetAttributes(attribute.String("form.id", formID))

		var req updateStatusRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Status == "" {
			writeError(w, http.StatusBadRequest, "status is required")
			return
		}

		caller := CallerFromContext(ctx)
		updated, err := formsSvc.UpdateStatus(ctx, caller, formID, req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}
