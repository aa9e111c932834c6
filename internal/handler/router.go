package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/steuerflow/taxfiling-api/internal/domain"
	"github.com/steuerflow/taxfiling-api/internal/infra/observability"
	"github.com/steuerflow/taxfiling-api/internal/service"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract defined for the SteuerFlow frontend.
func NewRouter(filingSvc *service.FilingService, formsSvc *service.FormsService, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(formsSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Authentication
		// POST /v1/auth/register
		// POST /v1/auth/login
		// GET  /v1/auth/profile (protected)
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			// Public routes
			r.Post("/register", authRegisterHandler(authSvc, logger))
			r.Post("/login", authLoginHandler(authSvc, logger))

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(authSvc, logger))
				r.Get("/profile", authProfileHandler(authSvc, logger))
			})
		})

		// =============================================
		// 2. Filing wizard (protected)
		// =============================================
		r.Get("/filings/languages", languagesHandler(filingSvc, logger))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			r.Post("/filings", startFilingHandler(filingSvc, logger))
			r.Get("/filings/{filingId}", getFilingHandler(filingSvc, logger))
			r.Put("/filings/{filingId}/fields", setFieldsHandler(filingSvc, logger))
			r.Post("/filings/{filingId}/next", nextStepHandler(filingSvc, logger))
			r.Post("/filings/{filingId}/back", backStepHandler(filingSvc, logger))
			r.Post("/filings/{filingId}/submit", submitFilingHandler(filingSvc, logger))
		})

		// =============================================
		// 3. Tax forms (protected)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			r.Get("/tax-forms/user/{userId}", listFormsByUserHandler(formsSvc, logger))
			r.Get("/tax-forms/application/{applicationId}", getFormByApplicationIDHandler(formsSvc, logger))
			r.Get("/tax-forms/{formId}", getFormHandler(formsSvc, logger))
			r.Post("/tax-forms", createFormHandler(formsSvc, logger))

			// Review routes for tax agents and admins
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(logger, domain.RoleTaxAgent, domain.RoleAdmin))
				r.Get("/tax-forms", listFormsHandler(formsSvc, logger))
				r.Patch("/tax-forms/{formId}/status", updateFormStatusHandler(formsSvc, logger))
			})
		})

		// =============================================
		// 4. Metrics
		// GET /v1/metrics/filing
		// =============================================
		r.Get("/metrics/filing", filingMetricsHandler(metrics, logger))
	})

	return r
}

// ============================================================
// Metrics & Health
// ============================================================

func healthzHandler(formsSvc *service.FormsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "taxfiling-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if formsSvc != nil {
			start := time.Now()
			probe := domain.Caller{UserID: "health-check", Role: domain.RoleAdmin}
			_, err := formsSvc.ListAll(ctx, probe)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func filingMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetFilingSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}

// ============================================================
// Probes
// ============================================================

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
