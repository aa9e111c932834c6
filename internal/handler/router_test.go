package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/steuerflow/taxfiling-api/internal/domain"
	"github.com/steuerflow/taxfiling-api/internal/handler"
	"github.com/steuerflow/taxfiling-api/internal/i18n"
	"github.com/steuerflow/taxfiling-api/internal/infra/observability"
	"github.com/steuerflow/taxfiling-api/internal/infra/resilience"
	"github.com/steuerflow/taxfiling-api/internal/pdf"
	"github.com/steuerflow/taxfiling-api/internal/service"
)

type memFormStore struct {
	mu    sync.Mutex
	forms map[string]*domain.TaxForm
}

func newMemFormStore() *memFormStore {
	return &memFormStore{forms: map[string]*domain.TaxForm{}}
}

func (m *memFormStore) CreateForm(_ context.Context, form *domain.TaxForm) (*domain.TaxForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *form
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.forms[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memFormStore) GetForm(_ context.Context, formID string) (*domain.TaxForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[formID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "tax form", ID: formID}
	}
	cp := *f
	return &cp, nil
}

func (m *memFormStore) GetFormByApplicationID(_ context.Context, applicationID string) (*domain.TaxForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.forms {
		if f.ApplicationID == applicationID {
			cp := *f
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "tax form", ID: applicationID}
}

func (m *memFormStore) ListFormsByUser(_ context.Context, userID string) ([]domain.TaxForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TaxForm
	for _, f := range m.forms {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *memFormStore) ListForms(_ context.Context) ([]domain.TaxForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TaxForm
	for _, f := range m.forms {
		out = append(out, *f)
	}
	return out, nil
}

func (m *memFormStore) UpdateFormStatus(_ context.Context, formID, status string) (*domain.TaxForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[formID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "tax form", ID: formID}
	}
	f.Status = status
	f.UpdatedAt = time.Now()
	cp := *f
	return &cp, nil
}

type memAuthStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	creds map[string]*domain.Credential
}

func newMemAuthStore() *memAuthStore {
	return &memAuthStore{users: map[string]*domain.User{}, creds: map[string]*domain.Credential{}}
}

func (m *memAuthStore) CreateUser(_ context.Context, user *domain.User, hash string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	m.creds[user.ID] = &domain.Credential{UserID: user.ID, PasswordHash: hash}
	return &cp, nil
}

func (m *memAuthStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	cp := *u
	return &cp, nil
}

func (m *memAuthStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: email}
}

func (m *memAuthStore) GetCredential(_ context.Context, userID string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "credential", ID: userID}
	}
	cp := *c
	return &cp, nil
}

func (m *memAuthStore) UpdateCredential(_ context.Context, cred *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cred
	m.creds[cred.UserID] = &cp
	return nil
}

// promote flips a registered user's role, standing in for an admin
// provisioning flow that is out of band for the API.
func (m *memAuthStore) promote(userID string, role domain.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Role = role
	}
}

type memStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (m *memStorage) Upload(_ context.Context, path, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = map[string][]byte{}
	}
	m.uploads[path] = data
	return "https://storage.test/" + path, nil
}

type testAPI struct {
	router    http.Handler
	authStore *memAuthStore
	forms     *memFormStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	bundle := i18n.Load()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	authStore := newMemAuthStore()
	authSvc := service.NewAuthService(authStore, "router-test-secret", time.Hour, metrics, logger)

	forms := newMemFormStore()
	filingSvc := service.NewFilingService(
		forms, &memStorage{}, pdf.NewRenderer(bundle), bundle,
		resilience.NewBulkhead(4), service.FilingConfig{}, metrics, logger,
	)
	formsSvc := service.NewFormsService(forms, logger)

	return &testAPI{
		router:    handler.NewRouter(filingSvc, formsSvc, authSvc, metrics, logger, nil),
		authStore: authStore,
		forms:     forms,
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (a *testAPI) registerUser(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":     email,
		"password":  "correct-horse",
		"firstName": "Anna",
		"lastName":  "Schmidt",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.TokenResponse
	decode(t, rec, &resp)
	return resp.AccessToken
}

func TestRouter_Healthz(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var health domain.HealthStatus
	decode(t, rec, &health)
	if health.Status != "healthy" {
		t.Errorf("expected healthy, got %q", health.Status)
	}
}

func TestRouter_Readyz(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_Ping(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/ping", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_LanguagesIsPublic(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/v1/filings/languages", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Languages []i18n.Language `json:"languages"`
	}
	decode(t, rec, &resp)
	if len(resp.Languages) != 5 {
		t.Errorf("expected 5 languages, got %d", len(resp.Languages))
	}
	if resp.Languages[0].Code != "de" {
		t.Errorf("expected German first, got %q", resp.Languages[0].Code)
	}
}

func TestRouter_ProtectedRoutesRejectMissingToken(t *testing.T) {
	api := newTestAPI(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/auth/profile"},
		{http.MethodPost, "/v1/filings"},
		{http.MethodGet, "/v1/tax-forms/some-id"},
	}
	for _, p := range paths {
		rec := api.do(t, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestRouter_RegisterLoginProfile(t *testing.T) {
	api := newTestAPI(t)
	token := api.registerUser(t, "anna@example.test")

	rec := api.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "anna@example.test", "password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/v1/auth/profile", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", rec.Code)
	}
	var user domain.User
	decode(t, rec, &user)
	if user.Email != "anna@example.test" {
		t.Errorf("unexpected profile email %q", user.Email)
	}
	if user.Role != domain.RoleClient {
		t.Errorf("expected client role, got %q", user.Role)
	}
}

func TestRouter_FilingFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.registerUser(t, "anna@example.test")

	rec := api.do(t, http.MethodPost, "/v1/filings", token, map[string]string{"language": "en"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start filing: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var state domain.FilingState
	decode(t, rec, &state)
	if state.Step != 0 || state.StepName != "taxYear" {
		t.Fatalf("unexpected initial state: step=%d name=%q", state.Step, state.StepName)
	}

	// advancing with an empty draft is blocked with the field errors
	rec = api.do(t, http.MethodPost, "/v1/filings/"+state.ID+"/next", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("next: expected 422, got %d", rec.Code)
	}
	var invalid struct {
		Step   int            `json:"step"`
		Errors map[string]any `json:"errors"`
	}
	decode(t, rec, &invalid)
	if invalid.Step != 0 {
		t.Errorf("expected step 0, got %d", invalid.Step)
	}
	if _, ok := invalid.Errors["taxYear"]; !ok {
		t.Errorf("expected taxYear errors, got %v", invalid.Errors)
	}

	// fill the year and advance
	rec = api.do(t, http.MethodPut, "/v1/filings/"+state.ID+"/fields", token, map[string]any{
		"updates": []map[string]any{
			{"section": "taxYear", "field": "year", "value": "2023"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set fields: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, "/v1/filings/"+state.ID+"/next", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("next: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &state)
	if state.Step != 1 || state.StepName != "personalInfo" {
		t.Errorf("unexpected state after next: step=%d name=%q", state.Step, state.StepName)
	}

	rec = api.do(t, http.MethodPost, "/v1/filings/"+state.ID+"/back", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("back: expected 200, got %d", rec.Code)
	}
	decode(t, rec, &state)
	if state.Step != 0 {
		t.Errorf("expected step 0 after back, got %d", state.Step)
	}

	// a submit before the signature step is refused
	rec = api.do(t, http.MethodPost, "/v1/filings/"+state.ID+"/submit", token, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("submit: expected 409, got %d", rec.Code)
	}
}

func TestRouter_FilingIsolation(t *testing.T) {
	api := newTestAPI(t)
	anna := api.registerUser(t, "anna@example.test")
	ben := api.registerUser(t, "ben@example.test")

	rec := api.do(t, http.MethodPost, "/v1/filings", anna, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start filing: expected 201, got %d", rec.Code)
	}
	var state domain.FilingState
	decode(t, rec, &state)

	rec = api.do(t, http.MethodGet, "/v1/filings/"+state.ID, ben, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign session, got %d", rec.Code)
	}
}

func TestRouter_FormsRBAC(t *testing.T) {
	api := newTestAPI(t)
	clientToken := api.registerUser(t, "anna@example.test")
	agentToken := api.registerUser(t, "agent@example.test")

	var profile domain.User
	rec := api.do(t, http.MethodGet, "/v1/auth/profile", agentToken, nil)
	decode(t, rec, &profile)
	api.authStore.promote(profile.ID, domain.RoleTaxAgent)
	// re-login so the token carries the new role
	rec = api.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "agent@example.test", "password": "correct-horse",
	})
	var tokens domain.TokenResponse
	decode(t, rec, &tokens)
	agentToken = tokens.AccessToken

	// the review listing is closed to clients
	rec = api.do(t, http.MethodGet, "/v1/tax-forms", clientToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for client, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/v1/tax-forms", agentToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for agent, got %d: %s", rec.Code, rec.Body.String())
	}

	// client creates a form, agent moves it through review
	rec = api.do(t, http.MethodPost, "/v1/tax-forms", clientToken, map[string]any{
		"taxYear": map[string]any{"year": "2023"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create form: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.TaxForm
	decode(t, rec, &created)

	rec = api.do(t, http.MethodPatch, "/v1/tax-forms/"+created.ID+"/status", clientToken, map[string]string{
		"status": domain.StatusInReview,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for client status change, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPatch, "/v1/tax-forms/"+created.ID+"/status", agentToken, map[string]string{
		"status": domain.StatusInReview,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for agent status change, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.TaxForm
	decode(t, rec, &updated)
	if updated.Status != domain.StatusInReview {
		t.Errorf("expected in_review, got %q", updated.Status)
	}

	// an invalid transition surfaces as a 400
	rec = api.do(t, http.MethodPatch, "/v1/tax-forms/"+created.ID+"/status", agentToken, map[string]string{
		"status": domain.StatusSubmitted,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid transition, got %d", rec.Code)
	}
}

func TestRouter_FormsOwnership(t *testing.T) {
	api := newTestAPI(t)
	anna := api.registerUser(t, "anna@example.test")
	ben := api.registerUser(t, "ben@example.test")

	rec := api.do(t, http.MethodPost, "/v1/tax-forms", anna, map[string]any{
		"taxYear": map[string]any{"year": "2023"},
	})
	var created domain.TaxForm
	decode(t, rec, &created)

	rec = api.do(t, http.MethodGet, "/v1/tax-forms/"+created.ID, anna, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner read: expected 200, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/v1/tax-forms/"+created.ID, ben, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign read: expected 403, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/v1/tax-forms/application/"+created.ApplicationID, anna, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("application id read: expected 200, got %d", rec.Code)
	}
}
