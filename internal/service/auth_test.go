package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/steuerflow/taxfiling-api/internal/domain"
	"github.com/steuerflow/taxfiling-api/internal/infra/observability"
	"github.com/steuerflow/taxfiling-api/internal/service"
)

type fakeAuthStore struct {
	mu    sync.Mutex
	users map[string]*domain.User       // by id
	creds map[string]*domain.Credential // by user id
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		users: map[string]*domain.User{},
		creds: map[string]*domain.Credential{},
	}
}

func (f *fakeAuthStore) CreateUser(_ context.Context, user *domain.User, hash string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	f.creds[user.ID] = &domain.Credential{UserID: user.ID, PasswordHash: hash}
	return &cp, nil
}

func (f *fakeAuthStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAuthStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: email}
}

func (f *fakeAuthStore) GetCredential(_ context.Context, userID string) (*domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "credential", ID: userID}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeAuthStore) UpdateCredential(_ context.Context, cred *domain.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *cred
	f.creds[cred.UserID] = &cp
	return nil
}

func newAuthService(store *fakeAuthStore) *service.AuthService {
	return service.NewAuthService(store, "test-secret", time.Hour, observability.NewMetrics(), zap.NewNop())
}

func register(t *testing.T, svc *service.AuthService, email string) *domain.TokenResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email:     email,
		Password:  "correct-horse",
		FirstName: "Anna",
		LastName:  "Schmidt",
	})
	require.NoError(t, err)
	return resp
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	store := newFakeAuthStore()
	svc := newAuthService(store)
	ctx := context.Background()

	resp := register(t, svc, "anna@example.test")
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, 3600, resp.ExpiresIn)

	login, err := svc.Login(ctx, &domain.LoginRequest{Email: "anna@example.test", Password: "correct-horse"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, string(domain.RoleClient), claims.Role)
	assert.Equal(t, "access", claims.Type)
}

func TestAuth_RegisterValidation(t *testing.T) {
	svc := newAuthService(newFakeAuthStore())
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.RegisterRequest
	}{
		{"bad email", domain.RegisterRequest{Email: "not-an-email", Password: "long-enough", FirstName: "A", LastName: "B"}},
		{"short password", domain.RegisterRequest{Email: "a@b.test", Password: "short", FirstName: "A", LastName: "B"}},
		{"missing name", domain.RegisterRequest{Email: "a@b.test", Password: "long-enough"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tc.req)
			var validation *domain.ErrValidation
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestAuth_RegisterDuplicateEmail(t *testing.T) {
	svc := newAuthService(newFakeAuthStore())

	register(t, svc, "anna@example.test")
	_, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email: "anna@example.test", Password: "correct-horse", FirstName: "A", LastName: "B",
	})
	var conflict *domain.ErrConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	svc := newAuthService(newFakeAuthStore())
	register(t, svc, "anna@example.test")

	_, err := svc.Login(context.Background(), &domain.LoginRequest{Email: "anna@example.test", Password: "wrong"})
	var unauthorized *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)

	_, err = svc.Login(context.Background(), &domain.LoginRequest{Email: "ghost@example.test", Password: "wrong"})
	assert.ErrorAs(t, err, &unauthorized)
}

func TestAuth_LockoutAfterFailedAttempts(t *testing.T) {
	store := newFakeAuthStore()
	svc := newAuthService(store)
	register(t, svc, "anna@example.test")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, &domain.LoginRequest{Email: "anna@example.test", Password: "wrong"})
		require.Error(t, err)
	}

	// even the right password is refused while locked
	_, err := svc.Login(ctx, &domain.LoginRequest{Email: "anna@example.test", Password: "correct-horse"})
	var unauthorized *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)
	assert.Contains(t, unauthorized.Message, "locked")
}

func TestAuth_SuccessfulLoginResetsAttempts(t *testing.T) {
	store := newFakeAuthStore()
	svc := newAuthService(store)
	resp := register(t, svc, "anna@example.test")
	ctx := context.Background()

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _ = svc.Login(ctx, &domain.LoginRequest{Email: "anna@example.test", Password: "wrong"})
	}
	_, err = svc.Login(ctx, &domain.LoginRequest{Email: "anna@example.test", Password: "correct-horse"})
	require.NoError(t, err)

	cred, err := store.GetCredential(ctx, claims.Sub)
	require.NoError(t, err)
	assert.Equal(t, 0, cred.FailedAttempts)
	assert.NotNil(t, cred.LastLoginAt)
}

func TestAuth_ValidateAccessTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(newFakeAuthStore())

	_, err := svc.ValidateAccessToken("not.a.token")
	var unauthorized *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)
}

func TestAuth_PasswordsAreHashed(t *testing.T) {
	store := newFakeAuthStore()
	svc := newAuthService(store)
	resp := register(t, svc, "anna@example.test")

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)

	cred, err := store.GetCredential(context.Background(), claims.Sub)
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", cred.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte("correct-horse")))
}

func TestAuth_ProfileUsesCache(t *testing.T) {
	store := newFakeAuthStore()
	svc := newAuthService(store)
	resp := register(t, svc, "anna@example.test")
	ctx := context.Background()

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)

	user, err := svc.Profile(ctx, claims.Sub)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.test", user.Email)

	// second hit is served from cache even if the store loses the row
	store.mu.Lock()
	delete(store.users, claims.Sub)
	store.mu.Unlock()

	cached, err := svc.Profile(ctx, claims.Sub)
	require.NoError(t, err)
	assert.Equal(t, user.ID, cached.ID)
}
