package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/clinic-booking/internal/auth"
	"github.com/caredesk/clinic-booking/internal/news"
)

type memUsers struct {
	byEmail map[string]*auth.User
}

func (m *memUsers) CreateUser(_ context.Context, u *auth.User) (*auth.User, error) {
	if _, ok := m.byEmail[u.Email]; ok {
		return nil, auth.ErrEmailTaken
	}
	cp := *u
	cp.ID = uuid.New()
	m.byEmail[cp.Email] = &cp
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*auth.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	u, err := m.GetUserByID(context.Background(), id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, name, phone string) (*auth.User, error) {
	u, err := m.GetUserByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	u.Name, u.Phone = name, phone
	return u, nil
}

type noopMailer struct{}

func (noopMailer) SendOTP(string, string) error { return nil }

type memArticles struct {
	news.Repository
}

func (memArticles) List(context.Context, bool, int, int) ([]news.Article, int, error) {
	return nil, 0, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	authSvc := auth.NewService(
		&memUsers{byEmail: map[string]*auth.User{}},
		auth.NewTokens("test-secret", time.Hour),
		auth.NewOTPStore(client, 5*time.Minute),
		noopMailer{},
		zerolog.Nop(),
	)

	return NewRouter(RouterConfig{
		Auth:    authSvc,
		News:    news.NewService(memArticles{}),
		Redis:   client,
		Log:     zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func registerAndLogin(t *testing.T, router http.Handler) string {
	t.Helper()
	rec, _ := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "An", "email": "an@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "an@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := env.Data.(map[string]any)
	return data["token"].(string)
}

func TestRouter_RegisterLoginProfile(t *testing.T) {
	router := testRouter(t)
	token := registerAndLogin(t, router)

	rec, env := doJSON(t, router, http.MethodGet, "/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	profile := env.Data.(map[string]any)
	assert.Equal(t, "an@example.com", profile["email"])
	assert.Equal(t, "patient", profile["role"])
}

func TestRouter_EnvelopeOnErrors(t *testing.T) {
	router := testRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)
	assert.Nil(t, env.Data)
}

func TestRouter_AuthRequired(t *testing.T) {
	router := testRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	rec, _ = doJSON(t, router, http.MethodGet, "/auth/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RoleEnforced(t *testing.T) {
	router := testRouter(t)
	token := registerAndLogin(t, router) // patient

	rec, env := doJSON(t, router, http.MethodGet, "/news/admin", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, env.Success)
}

func TestRouter_PublicNewsOpen(t *testing.T) {
	router := testRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/news/all", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestRequestID_SetAndHonored(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/news/all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/news/all", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
