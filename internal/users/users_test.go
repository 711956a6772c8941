package users

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"

	"scheme-admin/internal/auth"
	"scheme-admin/internal/middleware"
	"scheme-admin/internal/models"
	"scheme-admin/internal/validation"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[string]models.User{}}
}

func (m *memoryRepo) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, mongo.ErrNoDocuments
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, mongo.ErrNoDocuments
	}
	return u, nil
}

func (m *memoryRepo) UpdatePassword(_ context.Context, id, hash string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	m.users[id] = u
	return true, nil
}

func testManager() *auth.Manager {
	return &auth.Manager{Secret: []byte("test-secret"), AccessTTL: time.Hour, Issuer: "scheme-admin"}
}

func newRouter(t *testing.T, setupKey string) (http.Handler, *Service) {
	t.Helper()
	manager := testManager()
	svc := NewService(newMemoryRepo(), manager, setupKey, time.UTC)
	h := NewHandler(svc, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Post("/admin/loginUser", h.Login)
	r.Post("/admin/registerUser", h.Register)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(manager))
		r.Get("/user/verifyToken", h.VerifyToken)
		r.Get("/user/me", h.Me)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(manager), middleware.RequireAdmin)
		r.Put("/admin/users/{id}/password", h.AdminUpdatePassword)
	})
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) models.AuthResponse {
	t.Helper()
	var res models.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return res
}

func TestRegisterWithSetupKeyGrantsAdmin(t *testing.T) {
	h, _ := newRouter(t, "open-sesame")

	rec := do(t, h, http.MethodPost, "/admin/registerUser", "", `{"name":"Asha","email":"Asha@Example.com","password":"longenough1","setupKey":"open-sesame"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeAuth(t, rec)
	if res.Token == "" {
		t.Fatalf("expected token")
	}
	if res.User.Role != models.UserRoleAdmin {
		t.Fatalf("expected admin role, got %q", res.User.Role)
	}
	if res.User.Email != "asha@example.com" {
		t.Fatalf("expected normalized email, got %q", res.User.Email)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}
}

func TestRegisterRejectsWrongSetupKey(t *testing.T) {
	h, _ := newRouter(t, "open-sesame")

	rec := do(t, h, http.MethodPost, "/admin/registerUser", "", `{"name":"Asha","email":"asha@example.com","password":"longenough1","setupKey":"guess"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegisterWithoutSetupKeyIsPlainUser(t *testing.T) {
	h, _ := newRouter(t, "")

	rec := do(t, h, http.MethodPost, "/admin/registerUser", "", `{"name":"Ravi","email":"ravi@example.com","password":"longenough1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	res := decodeAuth(t, rec)
	if res.User.Role != models.UserRoleUser {
		t.Fatalf("expected user role, got %q", res.User.Role)
	}

	rec = do(t, h, http.MethodPut, "/admin/users/"+res.User.ID+"/password", res.Token, `{"password":"anotherlong1"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _ := newRouter(t, "")
	body := `{"name":"Ravi","email":"ravi@example.com","password":"longenough1"}`

	if rec := do(t, h, http.MethodPost, "/admin/registerUser", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/admin/registerUser", "", body); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newRouter(t, "")

	rec := do(t, h, http.MethodPost, "/admin/registerUser", "", `{"name":"","email":"not-an-email","password":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/admin/registerUser", "", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestLoginAndVerify(t *testing.T) {
	h, svc := newRouter(t, "")
	if _, _, err := svc.EnsureAdmin(context.Background(), "Admin", "admin@example.com", "supersecret1"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	rec := do(t, h, http.MethodPost, "/admin/loginUser", "", `{"email":"ADMIN@example.com","password":"supersecret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeAuth(t, rec)

	rec = do(t, h, http.MethodGet, "/user/verifyToken", res.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["valid"] != true || payload["role"] != models.UserRoleAdmin || payload["sub"] != res.User.ID {
		t.Fatalf("unexpected verify payload: %v", payload)
	}

	rec = do(t, h, http.MethodGet, "/user/me", res.Token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "admin@example.com") {
		t.Fatalf("unexpected me response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, svc := newRouter(t, "")
	if _, _, err := svc.EnsureAdmin(context.Background(), "Admin", "admin@example.com", "supersecret1"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	if rec := do(t, h, http.MethodPost, "/admin/loginUser", "", `{"email":"admin@example.com","password":"wrongpass1"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/admin/loginUser", "", `{"email":"nobody@example.com","password":"supersecret1"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", rec.Code)
	}
}

func TestVerifyTokenRejectsMissingAndExpired(t *testing.T) {
	h, _ := newRouter(t, "")

	if rec := do(t, h, http.MethodGet, "/user/verifyToken", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	expired := testManager()
	expired.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := expired.NewAccessToken("u1", "a@example.com", models.UserRoleAdmin)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if rec := do(t, h, http.MethodGet, "/user/verifyToken", token, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := NewService(newMemoryRepo(), testManager(), "", time.UTC)
	ctx := context.Background()

	first, created, err := svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "supersecret1")
	if err != nil || !created {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}
	second, created, err := svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "different1")
	if err != nil || created {
		t.Fatalf("expected existing user, got created=%v err=%v", created, err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same id, got %s and %s", first.ID, second.ID)
	}
}

func TestAdminUpdatePassword(t *testing.T) {
	h, svc := newRouter(t, "")
	admin, _, err := svc.EnsureAdmin(context.Background(), "Admin", "admin@example.com", "supersecret1")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	res := decodeAuth(t, do(t, h, http.MethodPost, "/admin/loginUser", "", `{"email":"admin@example.com","password":"supersecret1"}`))

	if rec := do(t, h, http.MethodPut, "/admin/users/"+admin.ID+"/password", res.Token, `{"password":"rotated-secret1"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/admin/loginUser", "", `{"email":"admin@example.com","password":"rotated-secret1"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected login with new password, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/admin/users/missing/password", res.Token, `{"password":"rotated-secret1"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
