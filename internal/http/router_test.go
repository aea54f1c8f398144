package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/possibilitysolutions/useradmin/internal/auth"
	"github.com/possibilitysolutions/useradmin/internal/config"
	"github.com/possibilitysolutions/useradmin/internal/domain/user"
	apphttp "github.com/possibilitysolutions/useradmin/internal/http"
	"github.com/possibilitysolutions/useradmin/internal/repo/memory"
	"github.com/possibilitysolutions/useradmin/internal/security"
	"github.com/possibilitysolutions/useradmin/internal/tokens"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		Env:                  "test",
		JWTSecret:            "test-secret-key",
		JWTAccessTTLMinutes:  60,
		AuthRateLimit:        1000,
		AuthRateWindowSecond: 60,
	}
}

// full stack on the in-memory store: real router, middleware, handlers,
// token manager and denylist; only postgres and redis are swapped out.
func newTestStack(t *testing.T) (*gin.Engine, *memory.UsersRepo) {
	t.Helper()

	cfg := testConfig()
	users := memory.NewUsersRepo()

	router := apphttp.NewRouter(apphttp.RouterOptions{
		Users:  users,
		Tokens: tokens.NewMemoryDenylist(),
		JWT:    auth.NewManager(cfg.JWTSecret, cfg.AccessTTL()),
		Cfg:    cfg,
	})

	return router, users
}

func seedAdmin(t *testing.T, users *memory.UsersRepo) user.User {
	t.Helper()

	hash, err := security.HashPassword("admin-password")

	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}

	admin, err := users.Create(context.Background(), "Admin", "admin@example.com", hash, user.RoleAdmin)

	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	return admin
}

func do(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Token   string      `json:"token"`
	User    user.User   `json:"user"`
	Users   []user.User `json:"users"`
	Count   int         `json:"count"`
}

func mustJSON(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()

	var out apiResponse

	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v, body=%s", err, w.Body.String())
	}

	return out
}

func mustStatus(t *testing.T, w *httptest.ResponseRecorder, want int, step string) {
	t.Helper()

	if w.Code != want {
		t.Fatalf("%s: got status %d, want %d, body=%s", step, w.Code, want, w.Body.String())
	}
}

// The end-to-end account lifecycle: register, login, introspect, block,
// re-login rejected, unblock, update, delete.
func TestAccountLifecycleFlow(t *testing.T) {
	router, users := newTestStack(t)
	admin := seedAdmin(t, users)

	// register
	w := do(router, http.MethodPost, "/register", `{"name":"A","email":"a@x.com","password":"secret123"}`, "")
	mustStatus(t, w, http.StatusCreated, "register")

	resp := mustJSON(t, w)

	if resp.User.Role != user.RoleUser || !resp.User.Status {
		t.Fatalf("register: unexpected user %+v", resp.User)
	}

	targetID := resp.User.ID

	// duplicate registration never creates a second row
	w = do(router, http.MethodPost, "/register", `{"name":"A2","email":"a@x.com","password":"secret123"}`, "")
	mustStatus(t, w, http.StatusUnprocessableEntity, "duplicate register")

	// login on the user portal
	w = do(router, http.MethodPost, "/login", `{"email":"a@x.com","password":"secret123"}`, "")
	mustStatus(t, w, http.StatusOK, "login")

	userToken := mustJSON(t, w).Token

	if userToken == "" {
		t.Fatal("login returned no token")
	}

	// identity check
	w = do(router, http.MethodGet, "/me", "", userToken)
	mustStatus(t, w, http.StatusOK, "me")

	if got := mustJSON(t, w).User; got.Role != user.RoleUser || got.ID != targetID {
		t.Fatalf("me: unexpected user %+v", got)
	}

	// a user token cannot touch the admin surface
	w = do(router, http.MethodGet, "/admin/users", "", userToken)
	mustStatus(t, w, http.StatusForbidden, "user token on admin surface")

	// admin portal login
	w = do(router, http.MethodPost, "/admin/login", `{"email":"admin@example.com","password":"admin-password"}`, "")
	mustStatus(t, w, http.StatusOK, "admin login")

	adminToken := mustJSON(t, w).Token

	// listing shows the one non-admin user
	w = do(router, http.MethodGet, "/admin/users", "", adminToken)
	mustStatus(t, w, http.StatusOK, "list users")

	if resp = mustJSON(t, w); resp.Count != 1 || resp.Users[0].ID != targetID {
		t.Fatalf("list: unexpected payload %s", w.Body.String())
	}

	// admin accounts are invisible targets
	w = do(router, http.MethodGet, "/admin/users/"+admin.ID, "", adminToken)
	mustStatus(t, w, http.StatusForbidden, "get admin target")

	// block, twice (idempotent)
	for i := 0; i < 2; i++ {
		w = do(router, http.MethodPost, "/admin/users/"+targetID+"/block", "", adminToken)
		mustStatus(t, w, http.StatusOK, "block")

		if mustJSON(t, w).User.Status {
			t.Fatal("block left status=true")
		}
	}

	// blocked users cannot log in, even with the right password
	w = do(router, http.MethodPost, "/login", `{"email":"a@x.com","password":"secret123"}`, "")
	mustStatus(t, w, http.StatusForbidden, "blocked login")

	if mustJSON(t, w).Code != "account_blocked" {
		t.Fatalf("blocked login: unexpected body %s", w.Body.String())
	}

	// unblock restores access
	w = do(router, http.MethodPost, "/admin/users/"+targetID+"/unblock", "", adminToken)
	mustStatus(t, w, http.StatusOK, "unblock")

	w = do(router, http.MethodPost, "/login", `{"email":"a@x.com","password":"secret123"}`, "")
	mustStatus(t, w, http.StatusOK, "login after unblock")

	// partial update
	w = do(router, http.MethodPut, "/admin/users/"+targetID, `{"name":"Renamed"}`, adminToken)
	mustStatus(t, w, http.StatusOK, "update")

	if got := mustJSON(t, w).User; got.Name != "Renamed" || got.Email != "a@x.com" {
		t.Fatalf("update: unexpected user %+v", got)
	}

	// taking the admin's email is a conflict
	w = do(router, http.MethodPut, "/admin/users/"+targetID, `{"email":"admin@example.com"}`, adminToken)
	mustStatus(t, w, http.StatusUnprocessableEntity, "update email conflict")

	// delete, then the target is gone
	w = do(router, http.MethodDelete, "/admin/users/"+targetID, "", adminToken)
	mustStatus(t, w, http.StatusOK, "delete")

	w = do(router, http.MethodGet, "/admin/users/"+targetID, "", adminToken)
	mustStatus(t, w, http.StatusNotFound, "get after delete")
}

func TestLogoutInvalidatesTokenImmediately(t *testing.T) {
	router, users := newTestStack(t)
	seedAdmin(t, users)

	w := do(router, http.MethodPost, "/admin/login", `{"email":"admin@example.com","password":"admin-password"}`, "")
	mustStatus(t, w, http.StatusOK, "admin login")

	token := mustJSON(t, w).Token

	w = do(router, http.MethodGet, "/me", "", token)
	mustStatus(t, w, http.StatusOK, "me before logout")

	w = do(router, http.MethodPost, "/logout", "", token)
	mustStatus(t, w, http.StatusOK, "logout")

	// the very next request with the same token is rejected
	w = do(router, http.MethodGet, "/me", "", token)
	mustStatus(t, w, http.StatusUnauthorized, "me after logout")

	w = do(router, http.MethodGet, "/admin/users", "", token)
	mustStatus(t, w, http.StatusUnauthorized, "admin surface after logout")
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	router, _ := newTestStack(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/me"},
		{http.MethodPost, "/logout"},
		{http.MethodGet, "/admin/users"},
		{http.MethodGet, "/admin/users/some-id"},
		{http.MethodPut, "/admin/users/some-id"},
		{http.MethodPost, "/admin/users/some-id/block"},
		{http.MethodPost, "/admin/users/some-id/unblock"},
		{http.MethodDelete, "/admin/users/some-id"},
	}

	for _, p := range paths {
		w := do(router, p.method, p.path, "", "")

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: got status %d, want 401", p.method, p.path, w.Code)
		}
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	users := memory.NewUsersRepo()

	// a manager that only issues already-expired tokens
	expiredManager := auth.NewManager(cfg.JWTSecret, -time.Minute)

	router := apphttp.NewRouter(apphttp.RouterOptions{
		Users:  users,
		Tokens: tokens.NewMemoryDenylist(),
		JWT:    auth.NewManager(cfg.JWTSecret, cfg.AccessTTL()),
		Cfg:    cfg,
	})

	token, err := expiredManager.GenerateAccessToken("u1", "sam@example.com", user.RoleUser)

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	w := do(router, http.MethodGet, "/me", "", token)
	mustStatus(t, w, http.StatusUnauthorized, "expired token")
}

func TestHealthz(t *testing.T) {
	router, _ := newTestStack(t)

	w := do(router, http.MethodGet, "/healthz", "", "")
	mustStatus(t, w, http.StatusOK, "healthz")
}
