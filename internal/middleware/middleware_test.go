package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/middleware"
	"github.com/lacpa/lacpa-backend/internal/utils"
)

// mockValidator implements middleware.SessionValidator without any store.
type mockValidator struct {
	identity utils.Identity
	err      error
}

func (m mockValidator) Validate(_ context.Context, token string) (utils.Identity, error) {
	return m.identity, m.err
}

type tempErr struct{}

func (tempErr) Error() string   { return "redis down" }
func (tempErr) Temporary() bool { return true }

type mockRoles struct {
	role string
	err  error
}

func (m mockRoles) FindRoleByAccountID(_ context.Context, _ string) (string, error) {
	return m.role, m.err
}

// callWithAuth wraps a 200-OK inner handler in mw, optionally setting the
// Authorization header, and returns the recorded response.
func callWithAuth(t *testing.T, mw func(http.Handler) http.Handler, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)
	return rec
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"", "", false},
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer ", "", false},
		{"Bearer", "", false},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, ok := middleware.BearerToken(req)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.want, got, tc.header)
	}
}

// Missing, malformed and rejected tokens must be indistinguishable to the
// client.
func TestSessionMiddleware_UniformRejection(t *testing.T) {
	rejecting := middleware.SessionMiddleware(mockValidator{err: errors.New("invalid token (expired)")}, logging.Nop{})

	missing := callWithAuth(t, rejecting, "")
	malformed := callWithAuth(t, rejecting, "Token xyz")
	expired := callWithAuth(t, rejecting, "Bearer expired.jwt.value")

	for _, rec := range []*httptest.ResponseRecorder{missing, malformed, expired} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.Equal(t, missing.Body.String(), malformed.Body.String())
	assert.Equal(t, missing.Body.String(), expired.Body.String())
	assert.Contains(t, missing.Body.String(), `"code":"unauthorized"`)
}

func TestSessionMiddleware_TemporaryFailure(t *testing.T) {
	mw := middleware.SessionMiddleware(mockValidator{err: tempErr{}}, logging.Nop{})

	rec := callWithAuth(t, mw, "Bearer some.jwt")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionMiddleware_ValidSession(t *testing.T) {
	want := utils.Identity{AccountID: "acc-123", LACPAID: "LACPA-2025-00001", Role: "member", SessionID: "sid"}
	mw := middleware.SessionMiddleware(mockValidator{identity: want}, logging.Nop{})

	var got utils.Identity
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := utils.IdentityFromContext(r.Context())
		require.True(t, ok)
		got = id
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer good.jwt")
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, got)
}

func adminCall(t *testing.T, roles middleware.RoleFetcher, ctx context.Context) *httptest.ResponseRecorder {
	t.Helper()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/members", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	middleware.AdminMiddleware(roles, logging.Nop{})(inner).ServeHTTP(rec, req)
	return rec
}

func TestAdminMiddleware(t *testing.T) {
	withUser := utils.WithIdentity(context.Background(), utils.Identity{AccountID: "acc-1"})

	tests := []struct {
		name  string
		ctx   context.Context
		roles mockRoles
		want  int
	}{
		{"missing identity", context.Background(), mockRoles{}, http.StatusUnauthorized},
		{"unknown account", withUser, mockRoles{err: middleware.ErrRoleNotFound}, http.StatusUnauthorized},
		{"store failure", withUser, mockRoles{err: errors.New("conn reset")}, http.StatusServiceUnavailable},
		{"member", withUser, mockRoles{role: "member"}, http.StatusForbidden},
		{"admin", withUser, mockRoles{role: "admin"}, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := adminCall(t, tc.roles, tc.ctx)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	mw := middleware.CORSMiddleware([]string{"https://lacpa.org.lb"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://lacpa.org.lb")
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://lacpa.org.lb", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2222").Code)

	limited := call("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1111").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := middleware.NewRateLimiter(0, 0)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
