package auth_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/auth/authtest"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/middleware"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Fields  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

type api struct {
	t   *testing.T
	srv *httptest.Server
	f   *fixture
}

func newAPI(t *testing.T, limit func(http.Handler) http.Handler) *api {
	t.Helper()
	f := newFixture(t)
	h := auth.NewHandler(f.svc, logging.Nop{})
	srv := httptest.NewServer(auth.SetupRoutes(h, f.svc.Tokens(), limit, logging.Nop{}))
	t.Cleanup(srv.Close)
	return &api{t: t, srv: srv, f: f}
}

func (a *api) do(method, path, token string, body any) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (a *api) post(path string, body any) (int, apiResponse) {
	return a.do(http.MethodPost, path, "", body)
}

func dataField(t *testing.T, r apiResponse, key string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Data, &m))
	s, _ := m[key].(string)
	return s
}

func TestHTTP_MemberLifecycle(t *testing.T) {
	a := newAPI(t, nil)

	status, res := a.post("/signup", map[string]string{"full_name": "Alice Haddad", "email": "Alice@x.io", "password": strongPassword})
	require.Equal(t, http.StatusCreated, status, res.Error)
	lacpaID := dataField(t, res, "lacpa_id")
	assert.Regexp(t, `^LACPA-\d{4}-\d{5}$`, lacpaID)
	assert.Equal(t, "alice@x.io", dataField(t, res, "email"))

	status, res = a.post("/login", map[string]string{"lacpa_id": lacpaID, "password": strongPassword})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "unverified", res.Code)

	code := a.f.mail.LastCode("alice@x.io")
	status, res = a.post("/verify-otp", map[string]string{"email": "alice@x.io", "otp": code})
	require.Equal(t, http.StatusOK, status, res.Error)
	assert.Len(t, dataField(t, res, "reset_token"), 64)

	status, res = a.post("/verify-otp", map[string]string{"email": "alice@x.io", "otp": code})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "code_already_used", res.Code)

	status, res = a.post("/login", map[string]string{"lacpa_id": lacpaID, "password": strongPassword})
	require.Equal(t, http.StatusOK, status, res.Error)
	token := dataField(t, res, "token")
	assert.Equal(t, "Bearer", dataField(t, res, "token_type"))

	status, res = a.do(http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, lacpaID, dataField(t, res, "lacpa_id"))
	assert.Equal(t, "member", dataField(t, res, "role"))
	assert.NotContains(t, string(res.Data), "password")

	status, _ = a.do(http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, res = a.do(http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Session already ended", res.Message)

	status, res = a.do(http.MethodGet, "/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", res.Error)
}

func TestHTTP_ForgotAndResetPassword(t *testing.T) {
	a := newAPI(t, nil)
	id := a.f.signupVerified(t, "alice@x.io")

	status, res := a.post("/forgot-password", map[string]string{"email": "alice@x.io"})
	require.Equal(t, http.StatusOK, status)
	knownMsg := res.Message

	status, res = a.post("/forgot-password", map[string]string{"email": "ghost@x.io"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, knownMsg, res.Message, "unknown emails must look the same")

	status, res = a.post("/verify-otp", map[string]string{"email": "alice@x.io", "otp": a.f.mail.LastCode("alice@x.io")})
	require.Equal(t, http.StatusOK, status)
	resetToken := dataField(t, res, "reset_token")

	status, res = a.post("/reset-password", map[string]string{"token": resetToken, "new_password": "weak"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", res.Code)
	require.Len(t, res.Fields, 1)
	assert.Equal(t, "new_password", res.Fields[0].Field)

	status, _ = a.post("/reset-password", map[string]string{"token": resetToken, "new_password": "N3w!Password"})
	require.Equal(t, http.StatusOK, status)

	status, res = a.post("/reset-password", map[string]string{"token": resetToken, "new_password": "N3w!Password"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_or_expired_token", res.Code)

	status, _ = a.post("/login", map[string]string{"lacpa_id": id, "password": "N3w!Password"})
	assert.Equal(t, http.StatusOK, status)
}

func TestHTTP_ErrorMapping(t *testing.T) {
	a := newAPI(t, nil)
	a.f.signupVerified(t, "alice@x.io")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"duplicate email", "/signup", map[string]string{"full_name": "Alice", "email": "ALICE@x.io", "password": strongPassword}, http.StatusConflict, "email_taken"},
		{"bad email", "/signup", map[string]string{"full_name": "Alice", "email": "nope", "password": strongPassword}, http.StatusBadRequest, "validation_failed"},
		{"unknown member", "/login", map[string]string{"lacpa_id": "LACPA-2000-00001", "password": strongPassword}, http.StatusUnauthorized, "invalid_credentials"},
		{"wrong code", "/verify-otp", map[string]string{"email": "alice@x.io", "otp": "12345x"}, http.StatusBadRequest, "validation_failed"},
		{"no code on record", "/verify-otp", map[string]string{"email": "ghost@x.io", "otp": "123456"}, http.StatusBadRequest, "invalid_code"},
		{"unknown token", "/reset-password", map[string]string{"token": "abc", "new_password": strongPassword}, http.StatusBadRequest, "invalid_or_expired_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := a.post(tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, res.Code)
			assert.False(t, res.Success)
		})
	}
}

func TestHTTP_MalformedBody(t *testing.T) {
	a := newAPI(t, nil)

	resp, err := a.srv.Client().Post(a.srv.URL+"/signup", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Len(t, out.Fields, 1)
	assert.Equal(t, "body", out.Fields[0].Field)
}

func TestHTTP_LogoutWithoutToken(t *testing.T) {
	a := newAPI(t, nil)

	status, _ := a.do(http.MethodPost, "/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.do(http.MethodPost, "/logout", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTP_SessionStoreDown(t *testing.T) {
	stores := authtest.Stores()
	sessions := stores.Sessions.(*authtest.Sessions)
	f := newFixtureWithStores(t, stores)
	h := auth.NewHandler(f.svc, logging.Nop{})
	srv := httptest.NewServer(auth.SetupRoutes(h, f.svc.Tokens(), nil, logging.Nop{}))
	t.Cleanup(srv.Close)
	a := &api{t: t, srv: srv, f: f}

	id := f.signupVerified(t, "alice@x.io")
	_, res := a.post("/login", map[string]string{"lacpa_id": id, "password": strongPassword})
	token := dataField(t, res, "token")

	sessions.Err = errors.New("connection refused")
	status, _ := a.do(http.MethodGet, "/profile", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestHTTP_RateLimitedEndpoints(t *testing.T) {
	rl := middleware.NewRateLimiter(0.001, 2)
	a := newAPI(t, rl.Middleware)

	body := map[string]string{"email": "ghost@x.io"}
	for i := 0; i < 2; i++ {
		status, _ := a.post("/forgot-password", body)
		require.Equal(t, http.StatusOK, status)
	}
	status, res := a.post("/forgot-password", body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", res.Code)

	// Logout sits outside the limited group.
	status, _ = a.do(http.MethodPost, "/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
