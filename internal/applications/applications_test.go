package applications_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lacpa/lacpa-backend/internal/applications"
	"github.com/lacpa/lacpa-backend/internal/applications/applicationstest"
	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/auth/authtest"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/mail/mailtest"
)

const password = "Adm1n!Pass"

type env struct {
	t       *testing.T
	srv     *httptest.Server
	auth    *auth.Service
	svc     *applications.Service
	store   *applicationstest.Store
	adminID string
	token   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	stores := authtest.Stores()
	authSvc, err := auth.NewService(stores, &mailtest.Recorder{}, logging.Nop{}, auth.Options{
		JWTSecret:       "applications-test-secret-applications",
		JWTIssuer:       "lacpa-test",
		SessionTTL:      time.Hour,
		CodeTTL:         10 * time.Minute,
		ResetTokenTTL:   15 * time.Minute,
		MaxCodeAttempts: 5,
		RetryBackoff:    time.Millisecond,
		BcryptCost:      bcrypt.MinCost,
	})
	require.NoError(t, err)

	store := applicationstest.NewStore()
	svc := applications.NewService(store, logging.Nop{})
	h := applications.NewHandler(svc, logging.Nop{})
	passthrough := func(next http.Handler) http.Handler { return next }
	srv := httptest.NewServer(applications.SetupRoutes(h, authSvc.Tokens(), auth.RoleInfo{Accounts: stores.Accounts}, passthrough, logging.Nop{}))
	t.Cleanup(srv.Close)

	e := &env{t: t, srv: srv, auth: authSvc, svc: svc, store: store}
	e.adminID, e.token = e.provision("registrar@lacpa.org.lb", auth.RoleAdmin)
	return e
}

func (e *env) provision(email string, role auth.Role) (id, token string) {
	e.t.Helper()
	ctx := context.Background()
	acc, err := e.auth.ProvisionAccount(ctx, auth.ProvisionInput{FullName: "Test " + string(role), Email: email, Password: password, Role: role, Verified: true})
	require.NoError(e.t, err)
	res, err := e.auth.Login(ctx, auth.LoginInput{LACPAID: acc.LACPAID, Password: password}, auth.SessionMeta{})
	require.NoError(e.t, err)
	return acc.ID, res.Token
}

type response struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Fields  []struct {
		Field string `json:"field"`
	} `json:"fields"`
	Metadata struct {
		Total int64 `json:"total"`
	} `json:"metadata"`
}

func (e *env) call(method, path, token string, body any) (int, response) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var out response
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func individual(email string) map[string]any {
	return map[string]any{
		"first_name":          " Rania ",
		"last_name":           "Haddad",
		"date_of_birth":       "1988-04-12",
		"nationality":         "Lebanese",
		"email":               email,
		"phone":               "+961 1 234 567",
		"street":              "Hamra Street",
		"city":                "Beirut",
		"country":             "Lebanon",
		"professional_title":  "Certified Accountant",
		"qualifications":      []string{"BBA Accounting", "CPA"},
		"years_of_experience": 9,
		"cv_document":         "https://files.example.com/cv.pdf",
	}
}

func firm(name, email string) map[string]any {
	return map[string]any{
		"firm_name":           name,
		"registration_number": "CR-2231",
		"year_established":    2004,
		"email":               email,
		"phone":               "+961 1 555 000",
		"street":              "Weygand Street",
		"city":                "Beirut",
		"country":             "Lebanon",
		"number_of_partners":  3,
		"number_of_employees": 25,
		"services_offered":    []string{"Audit", "Tax"},
		"representative_name": "Karim Nassar",
	}
}

func decodeIndividual(t *testing.T, raw json.RawMessage) applications.IndividualApplication {
	t.Helper()
	var a applications.IndividualApplication
	require.NoError(t, json.Unmarshal(raw, &a))
	return a
}

func TestSubmitIndividual(t *testing.T) {
	e := newEnv(t)

	body := individual("Rania@Example.com")
	body["status"] = "approved"
	body["reviewed_by"] = e.adminID

	status, res := e.call(http.MethodPost, "/individual", "", body)
	require.Equal(t, http.StatusCreated, status)
	a := decodeIndividual(t, res.Data)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, applications.StatusPending, a.Status)
	assert.Nil(t, a.ReviewedBy)
	assert.Equal(t, "rania@example.com", a.Email)
	assert.Equal(t, "Rania", a.FirstName)
	assert.Equal(t, []string{"BBA Accounting", "CPA"}, []string(a.Qualifications))
	assert.False(t, a.SubmittedAt.IsZero())
}

func TestSubmitIndividual_Validation(t *testing.T) {
	e := newEnv(t)

	body := individual("rania@example.com")
	delete(body, "last_name")
	body["date_of_birth"] = "12/04/1988"
	body["cv_document"] = "not a link"

	status, res := e.call(http.MethodPost, "/individual", "", body)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", res.Code)
	var fields []string
	for _, f := range res.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"last_name", "date_of_birth", "cv_document"}, fields)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/firm", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmit_OneOpenApplicationPerEmail(t *testing.T) {
	e := newEnv(t)

	status, res := e.call(http.MethodPost, "/individual", "", individual("rania@example.com"))
	require.Equal(t, http.StatusCreated, status)
	first := decodeIndividual(t, res.Data)

	status, res = e.call(http.MethodPost, "/individual", "", individual("RANIA@example.com"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "application_open", res.Code)

	// A firm application from the same address is a separate queue.
	status, _ = e.call(http.MethodPost, "/firm", "", firm("Haddad & Co", "rania@example.com"))
	assert.Equal(t, http.StatusCreated, status)

	status, _ = e.call(http.MethodPatch, "/individual/"+first.ID+"/status", e.token, map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusOK, status)

	status, _ = e.call(http.MethodPost, "/individual", "", individual("rania@example.com"))
	assert.Equal(t, http.StatusCreated, status)
}

func TestReview_Gating(t *testing.T) {
	e := newEnv(t)
	_, memberToken := e.provision("member@example.com", auth.RoleMember)

	status, _ := e.call(http.MethodGet, "/individual", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, res := e.call(http.MethodGet, "/firm", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", res.Code)

	status, _ = e.call(http.MethodGet, "/firm", e.token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestReview_StatusWorkflow(t *testing.T) {
	e := newEnv(t)
	_, res := e.call(http.MethodPost, "/individual", "", individual("rania@example.com"))
	id := decodeIndividual(t, res.Data).ID
	path := "/individual/" + id + "/status"

	status, res := e.call(http.MethodPatch, path, e.token, map[string]string{"status": "under_review"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, applications.StatusUnderReview, decodeIndividual(t, res.Data).Status)

	status, res = e.call(http.MethodPatch, path, e.token, map[string]string{"status": "approved", "review_notes": "Documents verified"})
	require.Equal(t, http.StatusOK, status)
	a := decodeIndividual(t, res.Data)
	assert.Equal(t, applications.StatusApproved, a.Status)
	assert.Equal(t, "Documents verified", a.ReviewNotes)
	require.NotNil(t, a.ReviewedBy)
	assert.Equal(t, e.adminID, *a.ReviewedBy)
	assert.NotNil(t, a.ReviewedAt)

	status, res = e.call(http.MethodPatch, path, e.token, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_transition", res.Code)

	status, res = e.call(http.MethodPatch, path, e.token, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", res.Code)

	status, res = e.call(http.MethodPatch, "/individual/missing/status", e.token, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", res.Code)

	// Ids do not cross kinds.
	status, _ = e.call(http.MethodGet, "/firm/"+id, e.token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = e.call(http.MethodGet, "/individual/"+id, e.token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestListFirm_FiltersAndSearch(t *testing.T) {
	e := newEnv(t)
	for _, f := range []map[string]any{
		firm("Nassar Audit", "office@nassar.example.com"),
		firm("Cedar Partners", "hello@cedar.example.com"),
		firm("Byblos Tax", "info@byblos.example.com"),
	} {
		status, _ := e.call(http.MethodPost, "/firm", "", f)
		require.Equal(t, http.StatusCreated, status)
	}

	status, res := e.call(http.MethodGet, "/firm?q=CEDAR", e.token, nil)
	require.Equal(t, http.StatusOK, status)
	var rows []applications.FirmApplication
	require.NoError(t, json.Unmarshal(res.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Cedar Partners", rows[0].FirmName)

	status, _ = e.call(http.MethodPatch, "/firm/"+rows[0].ID+"/status", e.token, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, status)

	status, res = e.call(http.MethodGet, "/firm?status=pending", e.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, res.Metadata.Total)

	status, res = e.call(http.MethodGet, "/firm?page=1&page_size=1", e.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(res.Data, &rows))
	assert.Len(t, rows, 1)
	assert.EqualValues(t, 3, res.Metadata.Total)

	status, res = e.call(http.MethodGet, "/firm?status=closed", e.token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", res.Code)
}

func TestDecide_ConcurrentReviewersOneWins(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := &applications.FirmApplication{}
	require.NoError(t, json.Unmarshal(mustJSON(t, firm("Cedar Partners", "hello@cedar.example.com")), a))
	require.NoError(t, e.svc.SubmitFirm(ctx, a))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, next := range []applications.Status{applications.StatusApproved, applications.StatusRejected, applications.StatusApproved, applications.StatusRejected} {
		wg.Add(1)
		go func(next applications.Status) {
			defer wg.Done()
			_, err := e.svc.Decide(ctx, applications.KindFirm, a.ID, e.adminID, next, "")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, applications.ErrInvalidTransition)
		}(next)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
