package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm/internal/config"
	"crm/internal/model"
	"crm/internal/repository"
	"crm/internal/server"
	"crm/internal/service"
	"crm/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Status     string            `json:"status"`
	StatusCode int               `json:"status_code"`
	Data       json.RawMessage   `json:"data"`
	Error      string            `json:"error"`
	Details    map[string]string `json:"details"`
}

type stubNotifier struct{}

func (stubNotifier) SendQuotation(context.Context, *model.Lead, *model.Quotation) error { return nil }

type testAPI struct {
	t     *testing.T
	app   *server.App
	db    *gorm.DB
	admin string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Auth:   config.AuthConfig{JWTSecret: "e2e-secret", TokenTTL: time.Hour},
		Seed: config.SeedConfig{
			AdminUsername: "admin@example.com",
			AdminPassword: "admin123",
			AdminRole:     "Admin",
			DefaultRole:   "Sales Rep",
		},
		Audit:     config.AuditConfig{QueueSize: 64, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond},
		Quotation: config.QuotationConfig{ApproverRoles: []string{"Manager"}},
	}
	db := testutil.NewDB(t)
	app := server.New(cfg, db, stubNotifier{})
	t.Cleanup(app.Close)

	require.NoError(t, app.Roles.SeedDefaults(context.Background(), service.AdminSeed{
		Username: cfg.Seed.AdminUsername,
		Password: cfg.Seed.AdminPassword,
		Role:     cfg.Seed.AdminRole,
	}))

	api := &testAPI{t: t, app: app, db: db}
	api.admin = api.login("admin@example.com", "admin123")
	return api
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.app.Router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (a *testAPI) login(username, password string) string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(a.t, http.StatusOK, code, env.Error)
	var res service.LoginResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &res))
	return res.AccessToken
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestAdminLoginAndMe(t *testing.T) {
	api := newTestAPI(t)

	identity, err := api.app.Tokens.Authenticate(api.admin)
	require.NoError(t, err)
	assert.Contains(t, identity.Permissions(), "GET:/users/me/")

	code, env := api.do(http.MethodGet, "/users/me", api.admin, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	me := decode[model.User](t, env)
	assert.Equal(t, "admin@example.com", me.Username)
	assert.Equal(t, "Admin", me.Role.Name)

	code, env = api.do(http.MethodPost, "/auth/login", "", gin.H{"username": "admin@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "error", env.Status)
}

func TestAuthorizationFailures(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(http.MethodGet, "/leads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodGet, "/leads", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := api.do(http.MethodPost, "/auth/register", api.admin, gin.H{"username": "rep@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	rep := api.login("rep@example.com", "secret1")

	code, _ = api.do(http.MethodGet, "/roles", rep, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodGet, "/leads", rep, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestDuplicateRegistration(t *testing.T) {
	api := newTestAPI(t)
	body := gin.H{"username": "dup@example.com", "password": "secret1"}

	code, _ := api.do(http.MethodPost, "/auth/register", api.admin, body)
	require.Equal(t, http.StatusCreated, code)

	code, env := api.do(http.MethodPost, "/auth/register", api.admin, body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "already exists")
}

func TestValidationDetails(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodPost, "/leads", api.admin, gin.H{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Details, "name")

	code, env = api.do(http.MethodPost, "/leads", api.admin, gin.H{"name": "Jane", "email": "bad"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Details, "email")

	code, env = api.do(http.MethodGet, "/leads/not-a-uuid", api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Details, "id")

	code, _ = api.do(http.MethodGet, "/leads/"+uuid.NewString(), api.admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLeadMutationsAreAudited(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodPost, "/leads", api.admin, gin.H{"name": "Jane", "email": "jane@acme.io"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	lead := decode[model.Lead](t, env)

	code, env = api.do(http.MethodPut, "/leads/"+lead.ID.String(), api.admin, gin.H{"phone": "+14155550100"})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = api.do(http.MethodDelete, "/leads/"+lead.ID.String(), api.admin, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	repo := repository.NewAuditRepository(api.db)
	filter := repository.AuditFilter{EntityType: string(model.EntityLead), EntityID: &lead.ID}
	require.Eventually(t, func() bool {
		rows, err := repo.List(context.Background(), filter, 0, 100)
		return err == nil && len(rows) == 3
	}, 2*time.Second, 10*time.Millisecond)

	code, env = api.do(http.MethodGet, "/audit-logs?entity_type=LEAD&entity_id="+lead.ID.String(), api.admin, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var page struct {
		Items []service.AuditLogResponse `json:"items"`
		Total int                        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, 3, page.Total)

	actions := map[string]int{}
	for _, item := range page.Items {
		actions[item.Action]++
		assert.Equal(t, "admin@example.com", item.Username)
	}
	assert.Equal(t, map[string]int{
		model.ActionCreateLead: 1,
		model.ActionUpdateLead: 1,
		model.ActionDeleteLead: 1,
	}, actions)
}

func TestQuotationStatusOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodPost, "/leads", api.admin, gin.H{"name": "Acme", "email": "buyer@acme.io"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	lead := decode[model.Lead](t, env)

	code, env = api.do(http.MethodPost, "/quotations", api.admin, gin.H{
		"lead_id":    lead.ID,
		"line_items": []gin.H{{"description": "Widget", "quantity": 3, "price": "2.50"}},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	q := decode[model.Quotation](t, env)
	assert.True(t, q.TotalPrice.Equal(decimal.RequireFromString("7.5")), "total was %s", q.TotalPrice)

	code, env = api.do(http.MethodPut, "/quotations/"+q.ID.String()+"/status", api.admin, gin.H{"status": "SENT"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "cannot be changed from DRAFT to SENT")

	code, _ = api.do(http.MethodPut, "/quotations/"+q.ID.String()+"/status", api.admin, gin.H{"status": "SUBMITTED"})
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(http.MethodPut, "/quotations/"+q.ID.String()+"/status", api.admin, gin.H{"status": "APPROVED"})
	assert.Equal(t, http.StatusForbidden, code, "Admin is not an approver role")
}

func TestHealthAndDocs(t *testing.T) {
	api := newTestAPI(t)

	w := httptest.NewRecorder()
	api.app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	api.app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/quotations/{id}/send")
}
