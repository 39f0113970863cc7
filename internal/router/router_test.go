package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/handler"
	clinicHandler "github.com/jwalitptl/clinic-api/internal/handler/clinic"
	invoiceHandler "github.com/jwalitptl/clinic-api/internal/handler/invoice"
	opdHandler "github.com/jwalitptl/clinic-api/internal/handler/opd"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	permissionHandler "github.com/jwalitptl/clinic-api/internal/handler/permission"
	userHandler "github.com/jwalitptl/clinic-api/internal/handler/user"
	visitHandler "github.com/jwalitptl/clinic-api/internal/handler/visit"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/router"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	"github.com/jwalitptl/clinic-api/internal/service/clinic"
	"github.com/jwalitptl/clinic-api/internal/service/code"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	"github.com/jwalitptl/clinic-api/internal/service/queue"
	"github.com/jwalitptl/clinic-api/internal/service/user"
	"github.com/jwalitptl/clinic-api/internal/service/visit"
	"github.com/jwalitptl/clinic-api/internal/testutil"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Code    int             `json:"-"`
}

func (r Response) IsSuccess() bool {
	return r.Status == "success"
}

func (r Response) Decode(t *testing.T, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, dst))
}

func (r Response) GetString(t *testing.T, key string) string {
	t.Helper()
	var m map[string]interface{}
	r.Decode(t, &m)
	s, _ := m[key].(string)
	return s
}

type testServer struct {
	engine *gin.Engine
	tokens auth.JWTService
	store  *memory.Store
}

func newTestServer(t *testing.T, config router.RouterConfig) *testServer {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	m := metrics.NewNop()

	alloc := code.NewAllocator(store, 3, log, m)
	perms := permission.NewService(store, m)
	users := user.NewService(store, alloc, security.NewBcryptHasher(bcrypt.MinCost), email.NewLogService(log), log)
	tokens := auth.NewJWTService("test-secret", "clinic-api-test")
	authMW := middleware.NewAuthMiddleware(tokens, users, perms, time.Minute)

	reg := prometheus.NewRegistry()
	config.Mode = gin.TestMode
	config.Registerer = reg
	r, err := router.NewRouter(authMW, handler.NewHandler(store, reg), []router.Handler{
		opdHandler.NewHandler(queue.NewService(store, log, m), authMW),
		permissionHandler.NewHandler(perms, authMW),
		userHandler.NewHandler(users, authMW),
		clinicHandler.NewHandler(clinic.NewService(store, alloc, users, log), authMW),
		patientHandler.NewHandler(patient.NewService(store, alloc), authMW),
		invoiceHandler.NewHandler(billing.NewService(store, alloc), authMW),
		visitHandler.NewHandler(visit.NewService(store), authMW),
	}, config)
	require.NoError(t, err)

	return &testServer{engine: r.Engine(), tokens: tokens, store: store}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := s.tokens.GenerateToken(userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) makeRequest(t *testing.T, method, path string, body interface{}, token string) Response {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	resp.Code = w.Code
	return resp
}

func (s *testServer) createPatient(t *testing.T, token, name string) string {
	t.Helper()
	resp := s.makeRequest(t, http.MethodPost, "/patients", map[string]interface{}{"full_name": name}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	return resp.GetString(t, "id")
}

func (s *testServer) enqueue(t *testing.T, token, patientID string) string {
	t.Helper()
	resp := s.makeRequest(t, http.MethodPost, "/opd/appointments", map[string]interface{}{"patient_id": patientID}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	return resp.GetString(t, "id")
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})

	live := s.makeRequest(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, live.Code)
	assert.True(t, live.IsSuccess())

	ready := s.makeRequest(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, ready.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/metrics", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clinic_http_requests_total")
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "auth")

	resp := s.makeRequest(t, http.MethodGet, "/clinic", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "error", resp.Status)

	resp = s.makeRequest(t, http.MethodGet, "/clinic", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = s.makeRequest(t, http.MethodGet, "/clinic", nil, s.token(t, uuid.New()))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = s.makeRequest(t, http.MethodGet, "/clinic", nil, s.token(t, c.Owner.ID))
	require.Equal(t, http.StatusOK, resp.Code)
	var view model.ClinicView
	resp.Decode(t, &view)
	assert.True(t, view.IsOwner)
	assert.Equal(t, c.Clinic.ID, view.ID)
}

func TestQueueScenarioOverHTTP(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "opd")
	token := s.token(t, c.Owner.ID)

	p1 := s.enqueue(t, token, s.createPatient(t, token, "P1"))
	p2 := s.enqueue(t, token, s.createPatient(t, token, "P2"))
	p3 := s.enqueue(t, token, s.createPatient(t, token, "P3"))

	resp := s.makeRequest(t, http.MethodPut, "/opd/appointments/"+p3+"/position", map[string]interface{}{"new_position": 1}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)

	resp = s.makeRequest(t, http.MethodGet, "/opd/queue", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	var entries []model.Appointment
	resp.Decode(t, &entries)
	got := map[string]int{}
	for _, e := range entries {
		got[e.ID.String()] = e.QueueNumber
	}
	assert.Equal(t, map[string]int{p3: 1, p1: 2, p2: 3}, got)

	resp = s.makeRequest(t, http.MethodPut, "/opd/appointments/"+p3+"/status", map[string]interface{}{"status": "IN_PROGRESS"}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)

	resp = s.makeRequest(t, http.MethodPut, "/opd/appointments/"+p3+"/status", map[string]interface{}{"status": "WAITING"}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "invalid status transition from IN_PROGRESS to WAITING", resp.Message)

	resp = s.makeRequest(t, http.MethodGet, "/opd/stats", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	var stats model.DailyStats
	resp.Decode(t, &stats)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Pending)
}

func TestQueueRequestValidation(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "validation")
	token := s.token(t, c.Owner.ID)

	resp := s.makeRequest(t, http.MethodPost, "/opd/appointments", map[string]interface{}{}, token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.makeRequest(t, http.MethodGet, "/opd/queue?date=14-03-2026", nil, token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.makeRequest(t, http.MethodPut, "/opd/appointments/not-a-uuid/status", map[string]interface{}{"status": "COMPLETED"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.makeRequest(t, http.MethodPut, "/opd/appointments/"+uuid.NewString()+"/status", map[string]interface{}{"status": "DONE"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCrossClinicAppointmentIsNotFound(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	a := testutil.SeedClinic(t, s.store, "a")
	b := testutil.SeedClinic(t, s.store, "b")

	tokenA := s.token(t, a.Owner.ID)
	id := s.enqueue(t, tokenA, s.createPatient(t, tokenA, "P1"))

	resp := s.makeRequest(t, http.MethodPut, "/opd/appointments/"+id+"/status", map[string]interface{}{"status": "CANCELLED"}, s.token(t, b.Owner.ID))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCapabilityGates(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "gates")
	owner := s.token(t, c.Owner.ID)
	assistant := s.token(t, c.Assistant.ID)

	patientID := s.createPatient(t, assistant, "P1")

	resp := s.makeRequest(t, http.MethodDelete, "/patients/"+patientID, nil, assistant)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "insufficient permission", resp.Message)

	resp = s.makeRequest(t, http.MethodGet, "/permissions/clinic-users", nil, assistant)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.makeRequest(t, http.MethodPut, "/permissions/"+c.Assistant.ID.String(),
		map[string]interface{}{"capabilities": map[string]bool{"can_delete_patients": true}}, owner)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)

	resp = s.makeRequest(t, http.MethodDelete, "/patients/"+patientID, nil, assistant)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Message)

	resp = s.makeRequest(t, http.MethodGet, "/permissions/me", nil, assistant)
	require.Equal(t, http.StatusOK, resp.Code)
	var view model.PermissionView
	resp.Decode(t, &view)
	assert.True(t, view.Capabilities[model.CanDeletePatients])
	assert.False(t, view.IsOwner)
}

func TestOwnerPermissionsAreImmutable(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "immutable")
	owner := s.token(t, c.Owner.ID)

	resp := s.makeRequest(t, http.MethodPut, "/permissions/"+c.Owner.ID.String(),
		map[string]interface{}{"capabilities": map[string]bool{"can_view_opd": false}}, owner)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "cannot modify owner permissions", resp.Message)

	resp = s.makeRequest(t, http.MethodPost, "/permissions/"+c.Owner.ID.String()+"/reset", nil, owner)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.makeRequest(t, http.MethodPut, "/permissions/"+c.Assistant.ID.String(),
		map[string]interface{}{"capabilities": map[string]bool{"can_fly": true}}, owner)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestOwnerCreatesUsers(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "staff")

	body := map[string]interface{}{
		"email":     "front.desk@example.com",
		"password":  "s3cret-pass",
		"full_name": "Front Desk",
		"role":      "ASSISTANT",
	}
	resp := s.makeRequest(t, http.MethodPost, "/users", body, s.token(t, c.Assistant.ID))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.makeRequest(t, http.MethodPost, "/users", body, s.token(t, c.Owner.ID))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)

	resp = s.makeRequest(t, http.MethodPost, "/users", body, s.token(t, c.Owner.ID))
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = s.makeRequest(t, http.MethodGet, "/users", nil, s.token(t, c.Owner.ID))
	require.Equal(t, http.StatusOK, resp.Code)
	var users []model.User
	resp.Decode(t, &users)
	assert.Len(t, users, 3)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "existing")

	admin := &model.User{
		Base:     model.NewBase(time.Now()),
		Email:    "admin@example.com",
		Role:     model.RoleAdmin,
		FullName: "Admin",
		IsActive: true,
	}
	require.NoError(t, s.store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.Users().Create(context.Background(), admin)
	}))
	token := s.token(t, admin.ID)

	resp := s.makeRequest(t, http.MethodGet, "/admin/clinics", nil, s.token(t, c.Owner.ID))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.makeRequest(t, http.MethodPost, "/admin/clinics", map[string]interface{}{"name": "North"}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	clinicID := resp.GetString(t, "id")
	assert.Equal(t, "CL-0001", resp.GetString(t, "clinic_code"))

	resp = s.makeRequest(t, http.MethodPost, "/admin/clinics/"+clinicID+"/doctors", map[string]interface{}{
		"email":     "dr.north@example.com",
		"password":  "s3cret-pass",
		"full_name": "Dr North",
	}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	var account model.DoctorAccount
	resp.Decode(t, &account)
	assert.True(t, account.IsOwner)
	assert.Equal(t, "DR-0001", account.Doctor.DoctorCode)

	resp = s.makeRequest(t, http.MethodPost, "/admin/clinics/"+c.Clinic.ID.String()+"/doctors", map[string]interface{}{
		"email":     "dr.other@example.com",
		"password":  "s3cret-pass",
		"full_name": "Dr Other",
	}, token)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.makeRequest(t, http.MethodGet, "/admin/clinics", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	var clinics []model.Clinic
	resp.Decode(t, &clinics)
	assert.Len(t, clinics, 1)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{RateLimit: 1, RateBurst: 1})

	first := s.makeRequest(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, first.Code)

	second := s.makeRequest(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "rate limit exceeded", second.Message)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set(middleware.HeaderXRequestID, "abc-123")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(middleware.HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}

func TestDeactivatedUserIsLockedOutImmediately(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "lockout")
	owner := s.token(t, c.Owner.ID)
	assistant := s.token(t, c.Assistant.ID)

	// warm the principal cache
	resp := s.makeRequest(t, http.MethodGet, "/patients", nil, assistant)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)

	resp = s.makeRequest(t, http.MethodDelete, "/users/"+c.Owner.ID.String(), nil, owner)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.makeRequest(t, http.MethodDelete, "/users/"+c.Assistant.ID.String(), nil, owner)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	var u model.User
	resp.Decode(t, &u)
	assert.False(t, u.IsActive)

	resp = s.makeRequest(t, http.MethodGet, "/patients", nil, assistant)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = s.makeRequest(t, http.MethodPut, "/users/"+c.Assistant.ID.String(), map[string]interface{}{"is_active": true}, owner)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	resp = s.makeRequest(t, http.MethodGet, "/patients", nil, assistant)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestEditEndpointsAreGated(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "edits")
	owner := s.token(t, c.Owner.ID)
	assistant := s.token(t, c.Assistant.ID)

	patientID := s.createPatient(t, assistant, "P1")
	resp := s.makeRequest(t, http.MethodPut, "/patients/"+patientID, map[string]interface{}{"phone": "98200"}, assistant)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	assert.Equal(t, "98200", resp.GetString(t, "phone"))

	resp = s.makeRequest(t, http.MethodPost, "/visits", map[string]interface{}{"patient_id": patientID, "symptoms": "fever"}, owner)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	visitID := resp.GetString(t, "id")

	body := map[string]interface{}{"diagnosis": "viral fever"}
	resp = s.makeRequest(t, http.MethodPut, "/visits/"+visitID, body, assistant)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = s.makeRequest(t, http.MethodPut, "/visits/"+visitID, body, owner)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)

	resp = s.makeRequest(t, http.MethodGet, "/patients/"+patientID+"/visits", nil, assistant)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	var history []model.Visit
	resp.Decode(t, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "viral fever", history[0].Diagnosis)

	resp = s.makeRequest(t, http.MethodPut, "/permissions/"+c.Assistant.ID.String(),
		map[string]interface{}{"capabilities": map[string]bool{"can_edit_patients": false}}, owner)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	resp = s.makeRequest(t, http.MethodPut, "/patients/"+patientID, map[string]interface{}{"phone": "98201"}, assistant)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestInvoicePaymentUpdate(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "billing")
	assistant := s.token(t, c.Assistant.ID)
	patientID := s.createPatient(t, assistant, "P1")

	resp := s.makeRequest(t, http.MethodPost, "/invoices", map[string]interface{}{
		"patient_id":     patientID,
		"items":          []map[string]interface{}{{"description": "Consultation", "quantity": 1, "unit_price": 50000}},
		"payment_status": "UNPAID",
		"payment_mode":   "UPI",
	}, assistant)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	invoiceID := resp.GetString(t, "id")

	resp = s.makeRequest(t, http.MethodPut, "/invoices/"+invoiceID, map[string]interface{}{"payment_status": "PAID", "payment_mode": "CASH"}, assistant)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	var inv model.Invoice
	resp.Decode(t, &inv)
	assert.Equal(t, int64(50000), inv.PaidAmount)

	resp = s.makeRequest(t, http.MethodPut, "/permissions/"+c.Assistant.ID.String(),
		map[string]interface{}{"capabilities": map[string]bool{"can_edit_invoices": false}}, s.token(t, c.Owner.ID))
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	resp = s.makeRequest(t, http.MethodPut, "/invoices/"+invoiceID, map[string]interface{}{"payment_status": "UNPAID"}, assistant)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestStatsHideRevenueWithoutCollections(t *testing.T) {
	s := newTestServer(t, router.RouterConfig{})
	c := testutil.SeedClinic(t, s.store, "stats")
	owner := s.token(t, c.Owner.ID)
	assistant := s.token(t, c.Assistant.ID)

	revenue := func(token string) (int64, bool) {
		resp := s.makeRequest(t, http.MethodGet, "/opd/stats", nil, token)
		require.Equal(t, http.StatusOK, resp.Code, resp.Message)
		var m map[string]json.RawMessage
		resp.Decode(t, &m)
		raw, ok := m["revenue"]
		if !ok {
			return 0, false
		}
		var v int64
		require.NoError(t, json.Unmarshal(raw, &v))
		return v, true
	}

	_, ok := revenue(assistant)
	assert.True(t, ok)

	resp := s.makeRequest(t, http.MethodPut, "/permissions/"+c.Assistant.ID.String(),
		map[string]interface{}{"capabilities": map[string]bool{"can_view_collections": false}}, owner)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)

	_, ok = revenue(assistant)
	assert.False(t, ok)
	_, ok = revenue(owner)
	assert.True(t, ok)
}
