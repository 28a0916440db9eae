package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fitsense-backend/config"
	"fitsense-backend/models"
	"fitsense-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := config.ConnectDB(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpiryHours: 1},
		Ledger: config.LedgerConfig{MaxRetries: 3},
	}
	svc := NewServices(db, cfg, services.NopNotifier{}, services.NopPublisher{})
	return &testServer{router: SetupRouter(cfg, svc), db: db}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *testServer) login(t *testing.T, identifier, password string) string {
	t.Helper()
	w := s.do(http.MethodPost, "/auth/login", "", gin.H{"identifier": identifier, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	return resp.Token
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	admin := models.User{Email: "admin@gym.test", Name: "Admin", Password: "admin-password", Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, s.db.Create(&admin).Error)
	return s.login(t, "admin@gym.test", "admin-password")
}

type memberResp struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	PaidAmount          string               `json:"paidAmount"`
	RemainingAmount     string               `json:"remainingAmount"`
	PaymentInstallments []models.LedgerEntry `json:"paymentInstallments"`
	IsSignedUp          bool                 `json:"isSignedUp"`
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := setupServer(t)

	w := s.do(http.MethodPost, "/auth/register", "", gin.H{
		"email": "member@gym.test", "name": "Member", "password": "password123", "phone": "9840000000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/auth/register", "", gin.H{
		"email": "member@gym.test", "name": "Again", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/auth/login", "", gin.H{"identifier": "member@gym.test", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.login(t, "member@gym.test", "password123")
	w = s.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User   map[string]interface{} `json:"user"`
		Record memberResp             `json:"record"`
	}
	decode(t, w, &me)
	assert.Equal(t, "member", me.User["role"])
	assert.True(t, me.Record.IsSignedUp)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/auth/me", "", nil).Code)
}

func TestLedgerOverHTTP(t *testing.T) {
	s := setupServer(t)
	admin := s.adminToken(t)

	w := s.do(http.MethodPost, "/api/members", admin, gin.H{"name": "Walk In", "phone": "9841111111"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec memberResp
	decode(t, w, &rec)

	for _, amount := range []string{"500", "300"} {
		w = s.do(http.MethodPost, "/api/members/"+rec.ID+"/payments", admin, gin.H{"amount": amount, "paymentMode": "cash"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w = s.do(http.MethodPost, "/api/members/"+rec.ID+"/payments", admin, gin.H{"amount": "0"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/members/"+rec.ID+"/payments", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Entries    []models.LedgerEntry `json:"entries"`
		PaidAmount string               `json:"paidAmount"`
	}
	decode(t, w, &view)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "800", view.PaidAmount)

	w = s.do(http.MethodDelete, "/api/members/"+rec.ID+"/payments/"+view.Entries[0].ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodDelete, "/api/members/"+rec.ID+"/payments/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/members/"+rec.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after struct {
		PaidAmount string `json:"paidAmount"`
	}
	decode(t, w, &after)
	assert.Equal(t, "300", after.PaidAmount)

	w = s.do(http.MethodGet, "/api/members/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMembersCannotReachAdminRoutesOrOtherRecords(t *testing.T) {
	s := setupServer(t)
	admin := s.adminToken(t)

	w := s.do(http.MethodPost, "/auth/register", "", gin.H{"email": "m@gym.test", "name": "M", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)
	var reg struct {
		RecordID string `json:"recordId"`
	}
	decode(t, w, &reg)
	member := s.login(t, "m@gym.test", "password123")

	w = s.do(http.MethodPost, "/api/members", admin, gin.H{"name": "Someone Else"})
	require.Equal(t, http.StatusCreated, w.Code)
	var other memberResp
	decode(t, w, &other)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/members/"+reg.RecordID, member, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/members/"+reg.RecordID+"/payments", member, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/members/"+other.ID, member, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/members", member, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/reconcile", member, nil).Code)
	assert.Equal(t, http.StatusForbidden,
		s.do(http.MethodDelete, "/api/members/"+reg.RecordID+"/payments/x", member, nil).Code)

	// linked records cannot be deleted, walk-ins can
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/members/"+reg.RecordID, admin, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/members/"+other.ID, admin, nil).Code)
}

func TestPlansMembershipsAndReconcile(t *testing.T) {
	s := setupServer(t)
	admin := s.adminToken(t)

	w := s.do(http.MethodPost, "/api/plans", admin, gin.H{"name": "Monthly", "price": "800", "durationDays": 30})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var plan models.Plan
	decode(t, w, &plan)

	w = s.do(http.MethodPost, "/auth/register", "", gin.H{"email": "live@gym.test", "name": "Live", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)
	var reg struct {
		User     struct{ ID string } `json:"user"`
		RecordID string              `json:"recordId"`
	}
	decode(t, w, &reg)

	w = s.do(http.MethodPost, "/api/users/"+reg.User.ID+"/payments", admin, gin.H{"amount": "100"})
	assert.Equal(t, http.StatusConflict, w.Code, "no membership yet")

	w = s.do(http.MethodPost, "/api/users/"+reg.User.ID+"/memberships", admin, gin.H{"planId": plan.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/users/"+reg.User.ID+"/payments", admin, gin.H{"amount": "250", "paymentMode": "upi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/members/"+reg.RecordID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec struct {
		PaidAmount      string `json:"paidAmount"`
		RemainingAmount string `json:"remainingAmount"`
	}
	decode(t, w, &rec)
	assert.Equal(t, "250", rec.PaidAmount)
	assert.Equal(t, "550", rec.RemainingAmount)

	w = s.do(http.MethodPost, "/api/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report services.ReconcileReport
	decode(t, w, &report)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Failed)

	w = s.do(http.MethodGet, "/api/reports/revenue", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		TotalCollected        string `json:"totalCollected"`
		UnreconciledLiveTotal string `json:"unreconciledLiveTotal"`
	}
	decode(t, w, &summary)
	assert.Equal(t, "250", summary.TotalCollected)
	assert.Equal(t, "0", summary.UnreconciledLiveTotal)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/reports/monthly?months=3", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reports/monthly?months=99", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reports/revenue?from=soon", admin, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/dashboard", admin, nil).Code)
}

func TestImportJSONAndFile(t *testing.T) {
	s := setupServer(t)
	admin := s.adminToken(t)

	w := s.do(http.MethodPost, "/api/members/import", admin, gin.H{"rows": []gin.H{
		{"name": "One", "email": "one@gym.test", "paidAmount": "100"},
		{"name": "", "email": "two@gym.test"},
		{"name": "Three"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report services.ImportReport
	decode(t, w, &report)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Skipped)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "members.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("name,email,paid\nFour,four@gym.test,50\nOne,one@gym.test,300\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/members/import", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &report)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 0, report.Skipped)

	var one models.MemberRecord
	require.NoError(t, s.db.First(&one, "email = ?", "one@gym.test").Error)
	assert.Equal(t, "300", one.PaidAmount.String())
}

func TestAssignPlanToWalkIn(t *testing.T) {
	s := setupServer(t)
	admin := s.adminToken(t)

	w := s.do(http.MethodPost, "/api/plans", admin, gin.H{"name": "Quarterly", "price": "2100", "durationDays": 90})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var plan models.Plan
	decode(t, w, &plan)

	w = s.do(http.MethodPost, "/api/members", admin, gin.H{"name": "Walk In"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec memberResp
	decode(t, w, &rec)

	w = s.do(http.MethodPost, "/api/members/"+rec.ID+"/plan", admin, gin.H{"planId": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/members/"+rec.ID+"/plan", admin, gin.H{"planId": plan.ID.String()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var assigned struct {
		PlanName        *string `json:"planName"`
		RemainingAmount string  `json:"remainingAmount"`
	}
	decode(t, w, &assigned)
	require.NotNil(t, assigned.PlanName)
	assert.Equal(t, "Quarterly", *assigned.PlanName)
	assert.Equal(t, "2100", assigned.RemainingAmount)
}
