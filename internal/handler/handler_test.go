package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"public-eye-service/config"
	"public-eye-service/internal/apperror"
	"public-eye-service/internal/auth"
	"public-eye-service/internal/database"
	"public-eye-service/internal/messaging"
	"public-eye-service/internal/model"
	"public-eye-service/internal/repository"
	"public-eye-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type stubGeocoder struct {
	address string
	err     error
}

func (g stubGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	return g.address, g.err
}

type testServer struct {
	router *gin.Engine
	worker *messaging.OutboxWorker
}

func newTestServer(t *testing.T, secret string, geocoder ReverseGeocoder) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "api.db")}
	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, cfg.Driver))

	outboxRepo := repository.NewOutboxRepository(db)
	citizenRepo := repository.NewCitizenRepository(db, outboxRepo)
	complaintRepo := repository.NewComplaintRepository(db, repository.NewSequenceRepository(db, "CVC"), citizenRepo, outboxRepo)
	notificationRepo := repository.NewNotificationRepository(db)

	consumer := messaging.NewNotificationConsumer(nil, notificationRepo, zap.NewNop())
	worker := messaging.NewOutboxWorker(outboxRepo, messaging.NewLocalPublisher(consumer), zap.NewNop())

	handlers := Handlers{
		Complaint: NewComplaintHandler(
			service.NewComplaintService(complaintRepo, config.ComplaintConfig{IDPrefix: "CVC", RewardPoints: 10}, zap.NewNop()),
			service.NewFeedbackService(complaintRepo),
		),
		Reward:       NewRewardHandler(service.NewRewardService(citizenRepo)),
		Notification: NewNotificationHandler(service.NewNotificationService(notificationRepo)),
		Location:     NewLocationHandler(geocoder),
		Health:       NewHealthHandler(worker),
	}

	router := NewRouter(handlers, RouterConfig{JWTSecret: secret, RequestTimeout: 5 * time.Second}, zap.NewNop())
	return &testServer{router: router, worker: worker}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createComplaint(t *testing.T, body gin.H) model.Complaint {
	t.Helper()
	w := s.do(t, http.MethodPost, "/complaints", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var c model.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	return c
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error, body.Code
}

func signToken(t *testing.T, role string) string {
	t.Helper()
	signed, err := auth.Issue(testSecret, "admin-1", role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})

	w := s.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Public Eye API Running", w.Body.String())

	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCreateComplaint(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})

	c := s.createComplaint(t, gin.H{
		"title":       "Pothole on Main St",
		"description": "Deep pothole",
		"type":        "potholes",
		"location":    gin.H{"address": "Main St", "latitude": 12.9, "longitude": 77.6},
	})

	assert.Equal(t, "CVC-000001", c.ID)
	assert.Equal(t, model.StatusPending, c.Status)
	assert.Equal(t, model.PriorityHigh, c.Priority)
	assert.Equal(t, model.DefaultZone, c.Zone)
	assert.Len(t, c.ProgressHistory, 1)
	require.NotNil(t, c.Location)
	assert.Equal(t, "Main St", c.Location.Address)

	w := s.do(t, http.MethodGet, "/api/complaints/"+c.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got model.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Title, got.Title)
}

func TestCreateComplaint_BadRequests(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})

	cases := map[string]any{
		"missing title":  gin.H{"description": "d", "type": "garbage"},
		"blank title":    gin.H{"title": "   ", "description": "d", "type": "garbage"},
		"unknown field":  gin.H{"title": "t", "description": "d", "type": "garbage", "status": "Resolved"},
		"malformed json": "{",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/complaints", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			_, code := decodeError(t, w)
			assert.Equal(t, string(apperror.KindValidation), code)
		})
	}

	w := s.do(t, http.MethodGet, "/complaints", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetComplaint_NotFound(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})

	w := s.do(t, http.MethodGet, "/complaints/CVC-000404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, string(apperror.KindNotFound), code)
}

func TestListComplaints(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})
	first := s.createComplaint(t, gin.H{"title": "Broken light", "description": "d", "type": "streetlight"})
	second := s.createComplaint(t, gin.H{"title": "Garbage pile", "description": "d", "type": "garbage"})
	s.do(t, http.MethodPut, "/complaints/"+first.ID, gin.H{"status": "Resolved"})

	w := s.do(t, http.MethodGet, "/complaints", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []model.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	w = s.do(t, http.MethodGet, "/complaints?status=Resolved", nil)
	var resolved []model.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	require.Len(t, resolved, 1)
	assert.Equal(t, first.ID, resolved[0].ID)

	w = s.do(t, http.MethodGet, "/complaints?q=garbage", nil)
	var searched []model.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &searched))
	require.Len(t, searched, 1)
	assert.Equal(t, second.ID, searched[0].ID)

	w = s.do(t, http.MethodGet, "/complaints?status=Closed", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/complaints/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":2,"pending":1,"inProgress":0,"resolved":1}`, w.Body.String())
}

func TestUpdateStatus(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})
	c := s.createComplaint(t, gin.H{"title": "t", "description": "d", "type": "waterlogging"})

	w := s.do(t, http.MethodPut, "/complaints/"+c.ID, gin.H{"status": "Closed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/complaints/CVC-000404", gin.H{"status": "Resolved"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/complaints/"+c.ID, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/complaints/"+c.ID, gin.H{"status": "In Progress"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Len(t, updated.ProgressHistory, 2)
	assert.False(t, updated.RewardGiven)
}

func TestUpdateStatus_RequiresAdminToken(t *testing.T) {
	s := newTestServer(t, testSecret, stubGeocoder{})
	c := s.createComplaint(t, gin.H{"title": "t", "description": "d", "type": "garbage"})
	path := "/complaints/" + c.ID
	body := gin.H{"status": "Resolved"}

	w := s.do(t, http.MethodPut, path, body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPut, path, body, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPut, path, body, "Authorization", signToken(t, "citizen"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, string(apperror.KindForbidden), code)

	w = s.do(t, http.MethodPut, path, body, "Authorization", signToken(t, "admin"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, path, nil)
	var got model.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.StatusResolved, got.Status)
}

func TestFeedback(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})
	c := s.createComplaint(t, gin.H{"title": "t", "description": "d", "type": "garbage"})
	path := "/complaints/" + c.ID + "/feedback"

	w := s.do(t, http.MethodPost, path, gin.H{"rating": 5, "comment": "great"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, string(apperror.KindInvalidState), code)

	s.do(t, http.MethodPut, "/complaints/"+c.ID, gin.H{"status": "Resolved"})

	w = s.do(t, http.MethodPost, path, gin.H{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, path, gin.H{"rating": 5, "comment": "great"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, path, gin.H{"rating": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, code = decodeError(t, w)
	assert.Equal(t, string(apperror.KindAlreadyExists), code)

	w = s.do(t, http.MethodPost, "/complaints/CVC-000404/feedback", gin.H{"rating": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRewards(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})

	w := s.do(t, http.MethodGet, "/rewards/U", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"points":0}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/rewards/claim", gin.H{"citizenId": "U", "points": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)

	c := s.createComplaint(t, gin.H{"title": "t", "description": "d", "type": "potholes", "ownerExternalId": "U"})
	w = s.do(t, http.MethodPut, "/complaints/"+c.ID, gin.H{"status": "Resolved"})
	require.Equal(t, http.StatusOK, w.Code)
	s.do(t, http.MethodPut, "/complaints/"+c.ID, gin.H{"status": "Resolved"})

	w = s.do(t, http.MethodGet, "/api/rewards/U", nil)
	assert.JSONEq(t, `{"points":10}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/rewards/claim", gin.H{"citizenId": "U", "points": 15})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, string(apperror.KindInsufficientBalance), code)

	w = s.do(t, http.MethodPost, "/rewards/claim", gin.H{"citizenId": "U", "points": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/rewards/claim", gin.H{"citizenId": "U", "points": 4})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Reward claimed successfully","remainingPoints":6}`, w.Body.String())
}

func TestNotifications(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{})
	c := s.createComplaint(t, gin.H{"title": "t", "description": "d", "type": "potholes", "ownerExternalId": "U"})
	s.do(t, http.MethodPut, "/complaints/"+c.ID, gin.H{"status": "Resolved"})

	_, err := s.worker.ProcessPending(context.Background())
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/citizens/U/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.NotificationListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Notifications, 3)

	w = s.do(t, http.MethodGet, "/citizens/nobody/notifications", nil)
	assert.JSONEq(t, `{"notifications":[]}`, w.Body.String())
}

func TestReverseGeocode(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{address: "MG Road, Bengaluru"})

	w := s.do(t, http.MethodGet, "/location/reverse?lat=12.97&lon=77.59", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"address":"MG Road, Bengaluru"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/location/reverse?lat=12.97", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/location/reverse?lat=120&lon=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReverseGeocode_UpstreamFailure(t *testing.T) {
	s := newTestServer(t, "", stubGeocoder{err: apperror.Upstream("failed to fetch address", errors.New("boom"))})

	w := s.do(t, http.MethodGet, "/api/location/reverse?lat=1&lon=2", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, string(apperror.KindUpstream), code)
}
