package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/userrelay/common/httputil"
	"github.com/telhawk-systems/userrelay/internal/models"
	"github.com/telhawk-systems/userrelay/internal/relay"
	"github.com/telhawk-systems/userrelay/internal/secret"
	"github.com/telhawk-systems/userrelay/internal/service"
)

// ============================================================================
// Test Setup
// ============================================================================

type MockRelayService struct {
	mock.Mock
}

func (m *MockRelayService) Execute(ctx context.Context, key secret.String) relay.Result {
	return m.Called(ctx, key.Reveal()).Get(0).(relay.Result)
}

func (m *MockRelayService) Clear(ctx context.Context) relay.Result {
	return m.Called(ctx).Get(0).(relay.Result)
}

func (m *MockRelayService) ListUsers(ctx context.Context, page, limit int) (*models.UserList, error) {
	args := m.Called(ctx, page, limit)
	list, _ := args.Get(0).(*models.UserList)
	return list, args.Error(1)
}

func (m *MockRelayService) RecentRuns(ctx context.Context, limit int) (*models.RunList, error) {
	args := m.Called(ctx, limit)
	list, _ := args.Get(0).(*models.RunList)
	return list, args.Error(1)
}

func (m *MockRelayService) Ready(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ RelayService = (*service.RelayService)(nil)

func newHandler(svc *MockRelayService) *RelayHandler {
	return NewRelayHandler(svc, 256, nil)
}

func failed(kind relay.Kind) relay.Result {
	return relay.Result{
		Operation: relay.OperationExecute,
		Kind:      kind,
		Message:   kind.Message(),
		Err:       errors.New("detailed cause with secrets"),
	}
}

// ============================================================================
// Execute
// ============================================================================

func TestExecute_Success(t *testing.T) {
	svc := new(MockRelayService)
	svc.On("Execute", mock.Anything, "").Return(relay.Result{
		Success:   true,
		Operation: relay.OperationExecute,
		Message:   "Data processed successfully",
		Records:   3,
		Bytes:     120,
	})

	w := httptest.NewRecorder()
	newHandler(svc).Execute(w, httptest.NewRequest(http.MethodPost, "/api/execute", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Data processed successfully", body["message"])
	assert.EqualValues(t, 3, body["records"])
	svc.AssertExpectations(t)
}

func TestExecute_EmptyDocumentReportsZeroCounts(t *testing.T) {
	svc := new(MockRelayService)
	svc.On("Execute", mock.Anything, "").Return(relay.Result{
		Success:   true,
		Operation: relay.OperationExecute,
		Message:   "Data processed successfully",
	})

	w := httptest.NewRecorder()
	newHandler(svc).Execute(w, httptest.NewRequest(http.MethodPost, "/api/execute", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"success":true,"operation":"execute","message":"Data processed successfully","records":0,"bytes":0}`,
		w.Body.String())
}

func TestExecute_KeyFromBody(t *testing.T) {
	svc := new(MockRelayService)
	svc.On("Execute", mock.Anything, "abcdef").Return(relay.Result{Success: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(`{"key":"abcdef"}`))
	newHandler(svc).Execute(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestExecute_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"key":`},
		{"unknown field", `{"encrypted":"00"}`},
		{"oversized", `{"key":"` + strings.Repeat("a", 1024) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRelayService)
			w := httptest.NewRecorder()
			newHandler(svc).Execute(w, httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
		})
	}
}

func TestExecute_FailureStatuses(t *testing.T) {
	tests := []struct {
		kind relay.Kind
		want int
	}{
		{relay.KindFetch, http.StatusBadGateway},
		{relay.KindDecode, http.StatusUnprocessableEntity},
		{relay.KindAuthenticationFailed, http.StatusUnprocessableEntity},
		{relay.KindCryptoFailure, http.StatusInternalServerError},
		{relay.KindParse, http.StatusUnprocessableEntity},
		{relay.KindForward, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			svc := new(MockRelayService)
			svc.On("Execute", mock.Anything, "").Return(failed(tt.kind))

			w := httptest.NewRecorder()
			newHandler(svc).Execute(w, httptest.NewRequest(http.MethodPost, "/api/execute", nil))

			assert.Equal(t, tt.want, w.Code)
			assert.NotContains(t, w.Body.String(), "detailed cause")

			var body httputil.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, string(tt.kind), body.Kind)
			assert.Equal(t, tt.kind.Message(), body.Error)
		})
	}
}

// ============================================================================
// Clear
// ============================================================================

func TestClear(t *testing.T) {
	svc := new(MockRelayService)
	svc.On("Clear", mock.Anything).Return(relay.Result{
		Success:   true,
		Operation: relay.OperationClear,
		Message:   "Data cleared successfully",
	}).Once()
	svc.On("Clear", mock.Anything).Return(relay.Result{
		Operation: relay.OperationClear,
		Kind:      relay.KindForward,
		Message:   relay.KindForward.Message(),
	}).Once()

	h := newHandler(svc)

	w := httptest.NewRecorder()
	h.Clear(w, httptest.NewRequest(http.MethodPost, "/api/clear", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"operation":"clear","message":"Data cleared successfully"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.Clear(w, httptest.NewRequest(http.MethodPost, "/api/clear", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

// ============================================================================
// Users and runs
// ============================================================================

func TestListUsers(t *testing.T) {
	svc := new(MockRelayService)
	svc.On("ListUsers", mock.Anything, 2, 10).Return(&models.UserList{
		Users: []*models.User{{ID: 11, Name: "Ada"}},
		Page:  2,
		Limit: 10,
		Total: 11,
	}, nil)

	w := httptest.NewRecorder()
	newHandler(svc).ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/users?page=2&limit=10", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var list models.UserList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 11, list.Total)
	assert.Equal(t, "Ada", list.Users[0].Name)
}

func TestListUsers_HugePageIsClamped(t *testing.T) {
	svc := new(MockRelayService)
	svc.On("ListUsers", mock.Anything, math.MaxInt/maxPageSize+1, maxPageSize).
		Return(&models.UserList{Users: []*models.User{}, Total: 2}, nil)

	w := httptest.NewRecorder()
	newHandler(svc).ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/users?page=184467440737095517&limit=500", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestListUsers_Error(t *testing.T) {
	svc := new(MockRelayService)
	svc.On("ListUsers", mock.Anything, 1, defaultPageSize).Return(nil, errors.New("pool closed"))

	w := httptest.NewRecorder()
	newHandler(svc).ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pool closed")
}

func TestRecentRuns(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
		list      *models.RunList
		err       error
		want      int
	}{
		{"default limit", "", defaultRuns, &models.RunList{Runs: []models.RunRecord{{ID: "r1"}}, Total: 1}, nil, http.StatusOK},
		{"capped", "?limit=9999", maxRuns, &models.RunList{}, nil, http.StatusOK},
		{"disabled", "?limit=5", 5, nil, service.ErrHistoryDisabled, http.StatusNotFound},
		{"backend error", "", defaultRuns, nil, errors.New("opensearch error"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRelayService)
			svc.On("RecentRuns", mock.Anything, tt.wantLimit).Return(tt.list, tt.err)

			w := httptest.NewRecorder()
			newHandler(svc).RecentRuns(w, httptest.NewRequest(http.MethodGet, "/api/runs"+tt.query, nil))

			assert.Equal(t, tt.want, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

// ============================================================================
// Health
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	svc := new(MockRelayService)
	svc.On("Ready", mock.Anything).Return(nil).Once()
	svc.On("Ready", mock.Anything).Return(errors.New("db down")).Once()
	h := newHandler(svc)

	w := httptest.NewRecorder()
	h.Up(w, httptest.NewRequest(http.MethodGet, "/up", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = httptest.NewRecorder()
	h.ReadyCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ReadyCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}
