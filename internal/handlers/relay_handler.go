package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/telhawk-systems/userrelay/common/httputil"
	"github.com/telhawk-systems/userrelay/internal/models"
	"github.com/telhawk-systems/userrelay/internal/relay"
	"github.com/telhawk-systems/userrelay/internal/secret"
	"github.com/telhawk-systems/userrelay/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	defaultRuns     = 20
	maxRuns         = 200
	readyTimeout    = 2 * time.Second
)

// RelayService is the subset of service.RelayService used by the handlers.
type RelayService interface {
	Execute(ctx context.Context, key secret.String) relay.Result
	Clear(ctx context.Context) relay.Result
	ListUsers(ctx context.Context, page, limit int) (*models.UserList, error)
	RecentRuns(ctx context.Context, limit int) (*models.RunList, error)
	Ready(ctx context.Context) error
}

type RelayHandler struct {
	service      RelayService
	maxBodyBytes int64
	logger       *slog.Logger
}

func NewRelayHandler(svc RelayService, maxBodyBytes int64, logger *slog.Logger) *RelayHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayHandler{
		service:      svc,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

type executeRequest struct {
	Key secret.String `json:"key"`
}

// Execute handles POST /api/execute. The body is optional.
func (h *RelayHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := httputil.DecodeOptionalJSON(r, h.maxBodyBytes, &req); err != nil {
		httputil.WriteKindError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	writeResult(w, h.service.Execute(r.Context(), req.Key))
}

// Clear handles POST /api/clear.
func (h *RelayHandler) Clear(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.Clear(r.Context()))
}

// ListUsers handles GET /api/users?page=&limit=.
func (h *RelayHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p := httputil.ParsePagination(r, defaultPageSize, maxPageSize)

	list, err := h.service.ListUsers(r.Context(), p.Page, p.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list users", slog.String("error", err.Error()))
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// RecentRuns handles GET /api/runs?limit=.
func (h *RelayHandler) RecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), defaultRuns)
	if limit < 1 {
		limit = defaultRuns
	}
	if limit > maxRuns {
		limit = maxRuns
	}

	runs, err := h.service.RecentRuns(r.Context(), limit)
	if errors.Is(err, service.ErrHistoryDisabled) {
		httputil.WriteError(w, http.StatusNotFound, "Run history is not enabled")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load run history", slog.String("error", err.Error()))
		httputil.WriteError(w, http.StatusBadGateway, "Failed to load run history")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

// Up answers liveness probes with an empty 200.
func (h *RelayHandler) Up(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *RelayHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *RelayHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.service.Ready(ctx); err != nil {
		h.logger.WarnContext(ctx, "readiness check failed", slog.String("error", err.Error()))
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// runResponse is the success body of execute and clear. Execute always
// reports its counts, including zero for an empty document.
type runResponse struct {
	Success   bool            `json:"success"`
	Operation relay.Operation `json:"operation"`
	Message   string          `json:"message"`
	Records   *int            `json:"records,omitempty"`
	Bytes     *int            `json:"bytes,omitempty"`
}

func writeResult(w http.ResponseWriter, res relay.Result) {
	if res.Success {
		body := runResponse{Success: true, Operation: res.Operation, Message: res.Message}
		if res.Operation == relay.OperationExecute {
			body.Records, body.Bytes = &res.Records, &res.Bytes
		}
		httputil.WriteJSON(w, http.StatusOK, body)
		return
	}
	httputil.WriteKindError(w, StatusForKind(res.Kind), string(res.Kind), res.Message)
}

// StatusForKind maps a failure category to its HTTP status.
func StatusForKind(k relay.Kind) int {
	switch k {
	case relay.KindFetch, relay.KindForward:
		return http.StatusBadGateway
	case relay.KindDecode, relay.KindAuthenticationFailed, relay.KindParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
