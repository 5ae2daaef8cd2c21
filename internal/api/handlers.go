package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Maristella28/Bms-111725-sub004/internal/pkg/httputil"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/changelog"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/schedule"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Runner fires a schedule outside its recurrence. Implemented by the
// dispatch worker.
type Runner interface {
	RunNow(ctx context.Context, id uuid.UUID, now time.Time) (int, error)
}

// Handlers holds the HTTP handlers and their service dependencies.
type Handlers struct {
	schedules *schedule.Service
	surveys   *survey.Service
	changes   *changelog.Service
	runner    Runner
	db        *sql.DB
	now       func() time.Time
}

// NewHandlers creates the handler set. db may be nil in tests; the health
// check then skips the database ping.
func NewHandlers(
	schedules *schedule.Service,
	surveys *survey.Service,
	changes *changelog.Service,
	runner Runner,
	db *sql.DB,
) *Handlers {
	return &Handlers{
		schedules: schedules,
		surveys:   surveys,
		changes:   changes,
		runner:    runner,
		db:        db,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the handler clock. Tests use this to pin "now".
func (h *Handlers) SetClock(now func() time.Time) { h.now = now }

// HealthCheck reports process and database health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status": "ok",
		"time":   h.now().Format(time.RFC3339),
	}
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			httputil.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	httputil.OK(w, status)
}

// listResponse is the standard envelope for paginated collections.
type listResponse struct {
	Data   any `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// writeServiceError maps service-layer errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case schedule.IsValidation(err),
		errors.Is(err, survey.ErrIncompleteResponse),
		errors.Is(err, changelog.ErrInvalidDecision),
		errors.Is(err, changelog.ErrInvalidType):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, schedule.ErrNotFound),
		errors.Is(err, survey.ErrNotFound),
		errors.Is(err, changelog.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, survey.ErrClosed),
		errors.Is(err, changelog.ErrAlreadyReviewed):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

// parseID extracts and validates a UUID path parameter.
func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// parsePage reads limit/offset query parameters with sane bounds.
func parsePage(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
