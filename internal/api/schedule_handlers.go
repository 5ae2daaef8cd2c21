package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Maristella28/Bms-111725-sub004/internal/pkg/httputil"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/schedule"
)

type createScheduleRequest struct {
	schedule.CreateInput
	CreatedBy uuid.UUID `json:"created_by"`
}

// CreateSchedule handles POST /api/schedules.
func (h *Handlers) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	input := req.CreateInput
	input.CreatedBy = req.CreatedBy

	s, err := h.schedules.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, s)
}

// ListSchedules handles GET /api/schedules.
// Supports ?active=true|false and limit/offset pagination.
func (h *Handlers) ListSchedules(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	f := schedule.ListFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.BadRequest(w, "active must be true or false")
			return
		}
		f.Active = &active
	}

	items, total, err := h.schedules.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, listResponse{Data: items, Total: total, Limit: limit, Offset: offset})
}

// GetSchedule handles GET /api/schedules/{id}.
func (h *Handlers) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s, err := h.schedules.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, s)
}

// UpdateSchedule handles PUT /api/schedules/{id}.
func (h *Handlers) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var fields schedule.UpdateFields
	if !httputil.Decode(w, r, &fields) {
		return
	}
	s, err := h.schedules.Update(r.Context(), id, fields)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, s)
}

// DeleteSchedule handles DELETE /api/schedules/{id}.
func (h *Handlers) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.schedules.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// PauseSchedule handles POST /api/schedules/{id}/pause.
func (h *Handlers) PauseSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s, err := h.schedules.Pause(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, s)
}

// ResumeSchedule handles POST /api/schedules/{id}/resume.
func (h *Handlers) ResumeSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s, err := h.schedules.Resume(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, s)
}

// RunScheduleNow handles POST /api/schedules/{id}/run. The fire is
// out-of-band: counters and last_run_at advance but the recurrence
// position is not consumed.
func (h *Handlers) RunScheduleNow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if h.runner == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "dispatch not available")
		return
	}
	sent, err := h.runner.RunNow(r.Context(), id, h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"sent": sent})
}
