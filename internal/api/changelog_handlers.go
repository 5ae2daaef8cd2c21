package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/Maristella28/Bms-111725-sub004/internal/pkg/httputil"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/changelog"
)

// ListChanges handles GET /api/changes. Supports ?status=, ?household_id=,
// ?type= and limit/offset pagination.
func (h *Handlers) ListChanges(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	f := changelog.ListFilter{Limit: limit, Offset: offset}

	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		f.Status = domain.ReviewStatus(raw)
	}
	if raw := q.Get("type"); raw != "" {
		f.ChangeType = domain.ChangeType(raw)
	}
	if raw := q.Get("household_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.BadRequest(w, "invalid household_id")
			return
		}
		f.HouseholdID = &id
	}

	items, total, err := h.changes.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, listResponse{Data: items, Total: total, Limit: limit, Offset: offset})
}

// GetChange handles GET /api/changes/{id}.
func (h *Handlers) GetChange(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	entry, err := h.changes.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, entry)
}

// ReportChange handles POST /api/changes: an administrator records a
// household change directly, outside any survey.
func (h *Handlers) ReportChange(w http.ResponseWriter, r *http.Request) {
	var input changelog.ReportInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	entry, err := h.changes.Report(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, entry)
}

type reviewChangeRequest struct {
	Decision   domain.ReviewStatus `json:"decision"`
	ReviewerID uuid.UUID           `json:"reviewer_id"`
	Notes      string              `json:"notes"`
}

// ReviewChange handles POST /api/changes/{id}/review. A second review of
// the same entry gets 409.
func (h *Handlers) ReviewChange(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req reviewChangeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	entry, err := h.changes.Review(r.Context(), id, req.Decision, req.ReviewerID, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, entry)
}
