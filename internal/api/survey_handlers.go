package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/Maristella28/Bms-111725-sub004/internal/pkg/httputil"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
)

// surveyView is the resident-facing projection of a survey instance.
// Internal ids and dispatch bookkeeping stay out of it.
type surveyView struct {
	SurveyType    domain.SurveyType     `json:"survey_type"`
	Status        domain.SurveyStatus   `json:"status"`
	QuestionSet   []domain.Question     `json:"question_set"`
	CustomMessage string                `json:"custom_message,omitempty"`
	ExpiresAt     time.Time             `json:"expires_at"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
}

func toSurveyView(si *domain.SurveyInstance) surveyView {
	return surveyView{
		SurveyType:    si.SurveyType,
		Status:        si.Status,
		QuestionSet:   si.QuestionSet,
		CustomMessage: si.CustomMessage,
		ExpiresAt:     si.ExpiresAt,
		CompletedAt:   si.CompletedAt,
	}
}

// OpenSurvey handles GET /s/{token}. First access from a sent survey
// records the open; repeat visits are idempotent.
func (h *Handlers) OpenSurvey(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	si, err := h.surveys.Open(r.Context(), token, h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, toSurveyView(si))
}

type submitSurveyRequest struct {
	Responses map[string]string     `json:"responses"`
	Reports   []domain.ChangeReport `json:"reported_changes"`
}

// SubmitSurvey handles POST /s/{token}/responses. The submission and its
// reported changes land atomically; a closed or expired survey gets 409.
func (h *Handlers) SubmitSurvey(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var req submitSurveyRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	si, err := h.surveys.Submit(r.Context(), token, req.Responses, req.Reports, h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, toSurveyView(si))
}

// ListSurveys handles GET /api/surveys. Supports ?status=, ?schedule_id=,
// ?from=, ?to= (RFC 3339) and limit/offset pagination.
func (h *Handlers) ListSurveys(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	f := survey.ListFilter{Limit: limit, Offset: offset}

	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		f.Status = domain.SurveyStatus(raw)
	}
	if raw := q.Get("schedule_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.BadRequest(w, "invalid schedule_id")
			return
		}
		f.ScheduleID = &id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.BadRequest(w, "from must be RFC 3339")
			return
		}
		f.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.BadRequest(w, "to must be RFC 3339")
			return
		}
		f.To = &t
	}

	items, total, err := h.surveys.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, listResponse{Data: items, Total: total, Limit: limit, Offset: offset})
}

// GetSurvey handles GET /api/surveys/{id}. Unlike the resident view this
// returns the full instance, responses included.
func (h *Handlers) GetSurvey(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	si, err := h.surveys.Get(r.Context(), id, h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, si)
}
