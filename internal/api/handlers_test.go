package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/changelog"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/schedule"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
)

// =============================================================================
// In-memory backing stores
// =============================================================================

type memScheduleRepo struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*domain.SurveySchedule
}

func newMemScheduleRepo() *memScheduleRepo {
	return &memScheduleRepo{schedules: make(map[uuid.UUID]*domain.SurveySchedule)}
}

func (r *memScheduleRepo) Get(_ context.Context, id uuid.UUID) (*domain.SurveySchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memScheduleRepo) List(_ context.Context, f schedule.ListFilter) ([]domain.SurveySchedule, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SurveySchedule
	for _, s := range r.schedules {
		if f.Active != nil && s.IsActive != *f.Active {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (r *memScheduleRepo) Create(_ context.Context, s *domain.SurveySchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.schedules[s.ID] = &cp
	return nil
}

func (r *memScheduleRepo) Update(_ context.Context, s *domain.SurveySchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[s.ID]; !ok {
		return schedule.ErrNotFound
	}
	cp := *s
	r.schedules[s.ID] = &cp
	return nil
}

func (r *memScheduleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(r.schedules, id)
	return nil
}

func (r *memScheduleRepo) ListDue(_ context.Context, _ time.Time, _ int) ([]domain.SurveySchedule, error) {
	return nil, nil
}

func (r *memScheduleRepo) Claim(_ context.Context, _ uuid.UUID, _ time.Time) (bool, error) {
	return false, nil
}

func (r *memScheduleRepo) CompleteRun(_ context.Context, _ uuid.UUID, _ time.Time, _ *time.Time, _ int) error {
	return nil
}

func (r *memScheduleRepo) RecordRun(_ context.Context, _ uuid.UUID, _ time.Time, _ int) error {
	return nil
}

func (r *memScheduleRepo) ListStalled(_ context.Context, _ int) ([]domain.SurveySchedule, error) {
	return nil, nil
}

func (r *memScheduleRepo) Reschedule(_ context.Context, _ uuid.UUID, _ time.Time) (bool, error) {
	return false, nil
}

type memChangeRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.ChangeLogEntry
}

func newMemChangeRepo() *memChangeRepo {
	return &memChangeRepo{entries: make(map[uuid.UUID]*domain.ChangeLogEntry)}
}

func (r *memChangeRepo) Get(_ context.Context, id uuid.UUID) (*domain.ChangeLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, changelog.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memChangeRepo) List(_ context.Context, f changelog.ListFilter) ([]domain.ChangeLogEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ChangeLogEntry
	for _, e := range r.entries {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.HouseholdID != nil && e.HouseholdID != *f.HouseholdID {
			continue
		}
		if f.ChangeType != "" && e.ChangeType != f.ChangeType {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (r *memChangeRepo) Create(_ context.Context, e *domain.ChangeLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *memChangeRepo) Review(_ context.Context, id uuid.UUID, status domain.ReviewStatus, reviewer uuid.UUID, at time.Time, notes string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != domain.ReviewPending {
		return false, nil
	}
	e.Status = status
	e.ReviewedBy = &reviewer
	e.ReviewedAt = &at
	e.ReviewNotes = notes
	return true, nil
}

// memSurveyRepo shares the change repo so a completed submission lands its
// change-log entries the way the transactional Postgres repo does.
type memSurveyRepo struct {
	mu        sync.Mutex
	instances map[uuid.UUID]*domain.SurveyInstance
	byToken   map[string]uuid.UUID
	changes   *memChangeRepo
}

func newMemSurveyRepo(changes *memChangeRepo) *memSurveyRepo {
	return &memSurveyRepo{
		instances: make(map[uuid.UUID]*domain.SurveyInstance),
		byToken:   make(map[string]uuid.UUID),
		changes:   changes,
	}
}

func (r *memSurveyRepo) Create(_ context.Context, si *domain.SurveyInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byToken[si.AccessToken]; dup {
		return survey.ErrTokenExists
	}
	cp := *si
	r.instances[si.ID] = &cp
	r.byToken[si.AccessToken] = si.ID
	return nil
}

func (r *memSurveyRepo) Get(_ context.Context, id uuid.UUID) (*domain.SurveyInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	si, ok := r.instances[id]
	if !ok {
		return nil, survey.ErrNotFound
	}
	cp := *si
	return &cp, nil
}

func (r *memSurveyRepo) GetByToken(_ context.Context, token string) (*domain.SurveyInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byToken[token]
	if !ok {
		return nil, survey.ErrNotFound
	}
	cp := *r.instances[id]
	return &cp, nil
}

func (r *memSurveyRepo) List(_ context.Context, f survey.ListFilter) ([]domain.SurveyInstance, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SurveyInstance
	for _, si := range r.instances {
		if f.Status != "" && si.Status != f.Status {
			continue
		}
		if f.ScheduleID != nil && (si.ScheduleID == nil || *si.ScheduleID != *f.ScheduleID) {
			continue
		}
		out = append(out, *si)
	}
	return out, len(out), nil
}

func (r *memSurveyRepo) MarkSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(id, domain.SurveyPending, domain.SurveySent, at)
}

func (r *memSurveyRepo) MarkOpened(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(id, domain.SurveySent, domain.SurveyOpened, at)
}

func (r *memSurveyRepo) transition(id uuid.UUID, from, to domain.SurveyStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	si, ok := r.instances[id]
	if !ok || si.Status != from {
		return false, nil
	}
	si.Status = to
	switch to {
	case domain.SurveySent:
		si.SentAt = &at
	case domain.SurveyOpened:
		si.OpenedAt = &at
	}
	return true, nil
}

func (r *memSurveyRepo) MarkExpired(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	si, ok := r.instances[id]
	if !ok || si.Status.Terminal() {
		return false, nil
	}
	si.Status = domain.SurveyExpired
	return true, nil
}

func (r *memSurveyRepo) CompleteWithChanges(ctx context.Context, id uuid.UUID, at time.Time, responses map[string]string, reports []domain.ChangeReport, entries []domain.ChangeLogEntry) (bool, error) {
	r.mu.Lock()
	si, ok := r.instances[id]
	if !ok || (si.Status != domain.SurveySent && si.Status != domain.SurveyOpened) || !si.ExpiresAt.After(at) {
		r.mu.Unlock()
		return false, nil
	}
	si.Status = domain.SurveyCompleted
	si.CompletedAt = &at
	si.Responses = responses
	si.AdditionalInfo = reports
	r.mu.Unlock()

	for i := range entries {
		if err := r.changes.Create(ctx, &entries[i]); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *memSurveyRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, si := range r.instances {
		if si.ExpiredBy(now) {
			si.Status = domain.SurveyExpired
			n++
		}
	}
	return n, nil
}

func (r *memSurveyRepo) ListPendingDispatch(_ context.Context, limit int) ([]domain.SurveyInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SurveyInstance
	for _, si := range r.instances {
		if si.Status == domain.SurveyPending {
			out = append(out, *si)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type stubRunner struct {
	sent int
	err  error
}

func (s *stubRunner) RunNow(_ context.Context, _ uuid.UUID, _ time.Time) (int, error) {
	return s.sent, s.err
}

// =============================================================================
// Fixture
// =============================================================================

type apiFixture struct {
	router    http.Handler
	schedules *memScheduleRepo
	surveys   *memSurveyRepo
	changes   *memChangeRepo
	surveySvc *survey.Service
	now       time.Time
}

func newAPIFixture(t *testing.T, runner Runner) *apiFixture {
	t.Helper()

	now, _ := time.Parse(time.RFC3339, "2024-03-10T08:00:00Z")

	schedRepo := newMemScheduleRepo()
	changeRepo := newMemChangeRepo()
	surveyRepo := newMemSurveyRepo(changeRepo)

	schedSvc := schedule.NewService(schedRepo)
	schedSvc.SetClock(func() time.Time { return now })
	surveySvc := survey.NewService(surveyRepo, 14*24*time.Hour)
	changeSvc := changelog.NewService(changeRepo)
	changeSvc.SetClock(func() time.Time { return now })

	h := NewHandlers(schedSvc, surveySvc, changeSvc, runner, nil)
	h.SetClock(func() time.Time { return now })

	return &apiFixture{
		router:    SetupRoutes(h, nil),
		schedules: schedRepo,
		surveys:   surveyRepo,
		changes:   changeRepo,
		surveySvc: surveySvc,
		now:       now,
	}
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

// issueSent seeds one sent survey instance and returns its token.
func (fx *apiFixture) issueSent(t *testing.T, surveyType domain.SurveyType) *domain.SurveyInstance {
	t.Helper()
	si, err := fx.surveySvc.Issue(context.Background(), survey.IssueInput{
		HouseholdID:        uuid.New(),
		SurveyType:         surveyType,
		NotificationMethod: domain.NotifyEmail,
	}, fx.now)
	require.NoError(t, err)
	require.NoError(t, fx.surveySvc.MarkSent(context.Background(), si.ID, fx.now))
	return si
}

func requiredAnswers(si *domain.SurveyInstance) map[string]string {
	answers := make(map[string]string)
	for _, q := range si.QuestionSet {
		if q.Required {
			answers[q.Key] = "yes"
		}
	}
	return answers
}

// =============================================================================
// Health
// =============================================================================

func TestHealthCheck(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

// =============================================================================
// Schedules
// =============================================================================

func validScheduleBody() map[string]any {
	return map[string]any{
		"name":                "monthly census",
		"survey_type":         "comprehensive",
		"notification_method": "email",
		"frequency":           "monthly",
		"target_households":   "all",
		"start_date":          "2024-03-01",
		"scheduled_time":      "09:00",
		"day_of_month":        15,
		"created_by":          uuid.New().String(),
	}
}

func TestCreateSchedule(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodPost, "/api/schedules", validScheduleBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.SurveySchedule
	decodeBody(t, rec, &created)
	assert.Equal(t, "monthly census", created.Name)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.NextRunAt)
	assert.Equal(t, "2024-03-15T09:00:00Z", created.NextRunAt.Format(time.RFC3339))
}

func TestCreateSchedule_ValidationError(t *testing.T) {
	fx := newAPIFixture(t, nil)

	body := validScheduleBody()
	body["frequency"] = "fortnightly"
	rec := fx.do(t, http.MethodPost, "/api/schedules", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSchedule_NotFound(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodGet, "/api/schedules/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSchedule_BadID(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodGet, "/api/schedules/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPauseResumeSchedule(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodPost, "/api/schedules", validScheduleBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.SurveySchedule
	decodeBody(t, rec, &created)

	rec = fx.do(t, http.MethodPost, "/api/schedules/"+created.ID.String()+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var paused domain.SurveySchedule
	decodeBody(t, rec, &paused)
	assert.False(t, paused.IsActive)
	assert.Nil(t, paused.NextRunAt)

	rec = fx.do(t, http.MethodPost, "/api/schedules/"+created.ID.String()+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resumed domain.SurveySchedule
	decodeBody(t, rec, &resumed)
	assert.True(t, resumed.IsActive)
	assert.NotNil(t, resumed.NextRunAt)
}

func TestDeleteSchedule(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodPost, "/api/schedules", validScheduleBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.SurveySchedule
	decodeBody(t, rec, &created)

	rec = fx.do(t, http.MethodDelete, "/api/schedules/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = fx.do(t, http.MethodGet, "/api/schedules/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunScheduleNow(t *testing.T) {
	fx := newAPIFixture(t, &stubRunner{sent: 7})

	rec := fx.do(t, http.MethodPost, "/api/schedules/"+uuid.New().String()+"/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	decodeBody(t, rec, &body)
	assert.Equal(t, 7, body["sent"])
}

func TestRunScheduleNow_NoRunner(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodPost, "/api/schedules/"+uuid.New().String()+"/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// =============================================================================
// Resident survey access
// =============================================================================

func TestOpenSurvey(t *testing.T) {
	fx := newAPIFixture(t, nil)
	si := fx.issueSent(t, domain.SurveyContact)

	rec := fx.do(t, http.MethodGet, "/s/"+si.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view map[string]any
	decodeBody(t, rec, &view)
	assert.Equal(t, "opened", view["status"])
	assert.Equal(t, "contact", view["survey_type"])
	// The resident view must not leak internal identifiers.
	assert.NotContains(t, view, "household_id")
	assert.NotContains(t, view, "access_token")
}

func TestOpenSurvey_UnknownToken(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodGet, "/s/no-such-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitSurvey(t *testing.T) {
	fx := newAPIFixture(t, nil)
	si := fx.issueSent(t, domain.SurveyContact)

	body := map[string]any{
		"responses": requiredAnswers(si),
		"reported_changes": []map[string]string{{
			"type":        "contact_update",
			"description": "new mobile number",
			"new_value":   "+639171234567",
		}},
	}
	rec := fx.do(t, http.MethodPost, "/s/"+si.AccessToken+"/responses", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view map[string]any
	decodeBody(t, rec, &view)
	assert.Equal(t, "completed", view["status"])

	// The reported change surfaced as a pending-review entry.
	rec = fx.do(t, http.MethodGet, "/api/changes?status=pending_review", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.Total)
}

func TestSubmitSurvey_DuplicateConflicts(t *testing.T) {
	fx := newAPIFixture(t, nil)
	si := fx.issueSent(t, domain.SurveyQuick)

	body := map[string]any{"responses": requiredAnswers(si)}
	rec := fx.do(t, http.MethodPost, "/s/"+si.AccessToken+"/responses", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodPost, "/s/"+si.AccessToken+"/responses", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitSurvey_MissingAnswers(t *testing.T) {
	fx := newAPIFixture(t, nil)
	si := fx.issueSent(t, domain.SurveyContact)

	rec := fx.do(t, http.MethodPost, "/s/"+si.AccessToken+"/responses",
		map[string]any{"responses": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Admin surveys
// =============================================================================

func TestListSurveys_FilterByStatus(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.issueSent(t, domain.SurveyQuick)
	fx.issueSent(t, domain.SurveyQuick)

	rec := fx.do(t, http.MethodGet, "/api/surveys?status=sent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	decodeBody(t, rec, &list)
	assert.Equal(t, 2, list.Total)

	rec = fx.do(t, http.MethodGet, "/api/surveys?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	assert.Equal(t, 0, list.Total)
}

func TestGetSurvey_FullRecord(t *testing.T) {
	fx := newAPIFixture(t, nil)
	si := fx.issueSent(t, domain.SurveyQuick)

	rec := fx.do(t, http.MethodGet, "/api/surveys/"+si.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var full domain.SurveyInstance
	decodeBody(t, rec, &full)
	assert.Equal(t, si.ID, full.ID)
	assert.Equal(t, si.AccessToken, full.AccessToken)
}

// =============================================================================
// Change log
// =============================================================================

func TestReportChange(t *testing.T) {
	fx := newAPIFixture(t, nil)

	body := map[string]string{
		"household_id": uuid.New().String(),
		"change_type":  "deceased",
		"description":  "household head passed away in February",
	}
	rec := fx.do(t, http.MethodPost, "/api/changes", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var e domain.ChangeLogEntry
	decodeBody(t, rec, &e)
	assert.Equal(t, domain.ReviewPending, e.Status)
	assert.Equal(t, domain.SourceAdmin, e.ReportedBy)
}

func TestReportChange_UnknownType(t *testing.T) {
	fx := newAPIFixture(t, nil)

	body := map[string]string{
		"household_id": uuid.New().String(),
		"change_type":  "alien_abduction",
	}
	rec := fx.do(t, http.MethodPost, "/api/changes", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewChange(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodPost, "/api/changes", map[string]string{
		"household_id": uuid.New().String(),
		"change_type":  "relocation",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var e domain.ChangeLogEntry
	decodeBody(t, rec, &e)

	reviewPath := fmt.Sprintf("/api/changes/%s/review", e.ID)
	rec = fx.do(t, http.MethodPost, reviewPath, map[string]string{
		"decision":    "approved",
		"reviewer_id": uuid.New().String(),
		"notes":       "confirmed by purok leader",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reviewed domain.ChangeLogEntry
	decodeBody(t, rec, &reviewed)
	assert.Equal(t, domain.ReviewApproved, reviewed.Status)
	assert.NotNil(t, reviewed.ReviewedBy)

	// A second decision hits the already-reviewed guard.
	rec = fx.do(t, http.MethodPost, reviewPath, map[string]string{
		"decision":    "rejected",
		"reviewer_id": uuid.New().String(),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewChange_InvalidDecision(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(t, http.MethodPost, "/api/changes", map[string]string{
		"household_id": uuid.New().String(),
		"change_type":  "relocation",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var e domain.ChangeLogEntry
	decodeBody(t, rec, &e)

	rec = fx.do(t, http.MethodPost, fmt.Sprintf("/api/changes/%s/review", e.ID),
		map[string]string{"decision": "pending_review", "reviewer_id": uuid.New().String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
