package changelog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
)

type memChangeLogRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.ChangeLogEntry
}

func newMemChangeLogRepo() *memChangeLogRepo {
	return &memChangeLogRepo{entries: make(map[uuid.UUID]*domain.ChangeLogEntry)}
}

func (r *memChangeLogRepo) Get(_ context.Context, id uuid.UUID) (*domain.ChangeLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memChangeLogRepo) List(_ context.Context, f ListFilter) ([]domain.ChangeLogEntry, int, error) {
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

func (r *memChangeLogRepo) Create(_ context.Context, e *domain.ChangeLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *memChangeLogRepo) Review(_ context.Context, id uuid.UUID, status domain.ReviewStatus, reviewer uuid.UUID, at time.Time, notes string) (bool, error) {
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

func newTestService(t *testing.T) (*Service, *memChangeLogRepo) {
	t.Helper()
	repo := newMemChangeLogRepo()
	svc := NewService(repo)
	fixed, err := time.Parse(time.RFC3339, "2024-03-10T09:00:00Z")
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return fixed })
	return svc, repo
}

func TestReport(t *testing.T) {
	svc, _ := newTestService(t)

	e, err := svc.Report(context.Background(), ReportInput{
		HouseholdID: uuid.New(),
		ChangeType:  domain.ChangeAddress,
		Description: "house renumbering in Purok 3",
		OldValue:    "Blk 2 Lot 5",
		NewValue:    "Blk 2 Lot 7",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ReviewPending, e.Status)
	assert.Equal(t, domain.SourceAdmin, e.ReportedBy)
	assert.Nil(t, e.SurveyID, "admin reports are not tied to a survey")
}

func TestReport_UnknownType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Report(context.Background(), ReportInput{
		HouseholdID: uuid.New(),
		ChangeType:  "renovation",
	})
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestReview(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	e, err := svc.Report(ctx, ReportInput{
		HouseholdID: uuid.New(),
		ChangeType:  domain.ChangeDeceased,
	})
	require.NoError(t, err)

	reviewer := uuid.New()
	got, err := svc.Review(ctx, e.ID, domain.ReviewApproved, reviewer, "verified with death certificate")
	require.NoError(t, err)

	assert.Equal(t, domain.ReviewApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, reviewer, *got.ReviewedBy)
	assert.NotNil(t, got.ReviewedAt)
	assert.Equal(t, "verified with death certificate", got.ReviewNotes)
}

func TestReview_SecondDecisionRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	e, err := svc.Report(ctx, ReportInput{
		HouseholdID: uuid.New(),
		ChangeType:  domain.ChangeRelocation,
	})
	require.NoError(t, err)

	first := uuid.New()
	_, err = svc.Review(ctx, e.ID, domain.ReviewApproved, first, "")
	require.NoError(t, err)

	// A second reviewer cannot overturn the decision.
	_, err = svc.Review(ctx, e.ID, domain.ReviewRejected, uuid.New(), "")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, got.Status)
	assert.Equal(t, first, *got.ReviewedBy)
}

func TestReview_InvalidDecision(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Review(context.Background(), uuid.New(), domain.ReviewPending, uuid.New(), "")
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestReview_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Review(context.Background(), uuid.New(), domain.ReviewApproved, uuid.New(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}
