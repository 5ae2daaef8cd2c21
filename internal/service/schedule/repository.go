package schedule

import (
	"context"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the data access contract for survey schedules.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single schedule. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.SurveySchedule, error)

	// List returns schedules matching the filter, ordered by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.SurveySchedule, int, error)

	// Create inserts a new schedule.
	Create(ctx context.Context, s *domain.SurveySchedule) error

	// Update persists the schedule's mutable fields and bookkeeping.
	Update(ctx context.Context, s *domain.SurveySchedule) error

	// Delete removes a schedule.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListDue returns active schedules whose next_run_at has elapsed as of now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.SurveySchedule, error)

	// Claim atomically reserves a due schedule for one tick execution by
	// compare-and-swapping next_run_at against the value the tick read.
	// Returns false when another tick already claimed it.
	Claim(ctx context.Context, id uuid.UUID, expectedNextRun time.Time) (bool, error)

	// CompleteRun records a fire: advances last_run_at, sets the recomputed
	// next_run_at, and increments total_runs by one and surveys_sent by sent.
	CompleteRun(ctx context.Context, id uuid.UUID, ranAt time.Time, nextRun *time.Time, sent int) error

	// RecordRun records an out-of-band fire: advances last_run_at and the
	// run counters but leaves next_run_at alone so the recurrence cadence
	// is unaffected.
	RecordRun(ctx context.Context, id uuid.UUID, ranAt time.Time, sent int) error

	// ListStalled returns active schedules with no next_run_at. Only a
	// claim whose tick never completed leaves a schedule in that state;
	// pause deactivates before clearing the next run.
	ListStalled(ctx context.Context, limit int) ([]domain.SurveySchedule, error)

	// Reschedule restores next_run_at on a stalled schedule. Guarded so a
	// run completing concurrently is not clobbered; returns false when the
	// schedule was no longer stalled.
	Reschedule(ctx context.Context, id uuid.UUID, nextRun time.Time) (bool, error)
}

// ListFilter controls pagination and filtering for schedule lists.
type ListFilter struct {
	Active *bool
	Limit  int
	Offset int
}

// Directory is the read-only household lookup this subsystem consumes from
// the resident records module.
type Directory interface {
	// ListActive returns all active households with head/contact info.
	ListActive(ctx context.Context) ([]domain.Household, error)

	// GetByIDs returns the households with the given ids. Unknown ids are
	// silently omitted.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Household, error)
}

// TargetResolver resolves a schedule's targeting policy into a concrete
// household set at fire time.
type TargetResolver struct {
	dir Directory
}

// NewTargetResolver creates a resolver over the given directory.
func NewTargetResolver(dir Directory) *TargetResolver {
	return &TargetResolver{dir: dir}
}

// Resolve returns the households a schedule fires at.
func (r *TargetResolver) Resolve(ctx context.Context, s *domain.SurveySchedule) ([]domain.Household, error) {
	if s.Target == domain.TargetSpecific {
		return r.dir.GetByIDs(ctx, s.HouseholdIDs)
	}
	return r.dir.ListActive(ctx)
}
