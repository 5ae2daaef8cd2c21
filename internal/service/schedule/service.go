package schedule

import (
	"context"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/google/uuid"
)

// Service implements schedule business logic: input validation, recurrence
// bookkeeping, and pause/resume. All public methods are safe for concurrent
// use if the underlying repository is concurrency-safe.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a schedule service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the service's clock. Tests use this to pin "now".
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateInput holds the fields for creating a new schedule.
type CreateInput struct {
	Name               string                    `json:"name"`
	SurveyType         domain.SurveyType         `json:"survey_type"`
	NotificationMethod domain.NotificationMethod `json:"notification_method"`
	Frequency          domain.Frequency          `json:"frequency"`
	Target             domain.TargetPolicy       `json:"target_households"`
	HouseholdIDs       []uuid.UUID               `json:"specific_household_ids"`
	CustomMessage      string                    `json:"custom_message"`
	StartDate          string                    `json:"start_date"`     // YYYY-MM-DD
	ScheduledTime      string                    `json:"scheduled_time"` // HH:MM
	DayOfWeek          *int                      `json:"day_of_week"`
	DayOfMonth         *int                      `json:"day_of_month"`
	CreatedBy          uuid.UUID                 `json:"-"`
}

// UpdateFields holds the mutable fields for a schedule update.
// Nil fields are not applied.
type UpdateFields struct {
	Name               *string                    `json:"name"`
	SurveyType         *domain.SurveyType         `json:"survey_type"`
	NotificationMethod *domain.NotificationMethod `json:"notification_method"`
	Frequency          *domain.Frequency          `json:"frequency"`
	Target             *domain.TargetPolicy       `json:"target_households"`
	HouseholdIDs       *[]uuid.UUID               `json:"specific_household_ids"`
	CustomMessage      *string                    `json:"custom_message"`
	StartDate          *string                    `json:"start_date"`
	ScheduledTime      *string                    `json:"scheduled_time"`
	DayOfWeek          *int                       `json:"day_of_week"`
	DayOfMonth         *int                       `json:"day_of_month"`
}

// Get returns a single schedule.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.SurveySchedule, error) {
	return s.repo.Get(ctx, id)
}

// List returns schedules matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.SurveySchedule, int, error) {
	return s.repo.List(ctx, f)
}

// Create validates and persists a new active schedule with its first
// next_run_at computed from the current clock.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.SurveySchedule, error) {
	sched := &domain.SurveySchedule{
		ID:                 uuid.New(),
		Name:               input.Name,
		SurveyType:         input.SurveyType,
		NotificationMethod: input.NotificationMethod,
		Frequency:          input.Frequency,
		Target:             input.Target,
		HouseholdIDs:       input.HouseholdIDs,
		CustomMessage:      input.CustomMessage,
		IsActive:           true,
		DayOfWeek:          input.DayOfWeek,
		DayOfMonth:         input.DayOfMonth,
		CreatedBy:          input.CreatedBy,
	}

	if input.StartDate == "" {
		return nil, &ValidationError{Field: "start_date", Message: "required"}
	}
	start, err := time.Parse("2006-01-02", input.StartDate)
	if err != nil {
		return nil, &ValidationError{Field: "start_date", Message: "must be YYYY-MM-DD"}
	}
	sched.StartDate = start

	tod, err := domain.ParseTimeOfDay(input.ScheduledTime)
	if err != nil {
		return nil, &ValidationError{Field: "scheduled_time", Message: "must be HH:MM"}
	}
	sched.ScheduledTime = tod

	if err := s.validate(sched); err != nil {
		return nil, err
	}

	sched.NextRunAt = NextRun(sched, s.now())
	if err := s.repo.Create(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// Update applies the non-nil fields, re-validates, and recomputes
// next_run_at from the current clock.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u UpdateFields) (*domain.SurveySchedule, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		sched.Name = *u.Name
	}
	if u.SurveyType != nil {
		sched.SurveyType = *u.SurveyType
	}
	if u.NotificationMethod != nil {
		sched.NotificationMethod = *u.NotificationMethod
	}
	if u.Frequency != nil {
		sched.Frequency = *u.Frequency
	}
	if u.Target != nil {
		sched.Target = *u.Target
	}
	if u.HouseholdIDs != nil {
		sched.HouseholdIDs = *u.HouseholdIDs
	}
	if u.CustomMessage != nil {
		sched.CustomMessage = *u.CustomMessage
	}
	if u.StartDate != nil {
		start, err := time.Parse("2006-01-02", *u.StartDate)
		if err != nil {
			return nil, &ValidationError{Field: "start_date", Message: "must be YYYY-MM-DD"}
		}
		sched.StartDate = start
	}
	if u.ScheduledTime != nil {
		tod, err := domain.ParseTimeOfDay(*u.ScheduledTime)
		if err != nil {
			return nil, &ValidationError{Field: "scheduled_time", Message: "must be HH:MM"}
		}
		sched.ScheduledTime = tod
	}
	if u.DayOfWeek != nil {
		sched.DayOfWeek = u.DayOfWeek
	}
	if u.DayOfMonth != nil {
		sched.DayOfMonth = u.DayOfMonth
	}

	if err := s.validate(sched); err != nil {
		return nil, err
	}

	sched.NextRunAt = NextRun(sched, s.now())
	if err := s.repo.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// Pause deactivates a schedule and clears its next run.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) (*domain.SurveySchedule, error) {
	return s.setActive(ctx, id, false)
}

// Resume reactivates a schedule and recomputes its next run from now.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*domain.SurveySchedule, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id uuid.UUID, active bool) (*domain.SurveySchedule, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sched.IsActive = active
	sched.NextRunAt = NextRun(sched, s.now())
	if err := s.repo.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// Delete removes a schedule. In-flight survey instances keep their nullable
// schedule reference.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// validate enforces the schedule field invariants. It also normalizes the
// day fields: the inapplicable one is cleared, and day_of_month is clamped
// to 28 so month-length ambiguity never reaches the evaluator.
func (s *Service) validate(sched *domain.SurveySchedule) error {
	if sched.Name == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	if !sched.SurveyType.Valid() {
		return &ValidationError{Field: "survey_type", Message: "unknown survey type"}
	}
	if !sched.NotificationMethod.Valid() {
		return &ValidationError{Field: "notification_method", Message: "must be email, sms, or both"}
	}
	if !sched.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Message: "unknown frequency"}
	}

	switch sched.Target {
	case domain.TargetAll:
		sched.HouseholdIDs = nil
	case domain.TargetSpecific:
		if len(sched.HouseholdIDs) == 0 {
			return &ValidationError{Field: "specific_household_ids", Message: "required when targeting specific households"}
		}
	default:
		return &ValidationError{Field: "target_households", Message: "must be all or specific"}
	}

	switch sched.Frequency {
	case domain.FreqWeekly:
		if sched.DayOfWeek == nil {
			return &ValidationError{Field: "day_of_week", Message: "required for weekly frequency"}
		}
		if *sched.DayOfWeek < 0 || *sched.DayOfWeek > 6 {
			return &ValidationError{Field: "day_of_week", Message: "must be 0-6"}
		}
		sched.DayOfMonth = nil
	case domain.FreqMonthly:
		if sched.DayOfMonth == nil {
			return &ValidationError{Field: "day_of_month", Message: "required for monthly frequency"}
		}
		if *sched.DayOfMonth < 1 || *sched.DayOfMonth > 31 {
			return &ValidationError{Field: "day_of_month", Message: "must be 1-31"}
		}
		if *sched.DayOfMonth > maxDayOfMonth {
			clamped := maxDayOfMonth
			sched.DayOfMonth = &clamped
		}
		sched.DayOfWeek = nil
	default:
		sched.DayOfWeek = nil
		sched.DayOfMonth = nil
	}

	return nil
}
