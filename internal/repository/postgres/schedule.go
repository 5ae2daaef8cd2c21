package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/schedule"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ScheduleRepo implements schedule.Repository against PostgreSQL.
type ScheduleRepo struct{ db *sql.DB }

// NewScheduleRepo creates a Postgres-backed schedule repository.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

const scheduleColumns = `
	id, name, survey_type, notification_method, frequency,
	target_households, specific_household_ids, COALESCE(custom_message,''),
	is_active, start_date, scheduled_time, day_of_week, day_of_month,
	last_run_at, next_run_at, total_runs, surveys_sent,
	created_by, created_at, updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (*domain.SurveySchedule, error) {
	s := &domain.SurveySchedule{}
	var (
		ids        []string
		timeOfDay  string
		dayOfWeek  sql.NullInt64
		dayOfMonth sql.NullInt64
		lastRun    sql.NullTime
		nextRun    sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.SurveyType, &s.NotificationMethod, &s.Frequency,
		&s.Target, pq.Array(&ids), &s.CustomMessage,
		&s.IsActive, &s.StartDate, &timeOfDay, &dayOfWeek, &dayOfMonth,
		&lastRun, &nextRun, &s.TotalRuns, &s.SurveysSent,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("scan schedule household id: %w", err)
		}
		s.HouseholdIDs = append(s.HouseholdIDs, id)
	}
	if s.ScheduledTime, err = domain.ParseTimeOfDay(timeOfDay); err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	if dayOfWeek.Valid {
		v := int(dayOfWeek.Int64)
		s.DayOfWeek = &v
	}
	if dayOfMonth.Valid {
		v := int(dayOfMonth.Int64)
		s.DayOfMonth = &v
	}
	if lastRun.Valid {
		t := lastRun.Time
		s.LastRunAt = &t
	}
	if nextRun.Valid {
		t := nextRun.Time
		s.NextRunAt = &t
	}
	return s, nil
}

func householdIDStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *ScheduleRepo) Get(ctx context.Context, id uuid.UUID) (*domain.SurveySchedule, error) {
	s, err := scanSchedule(r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM survey_schedules WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (r *ScheduleRepo) List(ctx context.Context, f schedule.ListFilter) ([]domain.SurveySchedule, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []any{}
	if f.Active != nil {
		where = " WHERE is_active = $1"
		args = append(args, *f.Active)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM survey_schedules`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM survey_schedules%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		scheduleColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.SurveySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

func (r *ScheduleRepo) Create(ctx context.Context, s *domain.SurveySchedule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO survey_schedules
			(id, name, survey_type, notification_method, frequency,
			 target_households, specific_household_ids, custom_message,
			 is_active, start_date, scheduled_time, day_of_week, day_of_month,
			 last_run_at, next_run_at, total_runs, surveys_sent,
			 created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,0,0,$16,NOW(),NOW())
	`, s.ID, s.Name, s.SurveyType, s.NotificationMethod, s.Frequency,
		s.Target, pq.Array(householdIDStrings(s.HouseholdIDs)), s.CustomMessage,
		s.IsActive, s.StartDate, s.ScheduledTime.String(), s.DayOfWeek, s.DayOfMonth,
		s.LastRunAt, s.NextRunAt, s.CreatedBy)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) Update(ctx context.Context, s *domain.SurveySchedule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey_schedules SET
			name=$2, survey_type=$3, notification_method=$4, frequency=$5,
			target_households=$6, specific_household_ids=$7, custom_message=$8,
			is_active=$9, start_date=$10, scheduled_time=$11,
			day_of_week=$12, day_of_month=$13, next_run_at=$14, updated_at=NOW()
		WHERE id = $1
	`, s.ID, s.Name, s.SurveyType, s.NotificationMethod, s.Frequency,
		s.Target, pq.Array(householdIDStrings(s.HouseholdIDs)), s.CustomMessage,
		s.IsActive, s.StartDate, s.ScheduledTime.String(),
		s.DayOfWeek, s.DayOfMonth, s.NextRunAt)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM survey_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.SurveySchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM survey_schedules
		WHERE is_active = true AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.SurveySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due schedule: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Claim reserves a due schedule by nulling next_run_at only if it still
// equals the value the tick read. A schedule with a null next_run_at is
// invisible to ListDue; CompleteRun restores the recomputed value.
func (r *ScheduleRepo) Claim(ctx context.Context, id uuid.UUID, expectedNextRun time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey_schedules
		SET next_run_at = NULL, updated_at = NOW()
		WHERE id = $1 AND next_run_at = $2
	`, id, expectedNextRun)
	if err != nil {
		return false, fmt.Errorf("claim schedule: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *ScheduleRepo) CompleteRun(ctx context.Context, id uuid.UUID, ranAt time.Time, nextRun *time.Time, sent int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE survey_schedules
		SET last_run_at = $2, next_run_at = $3,
		    total_runs = total_runs + 1, surveys_sent = surveys_sent + $4,
		    updated_at = NOW()
		WHERE id = $1
	`, id, ranAt, nextRun, sent)
	if err != nil {
		return fmt.Errorf("complete schedule run: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) RecordRun(ctx context.Context, id uuid.UUID, ranAt time.Time, sent int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE survey_schedules
		SET last_run_at = $2,
		    total_runs = total_runs + 1, surveys_sent = surveys_sent + $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, ranAt, sent)
	if err != nil {
		return fmt.Errorf("record schedule run: %w", err)
	}
	return nil
}

// ListStalled finds schedules a crashed tick left claimed: active, but
// invisible to ListDue because next_run_at was nulled and never restored.
func (r *ScheduleRepo) ListStalled(ctx context.Context, limit int) ([]domain.SurveySchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM survey_schedules
		WHERE is_active = true AND next_run_at IS NULL
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list stalled schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.SurveySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stalled schedule: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Reschedule restores next_run_at only while it is still null, so a run
// that completes between the stalled scan and this update wins.
func (r *ScheduleRepo) Reschedule(ctx context.Context, id uuid.UUID, nextRun time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey_schedules
		SET next_run_at = $2, updated_at = NOW()
		WHERE id = $1 AND next_run_at IS NULL
	`, id, nextRun)
	if err != nil {
		return false, fmt.Errorf("reschedule: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
