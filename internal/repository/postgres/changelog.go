package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/changelog"
	"github.com/google/uuid"
)

// ChangeLogRepo implements changelog.Repository against PostgreSQL.
type ChangeLogRepo struct{ db *sql.DB }

// NewChangeLogRepo creates a Postgres-backed change-log repository.
func NewChangeLogRepo(db *sql.DB) *ChangeLogRepo { return &ChangeLogRepo{db: db} }

const changeLogColumns = `
	id, household_id, survey_id, change_type, COALESCE(description,''),
	COALESCE(old_value,''), COALESCE(new_value,''), change_date, reported_by,
	status, reviewed_by, reviewed_at, COALESCE(review_notes,''), created_at`

func scanChangeLog(row interface{ Scan(...any) error }) (*domain.ChangeLogEntry, error) {
	e := &domain.ChangeLogEntry{}
	var (
		surveyID   sql.NullString
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.HouseholdID, &surveyID, &e.ChangeType, &e.Description,
		&e.OldValue, &e.NewValue, &e.ChangeDate, &e.ReportedBy,
		&e.Status, &reviewedBy, &reviewedAt, &e.ReviewNotes, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if surveyID.Valid {
		id, err := uuid.Parse(surveyID.String)
		if err != nil {
			return nil, fmt.Errorf("scan change log survey id: %w", err)
		}
		e.SurveyID = &id
	}
	if reviewedBy.Valid {
		id, err := uuid.Parse(reviewedBy.String)
		if err != nil {
			return nil, fmt.Errorf("scan change log reviewer id: %w", err)
		}
		e.ReviewedBy = &id
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		e.ReviewedAt = &t
	}
	return e, nil
}

func (r *ChangeLogRepo) Get(ctx context.Context, id uuid.UUID) (*domain.ChangeLogEntry, error) {
	e, err := scanChangeLog(r.db.QueryRowContext(ctx,
		`SELECT `+changeLogColumns+` FROM household_change_logs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, changelog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get change log: %w", err)
	}
	return e, nil
}

func (r *ChangeLogRepo) List(ctx context.Context, f changelog.ListFilter) ([]domain.ChangeLogEntry, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := " WHERE 1=1"
	args := []any{}
	idx := 1
	add := func(clause string, val any) {
		where += fmt.Sprintf(" AND %s $%d", clause, idx)
		args = append(args, val)
		idx++
	}

	if f.Status != "" {
		add("status =", f.Status)
	}
	if f.HouseholdID != nil {
		add("household_id =", *f.HouseholdID)
	}
	if f.ChangeType != "" {
		add("change_type =", f.ChangeType)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM household_change_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count change logs: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM household_change_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		changeLogColumns, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list change logs: %w", err)
	}
	defer rows.Close()

	var out []domain.ChangeLogEntry
	for rows.Next() {
		e, err := scanChangeLog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan change log: %w", err)
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func (r *ChangeLogRepo) Create(ctx context.Context, e *domain.ChangeLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO household_change_logs
			(id, household_id, survey_id, change_type, description,
			 old_value, new_value, change_date, reported_by, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
	`, e.ID, e.HouseholdID, e.SurveyID, e.ChangeType, e.Description,
		e.OldValue, e.NewValue, e.ChangeDate, e.ReportedBy, e.Status)
	if err != nil {
		return fmt.Errorf("create change log: %w", err)
	}
	return nil
}

// Review is the one-shot terminal transition: the pending_review guard means
// the second reviewer's update matches zero rows and alters nothing.
func (r *ChangeLogRepo) Review(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, reviewer uuid.UUID, at time.Time, notes string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE household_change_logs
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
		WHERE id = $1 AND status = 'pending_review'
	`, id, status, reviewer, at, notes)
	if err != nil {
		return false, fmt.Errorf("review change log: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
