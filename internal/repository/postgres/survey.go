package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SurveyRepo implements survey.Repository against PostgreSQL.
type SurveyRepo struct{ db *sql.DB }

// NewSurveyRepo creates a Postgres-backed survey instance repository.
func NewSurveyRepo(db *sql.DB) *SurveyRepo { return &SurveyRepo{db: db} }

const surveyColumns = `
	id, household_id, schedule_id, survey_type, access_token,
	notification_method, question_set, responses, additional_info,
	COALESCE(custom_message,''), status, sent_at, opened_at, completed_at,
	expires_at, issued_by, created_at, updated_at`

func scanSurvey(row interface{ Scan(...any) error }) (*domain.SurveyInstance, error) {
	si := &domain.SurveyInstance{}
	var (
		scheduleID  sql.NullString
		issuedBy    sql.NullString
		questionSet []byte
		responses   []byte
		additional  []byte
		sentAt      sql.NullTime
		openedAt    sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&si.ID, &si.HouseholdID, &scheduleID, &si.SurveyType, &si.AccessToken,
		&si.NotificationMethod, &questionSet, &responses, &additional,
		&si.CustomMessage, &si.Status, &sentAt, &openedAt, &completedAt,
		&si.ExpiresAt, &issuedBy, &si.CreatedAt, &si.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if scheduleID.Valid {
		id, err := uuid.Parse(scheduleID.String)
		if err != nil {
			return nil, fmt.Errorf("scan survey schedule id: %w", err)
		}
		si.ScheduleID = &id
	}
	if issuedBy.Valid {
		id, err := uuid.Parse(issuedBy.String)
		if err != nil {
			return nil, fmt.Errorf("scan survey issuer id: %w", err)
		}
		si.IssuedBy = &id
	}
	if len(questionSet) > 0 {
		if err := json.Unmarshal(questionSet, &si.QuestionSet); err != nil {
			return nil, fmt.Errorf("scan survey question set: %w", err)
		}
	}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &si.Responses); err != nil {
			return nil, fmt.Errorf("scan survey responses: %w", err)
		}
	}
	if len(additional) > 0 {
		if err := json.Unmarshal(additional, &si.AdditionalInfo); err != nil {
			return nil, fmt.Errorf("scan survey additional info: %w", err)
		}
	}
	if sentAt.Valid {
		t := sentAt.Time
		si.SentAt = &t
	}
	if openedAt.Valid {
		t := openedAt.Time
		si.OpenedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		si.CompletedAt = &t
	}
	return si, nil
}

func (r *SurveyRepo) Create(ctx context.Context, si *domain.SurveyInstance) error {
	questionSet, err := json.Marshal(si.QuestionSet)
	if err != nil {
		return fmt.Errorf("marshal question set: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO survey_instances
			(id, household_id, schedule_id, survey_type, access_token,
			 notification_method, question_set, custom_message, status,
			 expires_at, issued_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())
	`, si.ID, si.HouseholdID, si.ScheduleID, si.SurveyType, si.AccessToken,
		si.NotificationMethod, questionSet, si.CustomMessage, si.Status,
		si.ExpiresAt, si.IssuedBy)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return survey.ErrTokenExists
		}
		return fmt.Errorf("create survey instance: %w", err)
	}
	return nil
}

func (r *SurveyRepo) Get(ctx context.Context, id uuid.UUID) (*domain.SurveyInstance, error) {
	si, err := scanSurvey(r.db.QueryRowContext(ctx,
		`SELECT `+surveyColumns+` FROM survey_instances WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, survey.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get survey instance: %w", err)
	}
	return si, nil
}

func (r *SurveyRepo) GetByToken(ctx context.Context, token string) (*domain.SurveyInstance, error) {
	si, err := scanSurvey(r.db.QueryRowContext(ctx,
		`SELECT `+surveyColumns+` FROM survey_instances WHERE access_token = $1`, token))
	if err == sql.ErrNoRows {
		return nil, survey.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get survey by token: %w", err)
	}
	return si, nil
}

func (r *SurveyRepo) List(ctx context.Context, f survey.ListFilter) ([]domain.SurveyInstance, int, error) {
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
	if f.ScheduleID != nil {
		add("schedule_id =", *f.ScheduleID)
	}
	if f.From != nil {
		add("created_at >=", *f.From)
	}
	if f.To != nil {
		add("created_at <", *f.To)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM survey_instances`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count survey instances: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM survey_instances%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		surveyColumns, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list survey instances: %w", err)
	}
	defer rows.Close()

	var out []domain.SurveyInstance
	for rows.Next() {
		si, err := scanSurvey(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan survey instance: %w", err)
		}
		out = append(out, *si)
	}
	return out, total, rows.Err()
}

func (r *SurveyRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.guardedUpdate(ctx, `
		UPDATE survey_instances
		SET status = 'sent', sent_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, at)
}

func (r *SurveyRepo) MarkOpened(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.guardedUpdate(ctx, `
		UPDATE survey_instances
		SET status = 'opened', opened_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'sent'
	`, id, at)
}

func (r *SurveyRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.guardedUpdate(ctx, `
		UPDATE survey_instances
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending','sent','opened')
	`, id)
}

func (r *SurveyRepo) guardedUpdate(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("survey status update: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// CompleteWithChanges is the single atomic unit for submission: the
// completed transition and every change-log insert commit together or not
// at all. The status guard doubles as the single-writer lock against
// duplicate concurrent submits.
func (r *SurveyRepo) CompleteWithChanges(ctx context.Context, id uuid.UUID, at time.Time, responses map[string]string, reports []domain.ChangeReport, entries []domain.ChangeLogEntry) (bool, error) {
	responsesJSON, err := json.Marshal(responses)
	if err != nil {
		return false, fmt.Errorf("marshal responses: %w", err)
	}
	var additionalJSON []byte
	if len(reports) > 0 {
		if additionalJSON, err = json.Marshal(reports); err != nil {
			return false, fmt.Errorf("marshal additional info: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin submission tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE survey_instances
		SET status = 'completed', completed_at = $2, responses = $3,
		    additional_info = $4, updated_at = NOW()
		WHERE id = $1 AND status IN ('sent','opened') AND expires_at > $2
	`, id, at, responsesJSON, additionalJSON)
	if err != nil {
		return false, fmt.Errorf("complete survey: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return false, nil
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO household_change_logs
				(id, household_id, survey_id, change_type, description,
				 old_value, new_value, change_date, reported_by, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
		`, e.ID, e.HouseholdID, e.SurveyID, e.ChangeType, e.Description,
			e.OldValue, e.NewValue, e.ChangeDate, e.ReportedBy, e.Status); err != nil {
			return false, fmt.Errorf("insert change log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit submission: %w", err)
	}
	return true, nil
}

func (r *SurveyRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey_instances
		SET status = 'expired', updated_at = NOW()
		WHERE status IN ('pending','sent','opened') AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire overdue surveys: %w", err)
	}
	return res.RowsAffected()
}

func (r *SurveyRepo) ListPendingDispatch(ctx context.Context, limit int) ([]domain.SurveyInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+surveyColumns+`
		FROM survey_instances
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending dispatch: %w", err)
	}
	defer rows.Close()

	var out []domain.SurveyInstance
	for rows.Next() {
		si, err := scanSurvey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending survey: %w", err)
		}
		out = append(out, *si)
	}
	return out, rows.Err()
}
