package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// HouseholdDirectory implements schedule.Directory over the households table
// owned by the resident records module. Strictly read-only from this
// subsystem.
type HouseholdDirectory struct{ db *sql.DB }

// NewHouseholdDirectory creates a Postgres-backed household directory.
func NewHouseholdDirectory(db *sql.DB) *HouseholdDirectory { return &HouseholdDirectory{db: db} }

const householdColumns = `
	id, household_no, head_name, COALESCE(email,''), COALESCE(phone,''),
	COALESCE(address,''), active`

func (d *HouseholdDirectory) ListActive(ctx context.Context) ([]domain.Household, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+householdColumns+`
		FROM households
		WHERE active = true
		ORDER BY household_no
	`)
	if err != nil {
		return nil, fmt.Errorf("list active households: %w", err)
	}
	defer rows.Close()
	return collectHouseholds(rows)
}

func (d *HouseholdDirectory) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Household, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+householdColumns+`
		FROM households
		WHERE id = ANY($1)
		ORDER BY household_no
	`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("get households by ids: %w", err)
	}
	defer rows.Close()
	return collectHouseholds(rows)
}

func collectHouseholds(rows *sql.Rows) ([]domain.Household, error) {
	var out []domain.Household
	for rows.Next() {
		var h domain.Household
		if err := rows.Scan(&h.ID, &h.HouseholdNo, &h.HeadName, &h.Email, &h.Phone, &h.Address, &h.Active); err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
