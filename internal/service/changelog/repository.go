package changelog

import (
	"context"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the data access contract for change-log entries.
// Entries are append-only apart from the one-shot review transition; they
// are never deleted (audit trail).
type Repository interface {
	// Get returns an entry by id. Returns ErrNotFound if missing.
	Get(ctx context.Context, id uuid.UUID) (*domain.ChangeLogEntry, error)

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.ChangeLogEntry, int, error)

	// Create inserts a new entry.
	Create(ctx context.Context, e *domain.ChangeLogEntry) error

	// Review conditionally transitions pending_review→status, setting
	// reviewer, timestamp, and notes. Returns false, with nothing changed,
	// when the entry was already reviewed.
	Review(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, reviewer uuid.UUID, at time.Time, notes string) (bool, error)
}

// ListFilter controls filtering and pagination for change-log lists.
type ListFilter struct {
	Status      domain.ReviewStatus
	HouseholdID *uuid.UUID
	ChangeType  domain.ChangeType
	Limit       int
	Offset      int
}
