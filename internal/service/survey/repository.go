package survey

import (
	"context"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the data access contract for survey instances.
//
// The conditional operations (MarkSent, MarkOpened, Complete*) are
// single-writer updates guarded on the instance still being in a
// transitionable state; they return false instead of mutating anything when
// the guard fails. Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts a new instance. Returns ErrTokenExists when the access
	// token collides with an existing one.
	Create(ctx context.Context, si *domain.SurveyInstance) error

	// Get returns an instance by id. Returns ErrNotFound if missing.
	Get(ctx context.Context, id uuid.UUID) (*domain.SurveyInstance, error)

	// GetByToken returns an instance by access token. Returns ErrNotFound
	// for unknown tokens.
	GetByToken(ctx context.Context, token string) (*domain.SurveyInstance, error)

	// List returns instances matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.SurveyInstance, int, error)

	// MarkSent transitions pending→sent and sets sent_at.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// MarkOpened transitions sent→opened and sets opened_at.
	MarkOpened(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// MarkExpired transitions any non-terminal status to expired.
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)

	// CompleteWithChanges atomically transitions sent/opened→completed (only
	// while expires_at is still in the future of at), records the responses
	// and reported changes, and inserts the change-log entries in one
	// transaction. Returns false, with nothing persisted, when the instance
	// is not in a submittable state.
	CompleteWithChanges(ctx context.Context, id uuid.UUID, at time.Time, responses map[string]string, reports []domain.ChangeReport, entries []domain.ChangeLogEntry) (bool, error)

	// ExpireOverdue transitions every non-terminal instance whose expires_at
	// has passed. Returns the number of instances expired.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	// ListPendingDispatch returns instances stuck in pending (issued but
	// never notified), oldest first, for dispatch recovery.
	ListPendingDispatch(ctx context.Context, limit int) ([]domain.SurveyInstance, error)
}

// ListFilter controls filtering and pagination for survey instance lists.
type ListFilter struct {
	Status     domain.SurveyStatus
	ScheduleID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
