// Package changelog implements the administrator-facing review workflow over
// reported household changes. Approved entries are handed to the records
// module (out of scope here) via their old/new value pair.
package changelog

import (
	"context"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/google/uuid"
)

// Service implements change-log review and administrative reporting.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a changelog service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the service's clock. Tests use this to pin "now".
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ChangeLogEntry, error) {
	return s.repo.Get(ctx, id)
}

// List returns entries matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.ChangeLogEntry, int, error) {
	return s.repo.List(ctx, f)
}

// ReportInput holds the fields for an administrator-created change report.
type ReportInput struct {
	HouseholdID uuid.UUID         `json:"household_id"`
	ChangeType  domain.ChangeType `json:"change_type"`
	Description string            `json:"description"`
	OldValue    string            `json:"old_value"`
	NewValue    string            `json:"new_value"`
}

// Report creates a pending-review entry reported directly by an
// administrator (as opposed to entries the response ingestor creates from
// survey submissions).
func (s *Service) Report(ctx context.Context, input ReportInput) (*domain.ChangeLogEntry, error) {
	if !input.ChangeType.Valid() {
		return nil, ErrInvalidType
	}
	e := &domain.ChangeLogEntry{
		ID:          uuid.New(),
		HouseholdID: input.HouseholdID,
		ChangeType:  input.ChangeType,
		Description: input.Description,
		OldValue:    input.OldValue,
		NewValue:    input.NewValue,
		ChangeDate:  s.now(),
		ReportedBy:  domain.SourceAdmin,
		Status:      domain.ReviewPending,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Review applies an approve/reject decision to a pending entry. The second
// review of the same entry returns ErrAlreadyReviewed and alters nothing.
func (s *Service) Review(ctx context.Context, id uuid.UUID, decision domain.ReviewStatus, reviewer uuid.UUID, notes string) (*domain.ChangeLogEntry, error) {
	if decision != domain.ReviewApproved && decision != domain.ReviewRejected {
		return nil, ErrInvalidDecision
	}

	at := s.now()
	ok, err := s.repo.Review(ctx, id, decision, reviewer, at, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Distinguish "missing" from "already decided" for the caller.
		if _, err := s.repo.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyReviewed
	}
	return s.repo.Get(ctx, id)
}
