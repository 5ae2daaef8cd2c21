package survey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/google/uuid"
)

// maxTokenAttempts bounds the retry loop on the astronomically unlikely
// token unique-constraint violation.
const maxTokenAttempts = 5

// Service implements survey issuance and the open/submit/expire lifecycle.
type Service struct {
	repo    Repository
	horizon time.Duration
}

// NewService creates a survey service. horizon is the time a household has
// to respond before an instance expires.
func NewService(repo Repository, horizon time.Duration) *Service {
	return &Service{repo: repo, horizon: horizon}
}

// IssueInput holds the fields for issuing one survey instance.
type IssueInput struct {
	HouseholdID        uuid.UUID
	ScheduleID         *uuid.UUID
	SurveyType         domain.SurveyType
	NotificationMethod domain.NotificationMethod
	CustomMessage      string
	IssuedBy           *uuid.UUID
}

// Issue creates one pending survey instance for a household: fresh token,
// question set frozen from the catalog, expiry set from the configured
// horizon. Dispatch is a separate step so an issued-but-unnotified instance
// is recoverable by re-running dispatch.
func (s *Service) Issue(ctx context.Context, input IssueInput, now time.Time) (*domain.SurveyInstance, error) {
	if !input.SurveyType.Valid() {
		return nil, fmt.Errorf("issue survey: unknown survey type %q", input.SurveyType)
	}

	si := &domain.SurveyInstance{
		ID:                 uuid.New(),
		HouseholdID:        input.HouseholdID,
		ScheduleID:         input.ScheduleID,
		SurveyType:         input.SurveyType,
		NotificationMethod: input.NotificationMethod,
		QuestionSet:        QuestionSet(input.SurveyType),
		CustomMessage:      input.CustomMessage,
		Status:             domain.SurveyPending,
		ExpiresAt:          now.Add(s.horizon),
		IssuedBy:           input.IssuedBy,
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := generateToken()
		if err != nil {
			return nil, err
		}
		si.AccessToken = token

		err = s.repo.Create(ctx, si)
		if err == nil {
			return si, nil
		}
		if err != ErrTokenExists {
			return nil, fmt.Errorf("issue survey: %w", err)
		}
	}
	return nil, fmt.Errorf("issue survey: token collision persisted after %d attempts", maxTokenAttempts)
}

// MarkSent records the dispatch of the instance's notification
// (pending→sent). A false guard result is not an error: a concurrent
// dispatcher already recorded the send.
func (s *Service) MarkSent(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := s.repo.MarkSent(ctx, id, now)
	return err
}

// Open retrieves an instance by token for the resident-facing endpoint,
// coercing overdue instances to expired first and recording the first open.
// Repeated opens are idempotent and re-fire no side effects.
func (s *Service) Open(ctx context.Context, token string, now time.Time) (*domain.SurveyInstance, error) {
	si, err := s.getCoerced(ctx, token, now)
	if err != nil {
		return nil, err
	}

	if si.Status.CanTransition(domain.SurveyOpened) {
		if ok, err := s.repo.MarkOpened(ctx, si.ID, now); err != nil {
			return nil, err
		} else if ok {
			si.Status = domain.SurveyOpened
			si.OpenedAt = &now
		}
	}
	return si, nil
}

// Submit validates and records a survey response. Answers must cover the
// frozen question set's required prompts. Each reported change becomes a
// pending-review change-log entry; the completed transition and the
// change-log inserts are one atomic unit.
func (s *Service) Submit(ctx context.Context, token string, answers map[string]string, reports []domain.ChangeReport, now time.Time) (*domain.SurveyInstance, error) {
	si, err := s.getCoerced(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if !si.Status.CanTransition(domain.SurveyCompleted) {
		return nil, ErrClosed
	}

	if missing := missingAnswers(si.QuestionSet, answers); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteResponse, strings.Join(missing, ", "))
	}
	for _, r := range reports {
		if !r.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown change type %q", ErrIncompleteResponse, r.Type)
		}
	}

	entries := make([]domain.ChangeLogEntry, 0, len(reports))
	for _, r := range reports {
		entries = append(entries, domain.ChangeLogEntry{
			ID:          uuid.New(),
			HouseholdID: si.HouseholdID,
			SurveyID:    &si.ID,
			ChangeType:  r.Type,
			Description: r.Description,
			OldValue:    r.OldValue,
			NewValue:    r.NewValue,
			ChangeDate:  now,
			ReportedBy:  domain.SourceSurvey,
			Status:      domain.ReviewPending,
		})
	}

	ok, err := s.repo.CompleteWithChanges(ctx, si.ID, now, answers, reports, entries)
	if err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	if !ok {
		// Lost the single-writer race (duplicate submit) or expired between
		// the read and the update.
		return nil, ErrClosed
	}

	si.Status = domain.SurveyCompleted
	si.CompletedAt = &now
	si.Responses = answers
	si.AdditionalInfo = reports
	return si, nil
}

// Get returns an instance by id, coercing overdue instances to expired.
func (s *Service) Get(ctx context.Context, id uuid.UUID, now time.Time) (*domain.SurveyInstance, error) {
	si, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.coerceExpiry(ctx, si, now)
}

// List returns instances matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.SurveyInstance, int, error) {
	return s.repo.List(ctx, f)
}

// ListPendingDispatch returns instances issued but never notified.
func (s *Service) ListPendingDispatch(ctx context.Context, limit int) ([]domain.SurveyInstance, error) {
	return s.repo.ListPendingDispatch(ctx, limit)
}

// ExpireOverdue sweeps every instance past its deadline into expired.
// Returns how many transitioned.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.ExpireOverdue(ctx, now)
}

// getCoerced loads by token and applies lazy expiry before any lifecycle
// decision is made.
func (s *Service) getCoerced(ctx context.Context, token string, now time.Time) (*domain.SurveyInstance, error) {
	si, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.coerceExpiry(ctx, si, now)
}

func (s *Service) coerceExpiry(ctx context.Context, si *domain.SurveyInstance, now time.Time) (*domain.SurveyInstance, error) {
	if si.ExpiredBy(now) {
		if _, err := s.repo.MarkExpired(ctx, si.ID); err != nil {
			return nil, err
		}
		si.Status = domain.SurveyExpired
	}
	return si, nil
}

// missingAnswers returns the keys of required prompts without a non-empty
// answer.
func missingAnswers(questions []domain.Question, answers map[string]string) []string {
	var missing []string
	for _, q := range questions {
		if !q.Required {
			continue
		}
		if strings.TrimSpace(answers[q.Key]) == "" {
			missing = append(missing, q.Key)
		}
	}
	return missing
}
