package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies a reported household fact change.
type ChangeType string

const (
	ChangeRelocation    ChangeType = "relocation"
	ChangeDeceased      ChangeType = "deceased"
	ChangeNewMember     ChangeType = "new_member"
	ChangeAddress       ChangeType = "address_change"
	ChangeContactUpdate ChangeType = "contact_update"
)

// Valid reports whether t is a known change type.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeRelocation, ChangeDeceased, ChangeNewMember, ChangeAddress, ChangeContactUpdate:
		return true
	}
	return false
}

// ChangeSource identifies who reported a change.
type ChangeSource string

const (
	SourceSurvey ChangeSource = "survey"
	SourceAdmin  ChangeSource = "admin"
	SourceSystem ChangeSource = "system"
)

// ReviewStatus is the moderation state of a change-log entry. Both approved
// and rejected are terminal.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending_review"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ChangeLogEntry is a reported household fact change awaiting administrative
// approval. Entries are never deleted; they form the audit trail the records
// module applies approved changes from.
type ChangeLogEntry struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	HouseholdID uuid.UUID    `json:"household_id" db:"household_id"`
	SurveyID    *uuid.UUID   `json:"survey_id" db:"survey_id"`
	ChangeType  ChangeType   `json:"change_type" db:"change_type"`
	Description string       `json:"description" db:"description"`
	OldValue    string       `json:"old_value" db:"old_value"`
	NewValue    string       `json:"new_value" db:"new_value"`
	ChangeDate  time.Time    `json:"change_date" db:"change_date"`
	ReportedBy  ChangeSource `json:"reported_by" db:"reported_by"`
	Status      ReviewStatus `json:"status" db:"status"`
	ReviewedBy  *uuid.UUID   `json:"reviewed_by" db:"reviewed_by"`
	ReviewedAt  *time.Time   `json:"reviewed_at" db:"reviewed_at"`
	ReviewNotes string       `json:"review_notes" db:"review_notes"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}
