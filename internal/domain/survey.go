package domain

import (
	"time"

	"github.com/google/uuid"
)

// SurveyStatus enumerates the lifecycle states of a survey instance.
type SurveyStatus string

const (
	SurveyPending   SurveyStatus = "pending"
	SurveySent      SurveyStatus = "sent"
	SurveyOpened    SurveyStatus = "opened"
	SurveyCompleted SurveyStatus = "completed"
	SurveyExpired   SurveyStatus = "expired"
)

// Terminal returns true if the status admits no further transitions.
func (s SurveyStatus) Terminal() bool {
	return s == SurveyCompleted || s == SurveyExpired
}

// surveyTransitions is the explicit transition table. Status only moves
// forward; any non-terminal status may additionally move to expired once
// the clock passes ExpiresAt.
var surveyTransitions = map[SurveyStatus][]SurveyStatus{
	SurveyPending: {SurveySent, SurveyExpired},
	SurveySent:    {SurveyOpened, SurveyCompleted, SurveyExpired},
	SurveyOpened:  {SurveyCompleted, SurveyExpired},
}

// CanTransition reports whether moving from s to next is legal.
func (s SurveyStatus) CanTransition(next SurveyStatus) bool {
	for _, allowed := range surveyTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Question is one prompt in a survey's frozen question set.
type Question struct {
	Key      string `json:"key"`
	Prompt   string `json:"prompt"`
	Required bool   `json:"required"`
}

// ChangeReport is a resident-reported household fact change attached to a
// survey submission. Each report becomes one pending-review change-log entry.
type ChangeReport struct {
	Type        ChangeType `json:"type"`
	Description string     `json:"description"`
	OldValue    string     `json:"old_value,omitempty"`
	NewValue    string     `json:"new_value,omitempty"`
}

// SurveyInstance is one token-addressable questionnaire sent to one
// household. The question set is frozen at issue time; Responses is written
// exactly once, on the transition into completed. AccessToken is globally
// unique and immutable.
type SurveyInstance struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	HouseholdID        uuid.UUID          `json:"household_id" db:"household_id"`
	ScheduleID         *uuid.UUID         `json:"schedule_id" db:"schedule_id"`
	SurveyType         SurveyType         `json:"survey_type" db:"survey_type"`
	AccessToken        string             `json:"access_token" db:"access_token"`
	NotificationMethod NotificationMethod `json:"notification_method" db:"notification_method"`
	QuestionSet        []Question         `json:"question_set" db:"question_set"`
	Responses          map[string]string  `json:"responses,omitempty" db:"responses"`
	AdditionalInfo     []ChangeReport     `json:"additional_info,omitempty" db:"additional_info"`
	CustomMessage      string             `json:"custom_message" db:"custom_message"`
	Status             SurveyStatus       `json:"status" db:"status"`
	SentAt             *time.Time         `json:"sent_at" db:"sent_at"`
	OpenedAt           *time.Time         `json:"opened_at" db:"opened_at"`
	CompletedAt        *time.Time         `json:"completed_at" db:"completed_at"`
	ExpiresAt          time.Time          `json:"expires_at" db:"expires_at"`
	IssuedBy           *uuid.UUID         `json:"issued_by" db:"issued_by"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// ExpiredBy reports whether the instance should be coerced to expired as of
// now: past its deadline and still in a state the table lets expire.
func (si *SurveyInstance) ExpiredBy(now time.Time) bool {
	return si.Status.CanTransition(SurveyExpired) && now.After(si.ExpiresAt)
}
