package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SurveyType selects the question catalog issued to a household.
type SurveyType string

const (
	SurveyComprehensive SurveyType = "comprehensive"
	SurveyRelocation    SurveyType = "relocation"
	SurveyDeceased      SurveyType = "deceased"
	SurveyContact       SurveyType = "contact"
	SurveyQuick         SurveyType = "quick"
)

// Valid reports whether t is a known survey type.
func (t SurveyType) Valid() bool {
	switch t {
	case SurveyComprehensive, SurveyRelocation, SurveyDeceased, SurveyContact, SurveyQuick:
		return true
	}
	return false
}

// NotificationMethod is the channel used to deliver a survey access link.
type NotificationMethod string

const (
	NotifyEmail NotificationMethod = "email"
	NotifySMS   NotificationMethod = "sms"
	NotifyBoth  NotificationMethod = "both"
)

// Valid reports whether m is a known notification method.
func (m NotificationMethod) Valid() bool {
	return m == NotifyEmail || m == NotifySMS || m == NotifyBoth
}

// Frequency enumerates the recurrence rules a schedule can carry.
type Frequency string

const (
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqAnnually  Frequency = "annually"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqQuarterly, FreqAnnually:
		return true
	}
	return false
}

// TargetPolicy controls which households a schedule fires at.
type TargetPolicy string

const (
	TargetAll      TargetPolicy = "all"
	TargetSpecific TargetPolicy = "specific"
)

// TimeOfDay is a wall-clock time without a date, persisted as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return t, fmt.Errorf("invalid time of day %q", s)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return t, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// String renders the time as "HH:MM".
func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On combines the time of day with the date portion of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, d.Location())
}

// MarshalJSON renders the time as a "HH:MM" string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts a "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("time of day must be a string")
	}
	parsed, err := ParseTimeOfDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SurveySchedule is a recurrence rule plus targeting and notification policy
// that periodically produces survey batches.
//
// DayOfWeek is set iff Frequency is weekly; DayOfMonth (1-28) iff monthly.
// NextRunAt is nil when the schedule is inactive; otherwise it is never
// before StartDate combined with ScheduledTime.
type SurveySchedule struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	SurveyType         SurveyType         `json:"survey_type" db:"survey_type"`
	NotificationMethod NotificationMethod `json:"notification_method" db:"notification_method"`
	Frequency          Frequency          `json:"frequency" db:"frequency"`
	Target             TargetPolicy       `json:"target_households" db:"target_households"`
	HouseholdIDs       []uuid.UUID        `json:"specific_household_ids,omitempty" db:"specific_household_ids"`
	CustomMessage      string             `json:"custom_message" db:"custom_message"`
	IsActive           bool               `json:"is_active" db:"is_active"`
	StartDate          time.Time          `json:"start_date" db:"start_date"`
	ScheduledTime      TimeOfDay          `json:"scheduled_time" db:"scheduled_time"`
	DayOfWeek          *int               `json:"day_of_week,omitempty" db:"day_of_week"`
	DayOfMonth         *int               `json:"day_of_month,omitempty" db:"day_of_month"`
	LastRunAt          *time.Time         `json:"last_run_at" db:"last_run_at"`
	NextRunAt          *time.Time         `json:"next_run_at" db:"next_run_at"`
	TotalRuns          int                `json:"total_runs" db:"total_runs"`
	SurveysSent        int                `json:"surveys_sent" db:"surveys_sent"`
	CreatedBy          uuid.UUID          `json:"created_by" db:"created_by"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// Anchor returns the reference date for quarterly/annual interval math:
// the last fire time when one exists, otherwise the first eligible fire
// (start date at the scheduled time).
func (s *SurveySchedule) Anchor() time.Time {
	if s.LastRunAt != nil {
		return *s.LastRunAt
	}
	return s.ScheduledTime.On(s.StartDate)
}
