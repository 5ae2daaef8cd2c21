package schedule

import (
	"time"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
)

// maxDayOfMonth is the clamp ceiling for monthly schedules. Days 29-31 are
// clamped rather than handled with calendar-aware month-end math, so every
// month has a valid fire date.
const maxDayOfMonth = 28

// recurrence is the tagged-variant view of a schedule's frequency. Modeling
// it this way keeps the "which nullable field applies" question out of the
// evaluator entirely.
type recurrence interface {
	// next returns the first occurrence strictly after the given instant.
	next(at domain.TimeOfDay, after time.Time) time.Time
}

type daily struct{}

type weekly struct{ day time.Weekday }

type monthly struct{ day int }

// interval covers the anchor-based frequencies (quarterly, annually).
type interval struct {
	anchor time.Time
	months int
	years  int
}

func (daily) next(at domain.TimeOfDay, after time.Time) time.Time {
	cand := at.On(after)
	if !cand.After(after) {
		cand = cand.AddDate(0, 0, 1)
	}
	return cand
}

func (w weekly) next(at domain.TimeOfDay, after time.Time) time.Time {
	ahead := (int(w.day) - int(after.Weekday()) + 7) % 7
	cand := at.On(after.AddDate(0, 0, ahead))
	if !cand.After(after) {
		cand = cand.AddDate(0, 0, 7)
	}
	return cand
}

func (m monthly) next(at domain.TimeOfDay, after time.Time) time.Time {
	day := m.day
	if day > maxDayOfMonth {
		day = maxDayOfMonth
	}
	cand := time.Date(after.Year(), after.Month(), day, at.Hour, at.Minute, 0, 0, after.Location())
	if !cand.After(after) {
		cand = time.Date(after.Year(), after.Month()+1, day, at.Hour, at.Minute, 0, 0, after.Location())
	}
	return cand
}

func (iv interval) next(at domain.TimeOfDay, after time.Time) time.Time {
	cand := at.On(iv.anchor)
	for !cand.After(after) {
		cand = cand.AddDate(iv.years, iv.months, 0)
	}
	return cand
}

// recurrenceOf maps a schedule row onto its tagged variant.
func recurrenceOf(s *domain.SurveySchedule) recurrence {
	switch s.Frequency {
	case domain.FreqWeekly:
		day := 0
		if s.DayOfWeek != nil {
			day = *s.DayOfWeek
		}
		return weekly{day: time.Weekday(day)}
	case domain.FreqMonthly:
		day := 1
		if s.DayOfMonth != nil {
			day = *s.DayOfMonth
		}
		return monthly{day: day}
	case domain.FreqQuarterly:
		return interval{anchor: s.Anchor(), months: 3}
	case domain.FreqAnnually:
		return interval{anchor: s.Anchor(), years: 1}
	default:
		return daily{}
	}
}

// NextRun computes the schedule's next fire time strictly after from.
// Returns nil for inactive schedules. The result is never before the
// schedule's start date combined with its scheduled time.
//
// The function is pure and idempotent: the driver may recompute after a
// crashed tick without double-advancing the schedule.
func NextRun(s *domain.SurveySchedule, from time.Time) *time.Time {
	if !s.IsActive {
		return nil
	}

	// Fire times before the first eligible date are not valid; shifting the
	// effective "after" instant to just before the floor lets the floor
	// itself be returned while keeping the strictly-after contract.
	floor := s.ScheduledTime.On(s.StartDate)
	after := from
	if pre := floor.Add(-time.Second); after.Before(pre) {
		after = pre
	}

	next := recurrenceOf(s).next(s.ScheduledTime, after)
	return &next
}
