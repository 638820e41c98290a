package gantt

import (
	"math"

	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// Schedule is the effective date range of a task on the timeline.
type Schedule struct {
	Start   date.Date `json:"start"`
	Due     date.Date `json:"due"`
	Derived bool      `json:"derived"`
}

// Days returns the inclusive length of the schedule in days.
func (s Schedule) Days() int {
	return s.Start.DaysUntil(s.Due) + 1
}

// Overlaps reports whether two schedules share at least one day.
func (s Schedule) Overlaps(other Schedule) bool {
	return !s.Due.Before(other.Start) && !other.Due.Before(s.Start)
}

// ScheduleOf returns the task's effective schedule. Explicit dates win;
// otherwise estimated hours are converted into whole days (minimum one)
// and anchored on whichever date exists, or on anchor. Tasks with neither
// dates nor an estimate are unscheduled.
func ScheduleOf(t models.Task, anchor date.Date, hoursPerDay float64) (Schedule, bool) {
	switch {
	case t.StartDate != nil && t.DueDate != nil:
		return Schedule{Start: *t.StartDate, Due: *t.DueDate}, true
	case t.EstimatedHours == nil:
		if t.StartDate != nil {
			return Schedule{Start: *t.StartDate, Due: *t.StartDate, Derived: true}, true
		}
		if t.DueDate != nil {
			return Schedule{Start: *t.DueDate, Due: *t.DueDate, Derived: true}, true
		}
		return Schedule{}, false
	}

	days := estimatedDays(*t.EstimatedHours, hoursPerDay)
	switch {
	case t.StartDate != nil:
		return Schedule{Start: *t.StartDate, Due: t.StartDate.AddDays(days - 1), Derived: true}, true
	case t.DueDate != nil:
		return Schedule{Start: t.DueDate.AddDays(-(days - 1)), Due: *t.DueDate, Derived: true}, true
	default:
		return Schedule{Start: anchor, Due: anchor.AddDays(days - 1), Derived: true}, true
	}
}

func estimatedDays(hours, hoursPerDay float64) int {
	if hoursPerDay <= 0 {
		hoursPerDay = 8
	}
	days := int(math.Ceil(hours / hoursPerDay))
	if days < 1 {
		return 1
	}
	return days
}

// DefaultRange spans every scheduled task padded by padding days on each
// side. With nothing scheduled the range is centred on today.
func DefaultRange(schedules []Schedule, padding int, today date.Date) Range {
	if len(schedules) == 0 {
		return Range{Start: today.AddDays(-padding), End: today.AddDays(padding)}
	}
	start, end := schedules[0].Start, schedules[0].Due
	for _, s := range schedules[1:] {
		start = date.Min(start, s.Start)
		end = date.Max(end, s.Due)
	}
	return Range{Start: start.AddDays(-padding), End: end.AddDays(padding)}
}
