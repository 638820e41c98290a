// Package gantt implements the timeline engine behind the Gantt view:
// date/position mapping, marker collision layout, drag rescheduling,
// undo/redo history and row virtualization. It has no HTTP or storage
// dependency; collaborators are injected through small interfaces.
package gantt

import (
	"fmt"
	"math"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
)

// ViewMode is the zoom granularity of the timeline.
type ViewMode string

const (
	ViewDays   ViewMode = "days"
	ViewWeeks  ViewMode = "weeks"
	ViewMonths ViewMode = "months"
)

// epsilon absorbs float error when converting positions back to whole units.
const epsilon = 1e-9

// ParseViewMode validates a view mode name.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewDays, ViewWeeks, ViewMonths:
		return ViewMode(s), nil
	case "":
		return ViewDays, nil
	}
	return "", apperr.Newf(apperr.InvalidViewMode, "invalid view mode %q", s).
		WithDetails(map[string]any{"allowed": []string{"days", "weeks", "months"}})
}

// Range is the inclusive calendar window rendered on the timeline.
type Range struct {
	Start date.Date `json:"start"`
	End   date.Date `json:"end"`
}

// NewRange builds a range, rejecting an end before the start.
func NewRange(start, end date.Date) (Range, error) {
	if end.Before(start) {
		return Range{}, apperr.Newf(apperr.InvalidDateOrder, "timeline end %s is before start %s", end, start)
	}
	return Range{Start: start, End: end}, nil
}

// Days returns the number of calendar days in the range, both ends included.
func (r Range) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

// Units returns the number of equal-width columns for mode.
func (r Range) Units(mode ViewMode) float64 {
	switch mode {
	case ViewWeeks:
		return math.Ceil(float64(r.Days()) / 7)
	case ViewMonths:
		return float64(r.Start.MonthsUntil(r.End) + 1)
	default:
		return float64(r.Days())
	}
}

// Boundary returns the exclusive end of the last column, the date that
// maps to a left position of exactly 100.
func (r Range) Boundary(mode ViewMode) date.Date {
	units := int(r.Units(mode))
	switch mode {
	case ViewWeeks:
		return r.Start.AddDays(7 * units)
	case ViewMonths:
		return r.Start.FirstOfMonth().AddMonths(units)
	default:
		return r.End.AddDays(1)
	}
}

// Contains reports whether d lies inside the range.
func (r Range) Contains(d date.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}

// Position is a horizontal timeline coordinate in percent.
type Position struct {
	Left    float64 `json:"left"`
	Visible bool    `json:"visible"`
}

// PositionOf maps a date to its left offset in percent of the timeline.
// In months mode every month is one equal-width column and dates snap to
// the start of their month. Only dates inside the range are visible, so the
// boundary maps to 100 but is not itself on the timeline.
func PositionOf(d date.Date, r Range, mode ViewMode) Position {
	left := unitsFromStart(d, r, mode, false) / r.Units(mode) * 100
	return Position{Left: left, Visible: r.Contains(d)}
}

// DateOf is the inverse of PositionOf. Positions outside [0,100] map to
// dates outside the range; callers validate.
func DateOf(left float64, r Range, mode ViewMode) date.Date {
	units := left / 100 * r.Units(mode)
	switch mode {
	case ViewWeeks:
		return r.Start.AddDays(int(math.Floor(units*7 + epsilon)))
	case ViewMonths:
		idx := math.Floor(units + epsilon)
		month := r.Start.FirstOfMonth().AddMonths(int(idx))
		day := int(math.Floor((units-idx)*float64(month.DaysInMonth()) + epsilon))
		if day >= month.DaysInMonth() {
			day = month.DaysInMonth() - 1
		}
		if day < 0 {
			day = 0
		}
		return month.AddDays(day)
	default:
		return r.Start.AddDays(int(math.Floor(units + epsilon)))
	}
}

// Bar is the horizontal geometry of a task bar.
type Bar struct {
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
	Visible bool    `json:"visible"`
}

// Span returns the bar for a task scheduled start..due inclusive. Unlike
// PositionOf, months mode keeps the day within the month so short tasks
// still get a visible width.
func Span(start, due date.Date, r Range, mode ViewMode) Bar {
	units := r.Units(mode)
	left := unitsFromStart(start, r, mode, true) / units * 100
	right := unitsFromStart(due.AddDays(1), r, mode, true) / units * 100
	return Bar{
		Left:    left,
		Width:   right - left,
		Visible: right > 0 && left < 100,
	}
}

func unitsFromStart(d date.Date, r Range, mode ViewMode, fractional bool) float64 {
	switch mode {
	case ViewWeeks:
		return float64(r.Start.DaysUntil(d)) / 7
	case ViewMonths:
		steps := float64(r.Start.MonthsUntil(d))
		if fractional {
			steps += float64(d.Day()-1) / float64(d.DaysInMonth())
		}
		return steps
	default:
		return float64(r.Start.DaysUntil(d))
	}
}
