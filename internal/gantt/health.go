package gantt

import (
	"fmt"

	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// HealthReport summarizes schedule health for a project. When Available
// is false the figures could not be computed and Reason says why.
type HealthReport struct {
	Available       bool           `json:"available"`
	Reason          string         `json:"reason,omitempty"`
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	Overdue         int            `json:"overdue"`
	Unscheduled     int            `json:"unscheduled"`
	AverageProgress float64        `json:"average_progress"`
	Start           *date.Date     `json:"start,omitempty"`
	End             *date.Date     `json:"end,omitempty"`
	SpanDays        int            `json:"span_days"`
	CriticalPath    []int64        `json:"critical_path,omitempty"`
}

// Health computes the report. A task is overdue when its due date is
// before today and it is not completed.
func Health(tasks []models.Task, today date.Date, hoursPerDay float64) (HealthReport, error) {
	r := HealthReport{Available: true, Total: len(tasks), ByStatus: map[string]int{}}
	var scheduled []ScheduledTask
	progress := 0
	for _, t := range tasks {
		r.ByStatus[t.Status]++
		progress += t.Progress
		if t.DueDate != nil && t.DueDate.Before(today) && t.Status != models.StatusCompleted {
			r.Overdue++
		}
		s, ok := ScheduleOf(t, today, hoursPerDay)
		if !ok {
			r.Unscheduled++
			continue
		}
		scheduled = append(scheduled, ScheduledTask{Task: t, Schedule: s})
		if r.Start == nil || s.Start.Before(*r.Start) {
			r.Start = date.Ptr(s.Start)
		}
		if r.End == nil || s.Due.After(*r.End) {
			r.End = date.Ptr(s.Due)
		}
	}
	if len(tasks) > 0 {
		r.AverageProgress = float64(progress) / float64(len(tasks))
	}
	if r.Start != nil {
		r.SpanDays = r.Start.DaysUntil(*r.End) + 1
	}

	path, err := CriticalPath(scheduled)
	if err != nil {
		return HealthReport{}, err
	}
	for _, seg := range path {
		r.CriticalPath = append(r.CriticalPath, seg.TaskID)
	}
	return r, nil
}

// SafeHealth is Health for presentation: errors and panics become an
// unavailable report instead of propagating.
func SafeHealth(compute func() (HealthReport, error)) (report HealthReport) {
	defer func() {
		if rec := recover(); rec != nil {
			report = HealthReport{Available: false, Reason: fmt.Sprintf("health data unavailable: %v", rec)}
		}
	}()
	r, err := compute()
	if err != nil {
		return HealthReport{Available: false, Reason: fmt.Sprintf("health data unavailable: %v", err)}
	}
	return r
}
