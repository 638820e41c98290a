package gantt

import (
	"fmt"
	"sort"

	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// MarkerType identifies what a timeline annotation represents.
type MarkerType string

const (
	MarkerMilestone        MarkerType = "milestone"
	MarkerWeather          MarkerType = "weather"
	MarkerResourceConflict MarkerType = "resource_conflict"
	MarkerCriticalPath     MarkerType = "critical_path"
	MarkerCompound         MarkerType = "compound"
	MarkerCluster          MarkerType = "cluster"
)

// Point is a marker position: X in percent of the timeline, Y in pixels
// below the marker lane origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tooltip is the hover payload of a marker.
type Tooltip struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// Marker is a positioned annotation on the timeline. Compound and cluster
// glyphs carry the markers they stand for in Members.
type Marker struct {
	ID       string       `json:"id"`
	Type     MarkerType   `json:"type"`
	Position Point        `json:"position"`
	Priority int          `json:"priority"`
	Severity string       `json:"severity,omitempty"`
	Date     date.Date    `json:"date"`
	TaskIDs  []int64      `json:"task_ids,omitempty"`
	Tooltip  *Tooltip     `json:"tooltip,omitempty"`
	Members  []Marker     `json:"members,omitempty"`
	Icons    []MarkerType `json:"icons,omitempty"`
	Overflow int          `json:"overflow,omitempty"`

	// OutOfRange is set when Date falls outside the timeline range even
	// though X may still be in [0,100], e.g. the day after the range end.
	OutOfRange bool `json:"out_of_range,omitempty"`
}

// Visible reports whether the marker lies on the rendered timeline.
func (m Marker) Visible() bool {
	return !m.OutOfRange && m.Position.X >= 0 && m.Position.X <= 100
}

// laneOffset is the resting Y of each marker type, in pixels.
var laneOffset = map[MarkerType]float64{
	MarkerMilestone:        8,
	MarkerWeather:          12,
	MarkerResourceConflict: 16,
	MarkerCriticalPath:     20,
}

// ResourceConflict is an assignee double-booked across two tasks.
type ResourceConflict struct {
	Assignee string    `json:"assignee"`
	TaskIDs  []int64   `json:"task_ids"`
	From     date.Date `json:"from"`
	To       date.Date `json:"to"`
}

// CriticalSegment is one task on the critical path.
type CriticalSegment struct {
	TaskID int64     `json:"task_id"`
	Title  string    `json:"title"`
	Start  date.Date `json:"start"`
	Due    date.Date `json:"due"`
}

// MarkerSources is the raw event data the markers are derived from.
type MarkerSources struct {
	Milestones   []models.Milestone
	Weather      []models.WeatherEvent
	Conflicts    []ResourceConflict
	CriticalPath []CriticalSegment
}

// BuildMarkers positions every source event on the timeline. Markers are
// returned sorted by X then ID so layout is deterministic.
func BuildMarkers(src MarkerSources, r Range, mode ViewMode) []Marker {
	markers := make([]Marker, 0, len(src.Milestones)+len(src.Weather)+len(src.Conflicts)+len(src.CriticalPath))

	for _, ms := range src.Milestones {
		status := "open"
		if ms.Completed {
			status = "completed"
		}
		markers = append(markers, place(Marker{
			ID:       fmt.Sprintf("milestone-%d", ms.ID),
			Type:     MarkerMilestone,
			Priority: milestonePriority(ms.Priority),
			Severity: ms.Priority,
			Date:     ms.Date,
			Tooltip: &Tooltip{
				Title:   ms.Title,
				Details: map[string]string{"date": ms.Date.String(), "status": status},
			},
		}, r, mode))
	}

	for _, w := range src.Weather {
		markers = append(markers, place(Marker{
			ID:       fmt.Sprintf("weather-%d", w.ID),
			Type:     MarkerWeather,
			Priority: weatherPriority(w.Severity),
			Severity: w.Severity,
			Date:     w.Date,
			Tooltip: &Tooltip{
				Title:       w.Title,
				Description: w.Description,
				Details:     map[string]string{"date": w.Date.String(), "severity": w.Severity},
			},
		}, r, mode))
	}

	for _, c := range src.Conflicts {
		markers = append(markers, place(Marker{
			ID:       fmt.Sprintf("conflict-%s-%d-%d", c.Assignee, c.TaskIDs[0], c.TaskIDs[1]),
			Type:     MarkerResourceConflict,
			Priority: 80,
			Severity: models.SeverityWarning,
			Date:     c.From,
			TaskIDs:  c.TaskIDs,
			Tooltip: &Tooltip{
				Title:       fmt.Sprintf("%s is double-booked", c.Assignee),
				Description: fmt.Sprintf("Tasks #%d and #%d overlap", c.TaskIDs[0], c.TaskIDs[1]),
				Details:     map[string]string{"from": c.From.String(), "to": c.To.String()},
			},
		}, r, mode))
	}

	for _, seg := range src.CriticalPath {
		markers = append(markers, place(Marker{
			ID:       fmt.Sprintf("critical-%d", seg.TaskID),
			Type:     MarkerCriticalPath,
			Priority: 50,
			Date:     seg.Start,
			TaskIDs:  []int64{seg.TaskID},
			Tooltip: &Tooltip{
				Title:   seg.Title,
				Details: map[string]string{"start": seg.Start.String(), "due": seg.Due.String()},
			},
		}, r, mode))
	}

	sort.SliceStable(markers, func(i, j int) bool {
		if markers[i].Position.X != markers[j].Position.X {
			return markers[i].Position.X < markers[j].Position.X
		}
		return markers[i].ID < markers[j].ID
	})
	return markers
}

func place(m Marker, r Range, mode ViewMode) Marker {
	pos := PositionOf(m.Date, r, mode)
	m.Position = Point{X: pos.Left, Y: laneOffset[m.Type]}
	m.OutOfRange = !pos.Visible
	return m
}

func milestonePriority(p string) int {
	switch p {
	case models.PriorityCritical:
		return 95
	case models.PriorityHigh:
		return 85
	case models.PriorityLow:
		return 55
	default:
		return 70
	}
}

func weatherPriority(severity string) int {
	switch severity {
	case models.SeveritySevere:
		return 90
	case models.SeverityWarning:
		return 60
	default:
		return 40
	}
}
