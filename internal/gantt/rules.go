package gantt

import (
	"fmt"
	"sort"

	"buildtrack/internal/models"
)

// Validity classifies a drag candidate.
type Validity string

const (
	Valid   Validity = "valid"
	Warning Validity = "warning"
	Invalid Validity = "invalid"
)

// Messages for the hard validation failures.
const (
	MsgOutsideTimeline = "outside project timeline"
	MsgEndBeforeStart  = "end date before start date"
)

// RuleContext is what a Rule sees when judging a candidate schedule.
type RuleContext struct {
	Task      models.Task
	Candidate Schedule
	// Tasks holds every scheduled task of the project by ID.
	Tasks map[int64]ScheduledTask
}

// Rule produces soft warnings for a candidate schedule. Rules never make
// a candidate invalid.
type Rule interface {
	Check(rc RuleContext) []string
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(rc RuleContext) []string

func (f RuleFunc) Check(rc RuleContext) []string { return f(rc) }

// PredecessorRule warns when the task would start before a task it
// depends on is due.
type PredecessorRule struct{}

func (PredecessorRule) Check(rc RuleContext) []string {
	deps := append([]int64(nil), rc.Task.DependsOn...)
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })

	var msgs []string
	for _, id := range deps {
		pred, ok := rc.Tasks[id]
		if !ok {
			continue
		}
		if !rc.Candidate.Start.After(pred.Schedule.Due) {
			msgs = append(msgs, fmt.Sprintf("starts before predecessor #%d finishes", id))
		}
	}
	return msgs
}

// CompletedTaskRule warns when rescheduling a task that is already done.
type CompletedTaskRule struct{}

func (CompletedTaskRule) Check(rc RuleContext) []string {
	if rc.Task.Status == models.StatusCompleted {
		return []string{"task is already completed"}
	}
	return nil
}

// DefaultRules is the rule set used when none is configured.
func DefaultRules() []Rule {
	return []Rule{PredecessorRule{}, CompletedTaskRule{}}
}

// Validate judges a candidate schedule against the timeline range and the
// rule set. Range and ordering failures are invalid; rule findings are
// warnings.
func Validate(rc RuleContext, r Range, rules []Rule) (Validity, []string) {
	c := rc.Candidate
	var hard []string
	if c.Start.Before(r.Start) || c.Due.After(r.End) {
		hard = append(hard, MsgOutsideTimeline)
	}
	if c.Due.Before(c.Start) {
		hard = append(hard, MsgEndBeforeStart)
	}
	if len(hard) > 0 {
		return Invalid, hard
	}

	var warnings []string
	for _, rule := range rules {
		warnings = append(warnings, rule.Check(rc)...)
	}
	if len(warnings) > 0 {
		return Warning, warnings
	}
	return Valid, nil
}
