package gantt

import (
	"sort"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// ScheduledTask pairs a task with its effective schedule.
type ScheduledTask struct {
	Task     models.Task
	Schedule Schedule
}

// DetectResourceConflicts reports every pair of tasks that share an
// assignee and overlap in time. Completed tasks are ignored.
func DetectResourceConflicts(tasks []ScheduledTask) []ResourceConflict {
	byAssignee := map[string][]ScheduledTask{}
	for _, st := range tasks {
		if st.Task.Assignee == "" || st.Task.Status == models.StatusCompleted {
			continue
		}
		byAssignee[st.Task.Assignee] = append(byAssignee[st.Task.Assignee], st)
	}

	assignees := make([]string, 0, len(byAssignee))
	for a := range byAssignee {
		assignees = append(assignees, a)
	}
	sort.Strings(assignees)

	var conflicts []ResourceConflict
	for _, assignee := range assignees {
		group := byAssignee[assignee]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].Schedule.Start.Equal(group[j].Schedule.Start) {
				return group[i].Schedule.Start.Before(group[j].Schedule.Start)
			}
			return group[i].Task.ID < group[j].Task.ID
		})
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if b.Schedule.Start.After(a.Schedule.Due) {
					break
				}
				if !a.Schedule.Overlaps(b.Schedule) {
					continue
				}
				conflicts = append(conflicts, ResourceConflict{
					Assignee: assignee,
					TaskIDs:  []int64{a.Task.ID, b.Task.ID},
					From:     date.Max(a.Schedule.Start, b.Schedule.Start),
					To:       date.Min(a.Schedule.Due, b.Schedule.Due),
				})
			}
		}
	}
	return conflicts
}

// CriticalPath returns the longest dependency chain measured in scheduled
// days. Dependencies on tasks that are not scheduled are ignored. A cycle
// makes the path undefined and returns a DEPENDENCY_CYCLE error.
func CriticalPath(tasks []ScheduledTask) ([]CriticalSegment, error) {
	byID := make(map[int64]ScheduledTask, len(tasks))
	for _, st := range tasks {
		byID[st.Task.ID] = st
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int64]int, len(tasks))
	length := make(map[int64]int, len(tasks))
	next := make(map[int64]int64, len(tasks))

	var visit func(id int64) error
	visit = func(id int64) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return apperr.Newf(apperr.DependencyCycle, "dependency cycle through task #%d", id).
				WithDetails(map[string]any{"task_id": id})
		}
		state[id] = visiting
		st := byID[id]
		best, bestPred := 0, int64(0)
		for _, pred := range st.Task.DependsOn {
			if _, ok := byID[pred]; !ok {
				continue
			}
			if err := visit(pred); err != nil {
				return err
			}
			if length[pred] > best || (length[pred] == best && bestPred != 0 && pred < bestPred) {
				best, bestPred = length[pred], pred
			}
		}
		length[id] = best + st.Schedule.Days()
		next[id] = bestPred
		state[id] = done
		return nil
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var tail int64
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
		if tail == 0 || length[id] > length[tail] {
			tail = id
		}
	}
	if tail == 0 {
		return nil, nil
	}

	var path []CriticalSegment
	for id := tail; id != 0; id = next[id] {
		st := byID[id]
		path = append(path, CriticalSegment{TaskID: id, Title: st.Task.Title, Start: st.Schedule.Start, Due: st.Schedule.Due})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
