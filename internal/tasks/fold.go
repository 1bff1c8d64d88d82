// Package tasks implements the event-sourced task store: three
// append-only JSON-lines logs, a deterministic fold to derived state,
// and the three-way sync that merges them into the tracked log.
package tasks

import (
	"sort"

	"github.com/lherron/sv/internal/domain"
)

// State is the folded view over a set of task events
type State struct {
	Tasks     map[string]*domain.Task
	Projects  map[string]*domain.Project
	Relations []domain.TaskRelation
}

// NewState returns an empty state
func NewState() *State {
	return &State{
		Tasks:    make(map[string]*domain.Task),
		Projects: make(map[string]*domain.Project),
	}
}

// SortEvents orders events by ascending timestamp, then ascending
// event id as the tiebreak. This is the deterministic fold order.
func SortEvents(events []domain.TaskEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].EventID < events[j].EventID
	})
}

// Dedup removes events sharing an event id, keeping the first occurrence
func Dedup(events []domain.TaskEvent) []domain.TaskEvent {
	seen := make(map[string]bool, len(events))
	out := events[:0:0]
	for _, ev := range events {
		if seen[ev.EventID] {
			continue
		}
		seen[ev.EventID] = true
		out = append(out, ev)
	}
	return out
}

// Fold replays events from the empty state in deterministic order.
// Events are idempotent by event id; the input may mix streams.
func Fold(events []domain.TaskEvent) *State {
	merged := Dedup(append([]domain.TaskEvent(nil), events...))
	SortEvents(merged)

	state := NewState()
	for _, ev := range merged {
		state.apply(ev)
	}
	return state
}

func (s *State) task(taskID string, at domain.TaskEvent) *domain.Task {
	t, ok := s.Tasks[taskID]
	if !ok {
		// Events may reference tasks whose creation lives in a log we
		// have not merged yet; fold a stub rather than failing.
		t = &domain.Task{ID: taskID, CreatedAt: at.Timestamp}
		s.Tasks[taskID] = t
	}
	return t
}

func (s *State) apply(ev domain.TaskEvent) {
	switch ev.EventType {
	case domain.EventTaskCreated:
		t := s.task(ev.TaskID, ev)
		t.Title = ev.Title
		t.CreatedAt = ev.Timestamp
		t.UpdatedAt = ev.Timestamp
	case domain.EventTaskClosed:
		t := s.task(ev.TaskID, ev)
		t.Closed = true
		t.UpdatedAt = ev.Timestamp
	case domain.EventTaskReopened:
		t := s.task(ev.TaskID, ev)
		t.Closed = false
		t.UpdatedAt = ev.Timestamp
	case domain.EventTaskAssigned:
		t := s.task(ev.TaskID, ev)
		t.Assignee = ev.Assignee
		t.UpdatedAt = ev.Timestamp
	case domain.EventTaskRelated:
		s.Relations = append(s.Relations, domain.TaskRelation{
			FromTaskID:  ev.TaskID,
			ToTaskID:    ev.RelatedTaskID,
			Description: ev.RelationDescription,
		})
	case domain.EventTaskProjectSet:
		t := s.task(ev.TaskID, ev)
		t.ProjectID = ev.ProjectID
		t.UpdatedAt = ev.Timestamp
	case domain.EventTaskProjectCleared:
		t := s.task(ev.TaskID, ev)
		t.ProjectID = ""
		t.UpdatedAt = ev.Timestamp
	case domain.EventProjectCreated:
		name := ev.ProjectName
		if name == "" {
			name = ev.Title
		}
		s.Projects[ev.ProjectID] = &domain.Project{
			ID:        ev.ProjectID,
			Name:      name,
			CreatedAt: ev.Timestamp,
		}
	case domain.EventProjectRenamed:
		if p, ok := s.Projects[ev.ProjectID]; ok {
			p.Name = ev.ProjectName
		}
	}
}

// finishLegacy marks projects anchored on a task id as legacy
func (s *State) finishLegacy() {
	for pid, p := range s.Projects {
		if _, isTask := s.Tasks[pid]; isTask {
			p.Legacy = true
		}
	}
}

// CountByProject returns the number of tasks assigned to the project
func (s *State) CountByProject(projectID string) int {
	n := 0
	for _, t := range s.Tasks {
		if t.ProjectID == projectID {
			n++
		}
	}
	return n
}

// ListProjects returns projects sorted by id, with legacy anchors marked
func (s *State) ListProjects() []domain.Project {
	s.finishLegacy()
	out := make([]domain.Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListTasks returns tasks sorted by creation time then id
func (s *State) ListTasks() []domain.Task {
	out := make([]domain.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RelationsFor returns the relations touching the given task
func (s *State) RelationsFor(taskID string) []domain.TaskRelation {
	var out []domain.TaskRelation
	for _, rel := range s.Relations {
		if rel.FromTaskID == taskID || rel.ToTaskID == taskID {
			out = append(out, rel)
		}
	}
	return out
}
