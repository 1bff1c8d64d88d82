package engine

import (
	"context"
	"strconv"

	"github.com/lherron/sv/internal/config"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/id"
	"github.com/lherron/sv/internal/oplog"
	"github.com/lherron/sv/internal/tasks"
)

// appendTaskEvent appends ev to the tracked log and journals the
// command. compensating, when non-nil, becomes the inverse plan; its
// event id and timestamp are assigned at undo time.
func (e *Engine) appendTaskEvent(command string, ev domain.TaskEvent, compensating *domain.TaskEvent) error {
	if err := e.Tasks.Append(ev); err != nil {
		return err
	}
	rec := oplog.NewRecord(e.Now(), ev.Actor, command)
	rec.Details = map[string]string{"event": ev.EventID, "event_type": string(ev.EventType)}
	if ev.TaskID != "" {
		rec.Details["task"] = ev.TaskID
	}
	if compensating != nil {
		rec.Inverse = &domain.Inverse{Kind: domain.InverseAppendEvent, Event: compensating}
	}
	return e.Oplog.Append(rec)
}

// TaskNew creates a task, optionally assigned to a project
func (e *Engine) TaskNew(title, projectID string) (*domain.Task, error) {
	if title == "" {
		return nil, domain.Invalidf("task title must not be empty")
	}
	actor := e.Actor()
	now := e.Now().UTC()
	taskID := id.NewTask()

	ev := domain.TaskEvent{
		EventID:   id.NewEvent(),
		EventType: domain.EventTaskCreated,
		TaskID:    taskID,
		Actor:     actor,
		Timestamp: now,
		Title:     title,
	}
	// There is no deletion event; the compensation for creation is
	// closing the task.
	comp := &domain.TaskEvent{
		EventType: domain.EventTaskClosed,
		TaskID:    taskID,
		Actor:     actor,
	}
	if err := e.appendTaskEvent("task new", ev, comp); err != nil {
		return nil, err
	}

	if projectID != "" {
		if _, err := e.TaskProjectSet(taskID, projectID); err != nil {
			return nil, err
		}
	}
	return &domain.Task{ID: taskID, Title: title, ProjectID: projectID, CreatedAt: now, UpdatedAt: now}, nil
}

// TaskClose closes a task
func (e *Engine) TaskClose(taskID string) error {
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return err
	}
	if _, ok := state.Tasks[taskID]; !ok {
		return &domain.NotFoundError{Kind: "task", Name: taskID}
	}
	actor := e.Actor()
	ev := domain.TaskEvent{
		EventID:   id.NewEvent(),
		EventType: domain.EventTaskClosed,
		TaskID:    taskID,
		Actor:     actor,
		Timestamp: e.Now().UTC(),
	}
	comp := &domain.TaskEvent{EventType: domain.EventTaskReopened, TaskID: taskID, Actor: actor}
	return e.appendTaskEvent("task close", ev, comp)
}

// TaskReopen reopens a closed task
func (e *Engine) TaskReopen(taskID string) error {
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return err
	}
	if _, ok := state.Tasks[taskID]; !ok {
		return &domain.NotFoundError{Kind: "task", Name: taskID}
	}
	actor := e.Actor()
	ev := domain.TaskEvent{
		EventID:   id.NewEvent(),
		EventType: domain.EventTaskReopened,
		TaskID:    taskID,
		Actor:     actor,
		Timestamp: e.Now().UTC(),
	}
	comp := &domain.TaskEvent{EventType: domain.EventTaskClosed, TaskID: taskID, Actor: actor}
	return e.appendTaskEvent("task reopen", ev, comp)
}

// TaskAssign assigns a task to an actor
func (e *Engine) TaskAssign(taskID, assignee string) error {
	if err := domain.ValidateActorName(assignee); err != nil {
		return err
	}
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return err
	}
	task, ok := state.Tasks[taskID]
	if !ok {
		return &domain.NotFoundError{Kind: "task", Name: taskID}
	}
	actor := e.Actor()
	ev := domain.TaskEvent{
		EventID:   id.NewEvent(),
		EventType: domain.EventTaskAssigned,
		TaskID:    taskID,
		Actor:     actor,
		Timestamp: e.Now().UTC(),
		Assignee:  assignee,
	}
	comp := &domain.TaskEvent{
		EventType: domain.EventTaskAssigned,
		TaskID:    taskID,
		Actor:     actor,
		Assignee:  task.Assignee,
	}
	return e.appendTaskEvent("task assign", ev, comp)
}

// TaskRelate records a relation between two tasks
func (e *Engine) TaskRelate(taskID, relatedID, description string) error {
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return err
	}
	for _, tid := range []string{taskID, relatedID} {
		if _, ok := state.Tasks[tid]; !ok {
			return &domain.NotFoundError{Kind: "task", Name: tid}
		}
	}
	ev := domain.TaskEvent{
		EventID:             id.NewEvent(),
		EventType:           domain.EventTaskRelated,
		TaskID:              taskID,
		Actor:               e.Actor(),
		Timestamp:           e.Now().UTC(),
		RelatedTaskID:       relatedID,
		RelationDescription: description,
	}
	return e.appendTaskEvent("task relate", ev, nil)
}

// TaskProjectSet assigns a task to a project
func (e *Engine) TaskProjectSet(taskID, projectID string) (*domain.Task, error) {
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return nil, err
	}
	task, ok := state.Tasks[taskID]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "task", Name: taskID}
	}
	actor := e.Actor()
	ev := domain.TaskEvent{
		EventID:   id.NewEvent(),
		EventType: domain.EventTaskProjectSet,
		TaskID:    taskID,
		Actor:     actor,
		Timestamp: e.Now().UTC(),
		ProjectID: projectID,
	}
	var comp *domain.TaskEvent
	if task.ProjectID == "" {
		comp = &domain.TaskEvent{EventType: domain.EventTaskProjectCleared, TaskID: taskID, Actor: actor}
	} else {
		comp = &domain.TaskEvent{EventType: domain.EventTaskProjectSet, TaskID: taskID, Actor: actor, ProjectID: task.ProjectID}
	}
	if err := e.appendTaskEvent("task project set", ev, comp); err != nil {
		return nil, err
	}
	task.ProjectID = projectID
	return task, nil
}

// TaskProjectClear removes a task from its project
func (e *Engine) TaskProjectClear(taskID string) error {
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return err
	}
	task, ok := state.Tasks[taskID]
	if !ok {
		return &domain.NotFoundError{Kind: "task", Name: taskID}
	}
	actor := e.Actor()
	ev := domain.TaskEvent{
		EventID:   id.NewEvent(),
		EventType: domain.EventTaskProjectCleared,
		TaskID:    taskID,
		Actor:     actor,
		Timestamp: e.Now().UTC(),
	}
	var comp *domain.TaskEvent
	if task.ProjectID != "" {
		comp = &domain.TaskEvent{EventType: domain.EventTaskProjectSet, TaskID: taskID, Actor: actor, ProjectID: task.ProjectID}
	}
	return e.appendTaskEvent("task project clear", ev, comp)
}

// TaskList folds the tracked log and lists tasks, optionally filtered by
// project. An empty projectID falls back to the SV_PROJECT environment
// default; "-" disables the filter explicitly.
func (e *Engine) TaskList(projectID string) ([]domain.Task, error) {
	if projectID == "" {
		projectID = config.EnvProject()
	}
	if projectID == "-" {
		projectID = ""
	}
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return nil, err
	}
	all := state.ListTasks()
	if projectID == "" {
		return all, nil
	}
	var out []domain.Task
	for _, t := range all {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

// TaskCount counts tasks in a project
func (e *Engine) TaskCount(projectID string) (int, error) {
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return 0, err
	}
	if projectID == "" {
		return len(state.Tasks), nil
	}
	return state.CountByProject(projectID), nil
}

// TaskRelations lists the relations touching a task
func (e *Engine) TaskRelations(taskID string) ([]domain.TaskRelation, error) {
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return nil, err
	}
	return state.RelationsFor(taskID), nil
}

// TaskSync merges the tracked, shared, and optional external logs
func (e *Engine) TaskSync(ctx context.Context, externalPath string) (*tasks.SyncReport, error) {
	report, err := e.Tasks.Sync(ctx, externalPath)
	if err != nil {
		return nil, err
	}
	rec := oplog.NewRecord(e.Now(), e.Actor(), "task sync")
	rec.Details = map[string]string{
		"total_events": strconv.Itoa(report.TotalEvents),
		"added_events": strconv.Itoa(report.AddedEvents),
	}
	if err := e.Oplog.Append(rec); err != nil {
		return nil, err
	}
	return report, nil
}

// ProjectNew creates a first-class project
func (e *Engine) ProjectNew(name string) (*domain.Project, error) {
	if name == "" {
		return nil, domain.Invalidf("project name must not be empty")
	}
	now := e.Now().UTC()
	projectID := id.NewProject()
	ev := domain.TaskEvent{
		EventID:     id.NewEvent(),
		EventType:   domain.EventProjectCreated,
		Actor:       e.Actor(),
		Timestamp:   now,
		ProjectID:   projectID,
		ProjectName: name,
	}
	if err := e.appendTaskEvent("project new", ev, nil); err != nil {
		return nil, err
	}
	return &domain.Project{ID: projectID, Name: name, CreatedAt: now}, nil
}

// ProjectRename renames a project
func (e *Engine) ProjectRename(projectID, name string) error {
	if name == "" {
		return domain.Invalidf("project name must not be empty")
	}
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return err
	}
	project, ok := state.Projects[projectID]
	if !ok {
		return &domain.NotFoundError{Kind: "project", Name: projectID}
	}
	actor := e.Actor()
	ev := domain.TaskEvent{
		EventID:     id.NewEvent(),
		EventType:   domain.EventProjectRenamed,
		Actor:       actor,
		Timestamp:   e.Now().UTC(),
		ProjectID:   projectID,
		ProjectName: name,
	}
	comp := &domain.TaskEvent{
		EventType:   domain.EventProjectRenamed,
		Actor:       actor,
		ProjectID:   projectID,
		ProjectName: project.Name,
	}
	return e.appendTaskEvent("project rename", ev, comp)
}

// ProjectList lists projects derived from the tracked log
func (e *Engine) ProjectList() ([]domain.Project, error) {
	state, err := e.Tasks.TrackedState()
	if err != nil {
		return nil, err
	}
	return state.ListProjects(), nil
}

// ProjectMigrateLegacy synthesizes ProjectCreated events for legacy
// task-as-project anchors and appends them to the tracked log.
func (e *Engine) ProjectMigrateLegacy() ([]domain.TaskEvent, error) {
	events, err := e.Tasks.ReadTracked()
	if err != nil {
		return nil, err
	}
	synthesized := tasks.MigrateLegacy(events, e.Actor(), e.Now())
	for _, ev := range synthesized {
		if err := e.Tasks.Append(ev); err != nil {
			return nil, err
		}
	}
	rec := oplog.NewRecord(e.Now(), e.Actor(), "project migrate-legacy")
	rec.Details = map[string]string{"synthesized": strconv.Itoa(len(synthesized))}
	if err := e.Oplog.Append(rec); err != nil {
		return nil, err
	}
	return synthesized, nil
}
