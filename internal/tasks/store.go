package tasks

import (
	"context"
	"time"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/id"
	"github.com/lherron/sv/internal/storage"
)

// Store reads and appends the three task event logs. The tracked log is
// the fold source for queries; shared and external logs are merge inputs
// that sync never mutates.
type Store struct {
	files     *storage.Store
	sharedRel string
}

// NewStore creates a task store. sharedRel is the repo-relative path of
// the shared log.
func NewStore(files *storage.Store, sharedRel string) *Store {
	return &Store{files: files, sharedRel: sharedRel}
}

// ReadTracked reads the tracked log
func (s *Store) ReadTracked() ([]domain.TaskEvent, error) {
	return storage.ReadJSONL[domain.TaskEvent](s.files.TrackedLog())
}

// ReadShared reads the shared log
func (s *Store) ReadShared() ([]domain.TaskEvent, error) {
	return storage.ReadJSONL[domain.TaskEvent](s.files.SharedLog(s.sharedRel))
}

// ReadExternal reads an external contributed log. An empty path reads
// nothing.
func (s *Store) ReadExternal(path string) ([]domain.TaskEvent, error) {
	if path == "" {
		return nil, nil
	}
	return storage.ReadJSONL[domain.TaskEvent](path)
}

// Append adds one event to the tracked log. Appends to a single log file
// need no lock: O_APPEND keeps whole lines intact.
func (s *Store) Append(ev domain.TaskEvent) error {
	return s.files.AppendJSONL(s.files.TrackedLog(), ev)
}

// TrackedState folds the tracked log
func (s *Store) TrackedState() (*State, error) {
	events, err := s.ReadTracked()
	if err != nil {
		return nil, err
	}
	return Fold(events), nil
}

// SyncReport summarizes a three-way sync
type SyncReport struct {
	TotalEvents    int `json:"total_events"`
	AddedEvents    int `json:"added_events"`
	TrackedEvents  int `json:"tracked_events"`
	SharedEvents   int `json:"shared_events"`
	ExternalEvents int `json:"external_events"`
}

// Sync merges the tracked, shared, and optional external logs into the
// tracked log: union by event id, sorted in the deterministic fold
// order, rewritten atomically. Shared and external logs are never
// mutated. Sync holds the task-log lock because it rewrites.
func (s *Store) Sync(ctx context.Context, externalPath string) (*SyncReport, error) {
	var report *SyncReport
	err := s.files.WithLock(ctx, storage.LockTasks, func() error {
		tracked, err := s.ReadTracked()
		if err != nil {
			return err
		}
		shared, err := s.ReadShared()
		if err != nil {
			return err
		}
		external, err := s.ReadExternal(externalPath)
		if err != nil {
			return err
		}

		union := make([]domain.TaskEvent, 0, len(tracked)+len(shared)+len(external))
		union = append(union, tracked...)
		union = append(union, shared...)
		union = append(union, external...)
		union = Dedup(union)
		SortEvents(union)

		records := make([]interface{}, len(union))
		for i := range union {
			records[i] = union[i]
		}
		if err := s.files.WriteJSONL(s.files.TrackedLog(), records); err != nil {
			return err
		}

		report = &SyncReport{
			TotalEvents:    len(union),
			AddedEvents:    len(union) - len(Dedup(tracked)),
			TrackedEvents:  len(tracked),
			SharedEvents:   len(shared),
			ExternalEvents: len(external),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// MigrateLegacy scans for TaskProjectSet events whose project id is
// itself a task with no ProjectCreated event and synthesizes the missing
// ProjectCreated so the legacy task doubles as a project entity. The
// synthesized events are returned; the caller appends and journals them.
func MigrateLegacy(events []domain.TaskEvent, actor string, now time.Time) []domain.TaskEvent {
	state := Fold(events)

	created := make(map[string]bool)
	for _, ev := range events {
		if ev.EventType == domain.EventProjectCreated {
			created[ev.ProjectID] = true
		}
	}

	seen := make(map[string]bool)
	var synthesized []domain.TaskEvent
	for _, ev := range events {
		if ev.EventType != domain.EventTaskProjectSet {
			continue
		}
		pid := ev.ProjectID
		if pid == "" || created[pid] || seen[pid] {
			continue
		}
		anchor, isTask := state.Tasks[pid]
		if !isTask {
			continue
		}
		seen[pid] = true
		name := anchor.Title
		if name == "" {
			name = pid
		}
		synthesized = append(synthesized, domain.TaskEvent{
			EventID:     id.NewEvent(),
			EventType:   domain.EventProjectCreated,
			Actor:       actor,
			Timestamp:   now.UTC(),
			ProjectID:   pid,
			ProjectName: name,
		})
	}
	return synthesized
}
