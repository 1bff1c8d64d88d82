package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/storage"
)

func testStore(t *testing.T) (*Store, *storage.Store) {
	t.Helper()
	root := t.TempDir()
	files := storage.New(root, filepath.Join(root, ".git"), nil)
	if err := files.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	return NewStore(files, ".sv/tasks.shared.jsonl"), files
}

func TestAppendAndTrackedState(t *testing.T) {
	store, _ := testStore(t)

	events := []domain.TaskEvent{
		taskEv("e1", domain.EventTaskCreated, "T-1", 0, func(e *domain.TaskEvent) { e.Title = "first" }),
		taskEv("e2", domain.EventTaskClosed, "T-1", time.Minute, nil),
	}
	for _, ev := range events {
		if err := store.Append(ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	state, err := store.TrackedState()
	if err != nil {
		t.Fatalf("TrackedState: %v", err)
	}
	task := state.Tasks["T-1"]
	if task == nil || !task.Closed {
		t.Errorf("folded task = %+v", task)
	}
}

func TestReadTrackedMissingIsEmpty(t *testing.T) {
	store, _ := testStore(t)
	events, err := store.ReadTracked()
	if err != nil {
		t.Fatalf("ReadTracked: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events from missing log", len(events))
	}
}

func TestSyncMergesAndReports(t *testing.T) {
	store, files := testStore(t)
	ctx := context.Background()

	// Tracked log has one event, shared has that plus one more, and an
	// external log contributes a third.
	e1 := taskEv("e1", domain.EventTaskCreated, "T-1", 0, func(e *domain.TaskEvent) { e.Title = "a" })
	e2 := taskEv("e2", domain.EventTaskCreated, "T-2", time.Minute, func(e *domain.TaskEvent) { e.Title = "b" })
	e3 := taskEv("e3", domain.EventTaskClosed, "T-1", 2*time.Minute, nil)

	if err := store.Append(e1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	for _, ev := range []domain.TaskEvent{e1, e2} {
		if err := files.AppendJSONL(files.SharedLog(".sv/tasks.shared.jsonl"), ev); err != nil {
			t.Fatalf("append shared: %v", err)
		}
	}
	external := filepath.Join(t.TempDir(), "external.jsonl")
	if err := files.AppendJSONL(external, e3); err != nil {
		t.Fatalf("append external: %v", err)
	}

	report, err := store.Sync(ctx, external)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.TotalEvents != 3 {
		t.Errorf("TotalEvents = %d, want 3", report.TotalEvents)
	}
	if report.AddedEvents != 2 {
		t.Errorf("AddedEvents = %d, want 2", report.AddedEvents)
	}
	if report.TrackedEvents != 1 || report.SharedEvents != 2 || report.ExternalEvents != 1 {
		t.Errorf("per-log counts = %+v", report)
	}

	// Tracked log was rewritten in fold order; shared untouched.
	merged, err := store.ReadTracked()
	if err != nil {
		t.Fatalf("ReadTracked: %v", err)
	}
	if len(merged) != 3 {
		t.Fatalf("tracked has %d events after sync", len(merged))
	}
	for i, want := range []string{"e1", "e2", "e3"} {
		if merged[i].EventID != want {
			t.Errorf("merged[%d] = %s, want %s", i, merged[i].EventID, want)
		}
	}
	shared, err := store.ReadShared()
	if err != nil {
		t.Fatalf("ReadShared: %v", err)
	}
	if len(shared) != 2 {
		t.Errorf("shared log mutated by sync: %d events", len(shared))
	}
}

func TestSyncIdempotent(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if err := store.Append(taskEv("e1", domain.EventTaskCreated, "T-1", 0, nil)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.Sync(ctx, ""); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	report, err := store.Sync(ctx, "")
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if report.AddedEvents != 0 {
		t.Errorf("second sync added %d events", report.AddedEvents)
	}
}

func TestSyncRejectsCorruptLog(t *testing.T) {
	store, files := testStore(t)

	if err := os.WriteFile(files.TrackedLog(), []byte("{\"event_id\":\"e1\"}\nnot json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := store.Sync(context.Background(), "")
	if err == nil {
		t.Fatal("Sync succeeded over corrupt log")
	}
	if !strings.Contains(err.Error(), "corrupt") {
		t.Errorf("error = %v, want corrupt record", err)
	}
}
