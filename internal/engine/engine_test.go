package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/gitx"
	"github.com/lherron/sv/internal/oplog"
	"github.com/lherron/sv/internal/testutil"
)

// tickingClock advances one second per reading so op ids stay ordered
func tickingClock() func() time.Time {
	now := testutil.FixedTime
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	root := testutil.TempRepo(t)
	repo, err := gitx.Open(root)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	e := fromRepo(repo, nil)
	if err := e.Store.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	e.Now = tickingClock()
	e.ActorOverride = "alice"
	return e
}

func mustCommit(t *testing.T, e *Engine, message string, paths ...string) *CommitResult {
	t.Helper()
	res, err := e.Commit(context.Background(), CommitOptions{Message: message, Paths: paths})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return res
}

func TestCommitAndUndo(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	root := e.Repo.Root()
	seed, _ := e.Repo.ResolveRefOID("main")

	testutil.WriteFile(t, root, "src/main.go", "package main\n")
	res := mustCommit(t, e, "add main", "src/main.go")
	if res.Branch != "main" || len(res.Staged) != 1 || res.Staged[0] != "src/main.go" {
		t.Fatalf("result = %+v", res)
	}
	if oid, _ := e.Repo.ResolveRefOID("main"); oid != res.OID {
		t.Errorf("main = %s, commit = %s", oid, res.OID)
	}
	latest, _ := e.Oplog.Latest()
	if latest == nil || latest.Command != "commit" {
		t.Fatalf("latest = %+v", latest)
	}

	undone, err := e.Undo(ctx, "")
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if undone.Command != "commit" || undone.Plan != domain.InverseResetCommit {
		t.Errorf("undone = %+v", undone)
	}
	if oid, _ := e.Repo.ResolveRefOID("main"); oid != seed {
		t.Errorf("main = %s after undo, want %s", oid, seed)
	}
	// The commit's files come back staged, ready to re-commit.
	staged, _ := e.Repo.StagedPaths()
	if len(staged) != 1 || staged[0] != "src/main.go" {
		t.Errorf("staged after undo = %v", staged)
	}
	latest, _ = e.Oplog.Latest()
	if latest.Command != "undo" || latest.Details["undone_command"] != "commit" {
		t.Errorf("undo record = %+v", latest)
	}
}

func TestCommitValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var invalid *domain.InvalidArgumentError
	if _, err := e.Commit(ctx, CommitOptions{}); !errors.As(err, &invalid) {
		t.Errorf("empty message error = %v", err)
	}
	if _, err := e.Commit(ctx, CommitOptions{Message: "x"}); !errors.As(err, &invalid) {
		t.Errorf("empty index error = %v", err)
	}
}

func TestCommitBlockedByProtect(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.Config.Protect.Paths = []string{"infra/**"}
	seed, _ := e.Repo.ResolveRefOID("main")

	testutil.WriteFile(t, e.Repo.Root(), "infra/prod.tf", "resource {}\n")
	_, err := e.Commit(ctx, CommitOptions{Message: "infra", Paths: []string{"infra/prod.tf"}})
	var blocked *domain.ProtectedPathError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v", err)
	}
	if blocked.Path != "infra/prod.tf" || blocked.Pattern != "infra/**" {
		t.Errorf("blocked = %+v", blocked)
	}
	if oid, _ := e.Repo.ResolveRefOID("main"); oid != seed {
		t.Error("blocked commit moved the branch")
	}
	latest, _ := e.Oplog.Latest()
	if latest.Command != "commit" || latest.Outcome != domain.OpOutcomeFailed {
		t.Errorf("failure not journaled: %+v", latest)
	}

	// Disabling the pattern for this workspace unblocks the commit.
	if err := e.ProtectOff(ctx, "infra/**"); err != nil {
		t.Fatalf("ProtectOff: %v", err)
	}
	if _, err := e.Commit(ctx, CommitOptions{Message: "infra"}); err != nil {
		t.Errorf("commit after protect off: %v", err)
	}
}

func TestCommitWarnsOnWarnMode(t *testing.T) {
	e := newTestEngine(t)
	e.Config.Protect.Mode = "warn"
	e.Config.Protect.Paths = []string{"docs/**"}

	testutil.WriteFile(t, e.Repo.Root(), "docs/intro.md", "hello\n")
	res := mustCommit(t, e, "docs", "docs/intro.md")
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "protected path") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestCommitLeaseConflict(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.ActorOverride = "bob"
	if _, err := e.LeaseAcquire(ctx, LeaseAcquireOptions{Pathspec: "src/**"}); err != nil {
		t.Fatalf("LeaseAcquire: %v", err)
	}
	e.ActorOverride = "alice"

	testutil.WriteFile(t, e.Repo.Root(), "src/main.go", "package main\n")
	_, err := e.Commit(ctx, CommitOptions{Message: "src", Paths: []string{"src/main.go"}})
	var conflict *domain.LeaseConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v", err)
	}
	if conflict.Holder != "bob" {
		t.Errorf("conflict = %+v", conflict)
	}

	// Cooperative overlap goes through once requested explicitly.
	if _, err := e.Commit(ctx, CommitOptions{Message: "src", AllowOverlap: true}); err != nil {
		t.Errorf("overlap commit: %v", err)
	}
}

func TestLeaseLifecycleAndUndo(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	acquired, err := e.LeaseAcquire(ctx, LeaseAcquireOptions{Pathspec: "src/**", Note: "refactor"})
	if err != nil {
		t.Fatalf("LeaseAcquire: %v", err)
	}

	e.ActorOverride = "bob"
	if _, err := e.LeaseAcquire(ctx, LeaseAcquireOptions{Pathspec: "src/main.go"}); err == nil {
		t.Error("conflicting acquire succeeded")
	}
	e.ActorOverride = "alice"

	released, err := e.LeaseRelease(ctx, acquired.ID)
	if err != nil {
		t.Fatalf("LeaseRelease: %v", err)
	}
	if released.ID != acquired.ID || released.Note != "refactor" {
		t.Errorf("released = %+v", released)
	}
	if leases, _ := e.LeaseList(); len(leases) != 0 {
		t.Fatalf("leases after release = %+v", leases)
	}

	// Undoing the release restores the lease verbatim.
	undone, err := e.Undo(ctx, "")
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if undone.Plan != domain.InverseRestoreLease {
		t.Errorf("plan = %s", undone.Plan)
	}
	leases, _ := e.LeaseList()
	if len(leases) != 1 || leases[0].ID != acquired.ID || leases[0].Note != "refactor" {
		t.Fatalf("leases after undo = %+v", leases)
	}

	// Undoing the original acquire removes it again.
	recs, err := e.Oplog.Read(oplog.Filter{Command: "lease acquire"})
	if err != nil || len(recs) != 1 {
		t.Fatalf("acquire records = %v, %v", recs, err)
	}
	if _, err := e.Undo(ctx, recs[0].OpID); err != nil {
		t.Fatalf("Undo acquire: %v", err)
	}
	if leases, _ := e.LeaseList(); len(leases) != 0 {
		t.Errorf("leases = %+v", leases)
	}
}

func TestWorkspaceLifecycleAndUndo(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mainOID, _ := e.Repo.ResolveRefOID("main")

	ws, err := e.WorkspaceNew(ctx, "feature")
	if err != nil {
		t.Fatalf("WorkspaceNew: %v", err)
	}
	if oid, err := e.Repo.ResolveRefOID("feature"); err != nil || oid != mainOID {
		t.Errorf("feature = %s, %v", oid, err)
	}
	if _, err := e.WorkspaceNew(ctx, "feature"); err == nil {
		t.Error("duplicate workspace accepted")
	}

	removed, err := e.WorkspaceRemove(ctx, "feature")
	if err != nil {
		t.Fatalf("WorkspaceRemove: %v", err)
	}
	if removed.ID != ws.ID {
		t.Errorf("removed = %+v", removed)
	}
	if _, err := e.Repo.ResolveRefOID("feature"); err == nil {
		t.Error("branch survived removal")
	}

	// Undo brings back both the branch and the registry entry.
	if _, err := e.Undo(ctx, ""); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if oid, err := e.Repo.ResolveRefOID("feature"); err != nil || oid != mainOID {
		t.Errorf("restored feature = %s, %v", oid, err)
	}
	list, _ := e.WorkspaceList()
	if len(list) != 1 || list[0].ID != ws.ID {
		t.Fatalf("workspaces after undo = %+v", list)
	}

	// Undoing the creation deletes branch and registry entry.
	recs, _ := e.Oplog.Read(oplog.Filter{Command: "ws new"})
	if len(recs) != 1 {
		t.Fatalf("ws new records = %+v", recs)
	}
	if _, err := e.Undo(ctx, recs[0].OpID); err != nil {
		t.Fatalf("Undo creation: %v", err)
	}
	if _, err := e.Repo.ResolveRefOID("feature"); err == nil {
		t.Error("branch survived undo of creation")
	}
	if list, _ := e.WorkspaceList(); len(list) != 0 {
		t.Errorf("workspaces = %+v", list)
	}
}

func TestUndoPreconditionViolated(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	root := e.Repo.Root()

	testutil.WriteFile(t, root, "a.txt", "a\n")
	mustCommit(t, e, "first", "a.txt")
	first, _ := e.Oplog.Latest()

	testutil.WriteFile(t, root, "b.txt", "b\n")
	second := mustCommit(t, e, "second", "b.txt")

	_, err := e.Undo(ctx, first.OpID)
	if err == nil || !strings.Contains(err.Error(), "undo precondition") {
		t.Fatalf("error = %v", err)
	}
	if oid, _ := e.Repo.ResolveRefOID("main"); oid != second.OID {
		t.Error("violated undo still moved the branch")
	}
}

func TestUndoRejectsRecordsWithoutInverse(t *testing.T) {
	e := newTestEngine(t)

	if err := e.SetActor("carol"); err != nil {
		t.Fatalf("SetActor: %v", err)
	}
	var invalid *domain.InvalidArgumentError
	if _, err := e.Undo(context.Background(), ""); !errors.As(err, &invalid) {
		t.Errorf("error = %v", err)
	}
}

func TestTaskLifecycleAndUndo(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	task, err := e.TaskNew("write the parser", "")
	if err != nil {
		t.Fatalf("TaskNew: %v", err)
	}
	if err := e.TaskClose(task.ID); err != nil {
		t.Fatalf("TaskClose: %v", err)
	}
	state, _ := e.Tasks.TrackedState()
	if !state.Tasks[task.ID].Closed {
		t.Fatal("task not closed")
	}

	// Undo of a close appends a compensating reopen.
	undone, err := e.Undo(ctx, "")
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if undone.Plan != domain.InverseAppendEvent {
		t.Errorf("plan = %s", undone.Plan)
	}
	state, _ = e.Tasks.TrackedState()
	if state.Tasks[task.ID].Closed {
		t.Error("task still closed after undo")
	}

	// Compensations have no representable redo.
	var invalid *domain.InvalidArgumentError
	if _, err := e.Undo(ctx, ""); !errors.As(err, &invalid) {
		t.Errorf("redo of compensation = %v", err)
	}
}

func TestTaskAssignAndRelations(t *testing.T) {
	e := newTestEngine(t)

	a, _ := e.TaskNew("task a", "")
	b, _ := e.TaskNew("task b", "")
	if err := e.TaskAssign(a.ID, "bob"); err != nil {
		t.Fatalf("TaskAssign: %v", err)
	}
	if err := e.TaskRelate(a.ID, b.ID, "blocks"); err != nil {
		t.Fatalf("TaskRelate: %v", err)
	}

	state, _ := e.Tasks.TrackedState()
	if state.Tasks[a.ID].Assignee != "bob" {
		t.Errorf("assignee = %q", state.Tasks[a.ID].Assignee)
	}
	rels, _ := e.TaskRelations(b.ID)
	if len(rels) != 1 || rels[0].Description != "blocks" {
		t.Errorf("relations = %+v", rels)
	}

	var notFound *domain.NotFoundError
	if err := e.TaskClose("T-nope"); !errors.As(err, &notFound) {
		t.Errorf("unknown task error = %v", err)
	}
}

func TestProjectFlow(t *testing.T) {
	e := newTestEngine(t)

	project, err := e.ProjectNew("runtime")
	if err != nil {
		t.Fatalf("ProjectNew: %v", err)
	}
	task, err := e.TaskNew("port the scheduler", project.ID)
	if err != nil {
		t.Fatalf("TaskNew: %v", err)
	}
	if _, err := e.TaskNew("unrelated", ""); err != nil {
		t.Fatalf("TaskNew: %v", err)
	}

	inProject, _ := e.TaskList(project.ID)
	if len(inProject) != 1 || inProject[0].ID != task.ID {
		t.Errorf("project tasks = %+v", inProject)
	}
	if n, _ := e.TaskCount(project.ID); n != 1 {
		t.Errorf("count = %d", n)
	}

	if err := e.ProjectRename(project.ID, "runtime-v2"); err != nil {
		t.Fatalf("ProjectRename: %v", err)
	}
	projects, _ := e.ProjectList()
	found := false
	for _, p := range projects {
		if p.ID == project.ID && p.Name == "runtime-v2" {
			found = true
		}
	}
	if !found {
		t.Errorf("projects = %+v", projects)
	}
}

func TestSelectOverLiveState(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.WorkspaceNew(ctx, "alpha"); err != nil {
		t.Fatalf("WorkspaceNew: %v", err)
	}
	if _, err := e.WorkspaceNew(ctx, "beta"); err != nil {
		t.Fatalf("WorkspaceNew: %v", err)
	}
	if _, err := e.WorkspaceSwitch(ctx, "alpha"); err != nil {
		t.Fatalf("WorkspaceSwitch: %v", err)
	}
	testutil.WriteFile(t, e.Repo.Root(), "src/alpha.go", "package alpha\n")
	mustCommit(t, e, "alpha work", "src/alpha.go")
	if _, err := e.LeaseAcquire(ctx, LeaseAcquireOptions{Pathspec: "docs/**"}); err != nil {
		t.Fatalf("LeaseAcquire: %v", err)
	}

	active, err := e.Select(`ws(active)`)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(active) != 1 || active[0].Item.Name != "alpha" {
		t.Errorf("ws(active) = %+v", active)
	}

	// Subtracting the name match empties the set.
	diff, err := e.Select(`ws(active) ~ name~"alpha"`)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(diff) != 0 {
		t.Errorf("difference = %+v", diff)
	}

	ahead, err := e.Select(`branch(ahead:1)`)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(ahead) != 1 || ahead[0].Item.Name != "alpha" {
		t.Errorf("branch(ahead:1) = %+v", ahead)
	}

	touching, err := e.Select(`lease(touching:docs/intro.md)`)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(touching) != 1 {
		t.Errorf("lease(touching) = %+v", touching)
	}
	wsTouching, err := e.Select(`ws(touching:src/alpha.go)`)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(wsTouching) != 1 || wsTouching[0].Item.Name != "alpha" {
		t.Errorf("ws(touching) = %+v", wsTouching)
	}

	var invalid *domain.InvalidArgumentError
	if _, err := e.Select("ws("); !errors.As(err, &invalid) {
		t.Errorf("parse error = %v", err)
	}
}

func TestRiskScan(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	root := e.Repo.Root()
	e.Config.Protect.Paths = []string{"go.mod"}

	testutil.WriteFile(t, root, "go.mod", "module example\n")
	testutil.WriteFile(t, root, "src/main.go", "package main\n")
	if err := e.Repo.StagePaths([]string{"go.mod", "src/main.go"}); err != nil {
		t.Fatalf("StagePaths: %v", err)
	}

	e.ActorOverride = "bob"
	if _, err := e.LeaseAcquire(ctx, LeaseAcquireOptions{Pathspec: "src/**"}); err != nil {
		t.Fatalf("LeaseAcquire: %v", err)
	}
	e.ActorOverride = "carol"
	if _, err := e.LeaseAcquire(ctx, LeaseAcquireOptions{Pathspec: "src/main.go", AllowOverlap: true}); err != nil {
		t.Fatalf("LeaseAcquire: %v", err)
	}
	e.ActorOverride = "alice"

	report, err := e.Risk()
	if err != nil {
		t.Fatalf("Risk: %v", err)
	}
	if report.Clean() {
		t.Fatal("scan reported clean")
	}
	counts := make(map[string]int)
	for _, item := range report.Items {
		counts[item.Kind]++
	}
	if counts[RiskProtectBlocked] != 1 {
		t.Errorf("protect findings = %d", counts[RiskProtectBlocked])
	}
	if counts[RiskLeaseConflict] != 2 {
		t.Errorf("lease conflicts = %d", counts[RiskLeaseConflict])
	}
	if counts[RiskLeaseOverlap] != 1 {
		t.Errorf("lease overlaps = %d", counts[RiskLeaseOverlap])
	}
}

func TestRiskCleanRepo(t *testing.T) {
	e := newTestEngine(t)
	report, err := e.Risk()
	if err != nil {
		t.Fatalf("Risk: %v", err)
	}
	if !report.Clean() {
		t.Errorf("items = %+v", report.Items)
	}
}

func TestStatusReport(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.WorkspaceNew(ctx, "alpha"); err != nil {
		t.Fatalf("WorkspaceNew: %v", err)
	}
	if _, err := e.LeaseAcquire(ctx, LeaseAcquireOptions{Pathspec: "docs/**"}); err != nil {
		t.Fatalf("LeaseAcquire: %v", err)
	}
	if _, err := e.TaskNew("keep open", ""); err != nil {
		t.Fatalf("TaskNew: %v", err)
	}
	closed, _ := e.TaskNew("close me", "")
	if err := e.TaskClose(closed.ID); err != nil {
		t.Fatalf("TaskClose: %v", err)
	}

	st, err := e.StatusReport()
	if err != nil {
		t.Fatalf("StatusReport: %v", err)
	}
	if st.Branch != "main" || st.Actor != "alice" {
		t.Errorf("status = %+v", st)
	}
	if st.TotalLeases != 1 || st.ActiveLeases != 1 || st.Workspaces != 1 {
		t.Errorf("counts = %+v", st)
	}
	if st.OpenTasks != 1 || st.ClosedTasks != 1 {
		t.Errorf("tasks = %+v", st)
	}
	if st.LastCommand != "task close" || st.LastOp == "" {
		t.Errorf("last op = %q %q", st.LastOp, st.LastCommand)
	}
}

func TestTaskSyncJournals(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.TaskNew("tracked", ""); err != nil {
		t.Fatalf("TaskNew: %v", err)
	}
	report, err := e.TaskSync(context.Background(), "")
	if err != nil {
		t.Fatalf("TaskSync: %v", err)
	}
	if report.TotalEvents != 1 || report.AddedEvents != 0 {
		t.Errorf("report = %+v", report)
	}
	latest, _ := e.Oplog.Latest()
	if latest.Command != "task sync" {
		t.Errorf("latest = %+v", latest)
	}
}

func TestProtectOverrideUndo(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.ProtectOff(ctx, "infra/**"); err != nil {
		t.Fatalf("ProtectOff: %v", err)
	}
	override, _ := e.loadOverride()
	if !override.Disabled("infra/**") {
		t.Fatal("pattern not disabled")
	}

	if _, err := e.Undo(ctx, ""); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	override, _ = e.loadOverride()
	if override.Disabled("infra/**") {
		t.Error("undo left the pattern disabled")
	}

	// And the other direction: undoing protect on re-disables.
	if err := e.ProtectOff(ctx, "infra/**"); err != nil {
		t.Fatalf("ProtectOff: %v", err)
	}
	if err := e.ProtectOn(ctx, "infra/**"); err != nil {
		t.Fatalf("ProtectOn: %v", err)
	}
	if _, err := e.Undo(ctx, ""); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	override, _ = e.loadOverride()
	if !override.Disabled("infra/**") {
		t.Error("undo did not restore the override")
	}
}

func TestInstallHooks(t *testing.T) {
	e := newTestEngine(t)

	installed, err := e.InstallHooks()
	if err != nil || !installed {
		t.Fatalf("InstallHooks = %v, %v", installed, err)
	}
	hookPath := filepath.Join(e.Store.HooksDir(), "pre-commit")
	if !strings.Contains(testutil.ReadFile(t, hookPath), "sv risk") {
		t.Error("hook does not invoke the risk scan")
	}

	// Idempotent over an identical hook.
	installed, err = e.InstallHooks()
	if err != nil || installed {
		t.Errorf("reinstall = %v, %v", installed, err)
	}

	// A foreign hook is left alone.
	if err := os.WriteFile(hookPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := e.InstallHooks(); err == nil {
		t.Error("foreign hook overwritten")
	}
}

func TestInitLaysOutRepository(t *testing.T) {
	root := testutil.TempRepo(t)
	e, err := Init(root, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".sv.toml")); err != nil {
		t.Errorf("config file missing: %v", err)
	}
	if fi, err := os.Stat(e.Store.OplogDir()); err != nil || !fi.IsDir() {
		t.Errorf("oplog dir missing: %v", err)
	}
	recs, _ := e.Oplog.Read(oplog.Filter{Command: "init"})
	if len(recs) != 1 {
		t.Errorf("init records = %+v", recs)
	}
}
