package gitx

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/testutil"
)

func openRepo(t *testing.T) (*Repo, string) {
	t.Helper()
	root := testutil.TempRepo(t)
	repo, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return repo, root
}

func TestOpenWalksUp(t *testing.T) {
	root := testutil.TempRepo(t)
	testutil.WriteFile(t, root, "sub/dir/file.txt", "x\n")

	repo, err := Open(filepath.Join(root, "sub", "dir"))
	if err != nil {
		t.Fatalf("Open from subdir: %v", err)
	}
	if repo.Root() != root {
		t.Errorf("root = %s, want %s", repo.Root(), root)
	}
}

func TestOpenOutsideRepository(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNotRepository) {
		t.Errorf("error = %v, want ErrNotRepository", err)
	}
}

func TestHeadAndResolve(t *testing.T) {
	repo, _ := openRepo(t)

	branch, err := repo.HeadBranch()
	if err != nil {
		t.Fatalf("HeadBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("head = %q", branch)
	}

	oid, err := repo.ResolveRefOID("main")
	if err != nil {
		t.Fatalf("ResolveRefOID: %v", err)
	}
	headOID, err := repo.ResolveRefOID("HEAD")
	if err != nil {
		t.Fatalf("ResolveRefOID HEAD: %v", err)
	}
	if oid != headOID {
		t.Errorf("main = %s, HEAD = %s", oid, headOID)
	}

	var notFound *domain.NotFoundError
	if _, err := repo.ResolveRefOID("no-such-ref"); !errors.As(err, &notFound) {
		t.Errorf("unknown ref error = %v", err)
	}
}

func TestBranchLifecycle(t *testing.T) {
	repo, _ := openRepo(t)
	mainOID, _ := repo.ResolveRefOID("main")

	if err := repo.CreateBranchFromRef("feature", "main", false); err != nil {
		t.Fatalf("CreateBranchFromRef: %v", err)
	}
	if err := repo.CreateBranchFromRef("feature", "main", false); err == nil {
		t.Error("duplicate branch accepted without force")
	}
	if err := repo.CreateBranchFromRef("feature", "main", true); err != nil {
		t.Errorf("forced create: %v", err)
	}

	oid, err := repo.ResolveRefOID("feature")
	if err != nil {
		t.Fatalf("resolve feature: %v", err)
	}
	if oid != mainOID {
		t.Errorf("feature = %s, want %s", oid, mainOID)
	}

	if err := repo.DeleteBranch("main"); err == nil {
		t.Error("deleted the checked-out branch")
	}
	if err := repo.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	var notFound *domain.NotFoundError
	if err := repo.DeleteBranch("feature"); !errors.As(err, &notFound) {
		t.Errorf("second delete error = %v", err)
	}
	if err := repo.MoveBranchRef("feature", mainOID); !errors.As(err, &notFound) {
		t.Errorf("move of missing branch error = %v", err)
	}
}

func TestListBranches(t *testing.T) {
	repo, _ := openRepo(t)
	for _, name := range []string{"sv/alpha", "sv/beta", "spike"} {
		if err := repo.CreateBranchFromRef(name, "main", false); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	all, err := repo.ListBranches("")
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all branches = %v", all)
	}

	filtered, err := repo.ListBranches("sv/*")
	if err != nil {
		t.Fatalf("ListBranches filtered: %v", err)
	}
	if len(filtered) != 2 || filtered[0] != "sv/alpha" || filtered[1] != "sv/beta" {
		t.Errorf("filtered = %v", filtered)
	}

	if _, err := repo.ListBranches("[bad"); err == nil {
		t.Error("invalid pattern accepted")
	}
}

func TestStagingAndCommit(t *testing.T) {
	repo, root := openRepo(t)

	staged, err := repo.StagedPaths()
	if err != nil {
		t.Fatalf("StagedPaths: %v", err)
	}
	if len(staged) != 0 {
		t.Errorf("clean repo staged = %v", staged)
	}

	testutil.WriteFile(t, root, "b.txt", "b\n")
	testutil.WriteFile(t, root, "a.txt", "a\n")
	if err := repo.StagePaths([]string{"a.txt", "b.txt"}); err != nil {
		t.Fatalf("StagePaths: %v", err)
	}
	staged, err = repo.StagedPaths()
	if err != nil {
		t.Fatalf("StagedPaths: %v", err)
	}
	if len(staged) != 2 || staged[0] != "a.txt" || staged[1] != "b.txt" {
		t.Errorf("staged = %v", staged)
	}

	before, _ := repo.ResolveRefOID("main")
	oid, parent, err := repo.Commit("add files", "alice", testutil.FixedTime)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if parent != before {
		t.Errorf("parent = %s, want %s", parent, before)
	}
	after, _ := repo.ResolveRefOID("main")
	if after != oid {
		t.Errorf("main = %s, commit = %s", after, oid)
	}
}

func TestResetBranchTo(t *testing.T) {
	repo, root := openRepo(t)
	before, _ := repo.ResolveRefOID("main")

	testutil.WriteFile(t, root, "extra.txt", "x\n")
	if err := repo.StagePaths([]string{"extra.txt"}); err != nil {
		t.Fatalf("StagePaths: %v", err)
	}
	if _, _, err := repo.Commit("extra", "alice", testutil.FixedTime); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := repo.ResetBranchTo("main", before); err != nil {
		t.Fatalf("ResetBranchTo: %v", err)
	}
	if oid, _ := repo.ResolveRefOID("main"); oid != before {
		t.Errorf("main = %s, want %s", oid, before)
	}
	// Mixed reset keeps the worktree file but unstages it.
	staged, _ := repo.StagedPaths()
	for _, p := range staged {
		if p == "extra.txt" {
			t.Error("extra.txt still staged after reset")
		}
	}
	if testutil.ReadFile(t, filepath.Join(root, "extra.txt")) != "x\n" {
		t.Error("worktree file lost on mixed reset")
	}
}

func TestHistoryQueries(t *testing.T) {
	repo, root := openRepo(t)

	if err := repo.CreateBranchFromRef("feature", "main", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Checkout("feature"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	testutil.WriteFile(t, root, "src/one.go", "package one\n")
	if err := repo.StagePaths([]string{"src/one.go"}); err != nil {
		t.Fatalf("StagePaths: %v", err)
	}
	if _, _, err := repo.Commit("one", "alice", testutil.FixedTime); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	testutil.WriteFile(t, root, "src/two.go", "package two\n")
	if err := repo.StagePaths([]string{"src/two.go"}); err != nil {
		t.Fatalf("StagePaths: %v", err)
	}
	if _, _, err := repo.Commit("two", "alice", testutil.FixedTime); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	changed, err := repo.ChangedPaths("main", "feature")
	if err != nil {
		t.Fatalf("ChangedPaths: %v", err)
	}
	if len(changed) != 2 || changed[0] != "src/one.go" || changed[1] != "src/two.go" {
		t.Errorf("changed = %v", changed)
	}

	ahead, err := repo.AheadCount("feature", "main")
	if err != nil {
		t.Fatalf("AheadCount: %v", err)
	}
	if ahead != 2 {
		t.Errorf("ahead = %d", ahead)
	}
	behind, err := repo.AheadCount("main", "feature")
	if err != nil {
		t.Fatalf("AheadCount: %v", err)
	}
	if behind != 0 {
		t.Errorf("main ahead of feature = %d", behind)
	}

	base, err := repo.MergeBaseOID("main", "feature")
	if err != nil {
		t.Fatalf("MergeBaseOID: %v", err)
	}
	if mainOID, _ := repo.ResolveRefOID("main"); base != mainOID {
		t.Errorf("merge base = %s, want %s", base, mainOID)
	}
}
