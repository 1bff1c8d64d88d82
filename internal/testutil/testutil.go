// Package testutil provides shared helpers for package tests: temp
// repositories with a seeded history, file fixtures, and a pinned clock.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// FixedTime is the pinned clock used across tests
var FixedTime = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

// Clock returns a Now func pinned at FixedTime plus the given offset
func Clock(offset time.Duration) func() time.Time {
	return func() time.Time { return FixedTime.Add(offset) }
}

// TempRepo creates a git repository in a temp directory with one seeded
// commit on main, and returns its root.
func TempRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName("main"),
		},
	})
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	WriteFile(t, dir, "README.md", "seed\n")
	CommitAll(t, repo, "seed")
	return dir
}

// OpenRepo opens the go-git repository at root
func OpenRepo(t *testing.T, root string) *gogit.Repository {
	t.Helper()
	repo, err := gogit.PlainOpen(root)
	if err != nil {
		t.Fatalf("failed to open repo at %s: %v", root, err)
	}
	return repo
}

// WriteFile writes content to a file under dir, creating parents
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// StageFile stages one path in the repository's worktree
func StageFile(t *testing.T, repo *gogit.Repository, rel string) {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to open worktree: %v", err)
	}
	if _, err := wt.Add(rel); err != nil {
		t.Fatalf("failed to stage %s: %v", rel, err)
	}
}

// CommitAll stages everything and commits, returning the commit oid
func CommitAll(t *testing.T, repo *gogit.Repository, message string) string {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to open worktree: %v", err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		t.Fatalf("failed to stage all: %v", err)
	}
	sig := &object.Signature{Name: "test", Email: "test@sv.invalid", When: FixedTime}
	hash, err := wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

// ReadFile reads a file and fails the test on error
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
