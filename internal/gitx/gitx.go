// Package gitx is a thin facade over go-git, scoped to the ref, index and
// tree operations sv needs. All errors from the underlying library are
// normalized into the sv error taxonomy.
package gitx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/gobwas/glob"

	"github.com/lherron/sv/internal/domain"
)

// ErrNotRepository is returned when the path is not inside a git repository
var ErrNotRepository = errors.New("not a git repository")

// Repo wraps an open git repository
type Repo struct {
	repo   *gogit.Repository
	root   string
	gitDir string
}

// Open opens the repository containing path, walking up to find the
// repository root.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	root, err := findRoot(abs)
	if err != nil {
		return nil, err
	}
	repo, err := gogit.PlainOpen(root)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, domain.OpFailedf(err, "failed to open repository at %s", root)
	}
	return &Repo{repo: repo, root: root, gitDir: filepath.Join(root, ".git")}, nil
}

// Init creates a new repository at path
func Init(path string) (*Repo, error) {
	repo, err := gogit.PlainInit(path, false)
	if err != nil {
		return nil, domain.OpFailedf(err, "failed to init repository at %s", path)
	}
	return &Repo{repo: repo, root: path, gitDir: filepath.Join(path, ".git")}, nil
}

func findRoot(start string) (string, error) {
	dir := start
	for {
		if fi, err := os.Stat(filepath.Join(dir, ".git")); err == nil && fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotRepository
		}
		dir = parent
	}
}

// Root returns the repository root
func (r *Repo) Root() string { return r.root }

// GitDir returns the git control directory
func (r *Repo) GitDir() string { return r.gitDir }

// ResolveRefOID resolves a revision (branch name, HEAD, oid) to an
// object id string.
func (r *Repo) ResolveRefOID(name string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(name))
	if err != nil {
		return "", &domain.NotFoundError{Kind: "ref", Name: name}
	}
	return hash.String(), nil
}

// HeadBranch returns the short name of the currently checked out branch
func (r *Repo) HeadBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", domain.OpFailedf(err, "failed to read HEAD")
	}
	if !head.Name().IsBranch() {
		return "", &domain.OperationFailedError{Message: "HEAD is detached"}
	}
	return head.Name().Short(), nil
}

// CreateBranchFromRef creates branch name at the oid that ref resolves
// to. Without force, an existing branch is an error.
func (r *Repo) CreateBranchFromRef(name, ref string, force bool) error {
	oid, err := r.ResolveRefOID(ref)
	if err != nil {
		return err
	}
	refName := plumbing.NewBranchReferenceName(name)
	if !force {
		if _, err := r.repo.Reference(refName, false); err == nil {
			return domain.Invalidf("branch already exists: %s", name)
		}
	}
	hash := plumbing.NewHash(oid)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(refName, hash)); err != nil {
		return domain.OpFailedf(err, "failed to create branch %s", name)
	}
	return nil
}

// MoveBranchRef points branch name at oid
func (r *Repo) MoveBranchRef(name, oid string) error {
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(refName, false); err != nil {
		return &domain.NotFoundError{Kind: "branch", Name: name}
	}
	hash := plumbing.NewHash(oid)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(refName, hash)); err != nil {
		return domain.OpFailedf(err, "failed to move branch %s", name)
	}
	return nil
}

// DeleteBranch removes branch name. Deleting the checked-out branch is
// rejected.
func (r *Repo) DeleteBranch(name string) error {
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(refName, false); err != nil {
		return &domain.NotFoundError{Kind: "branch", Name: name}
	}
	if head, err := r.HeadBranch(); err == nil && head == name {
		return domain.Invalidf("cannot delete the checked-out branch %s", name)
	}
	if err := r.repo.Storer.RemoveReference(refName); err != nil {
		return domain.OpFailedf(err, "failed to delete branch %s", name)
	}
	return nil
}

// ListBranches returns branch short names, optionally filtered by a
// shell glob anchored to the full branch name. Matching is
// case-sensitive. Results are sorted.
func (r *Repo) ListBranches(pattern string) ([]string, error) {
	var matcher glob.Glob
	if pattern != "" {
		var err error
		matcher, err = glob.Compile(pattern, '/')
		if err != nil {
			return nil, domain.Invalidf("invalid branch pattern %q: %v", pattern, err)
		}
	}
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, domain.OpFailedf(err, "failed to list branches")
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if matcher == nil || matcher.Match(name) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, domain.OpFailedf(err, "failed to list branches")
	}
	sort.Strings(names)
	return names, nil
}

// StagedPaths enumerates paths with staged changes, sorted
func (r *Repo) StagedPaths() ([]string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, domain.OpFailedf(err, "failed to open worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return nil, domain.OpFailedf(err, "failed to read status")
	}
	var staged []string
	for path, st := range status {
		switch st.Staging {
		case gogit.Added, gogit.Modified, gogit.Deleted, gogit.Renamed, gogit.Copied:
			staged = append(staged, path)
		}
	}
	sort.Strings(staged)
	return staged, nil
}

// StagePaths adds the given worktree paths to the index
func (r *Repo) StagePaths(paths []string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return domain.OpFailedf(err, "failed to open worktree")
	}
	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return domain.OpFailedf(err, "failed to stage %s", p)
		}
	}
	return nil
}

// Commit creates a commit from the index on the current branch and
// returns the new oid and the parent oid.
func (r *Repo) Commit(message, actor string, when time.Time) (oid, parent string, err error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", "", domain.OpFailedf(err, "failed to open worktree")
	}
	if head, err := r.repo.Head(); err == nil {
		parent = head.Hash().String()
	}
	sig := &object.Signature{
		Name:  actor,
		Email: actor + "@sv.invalid",
		When:  when,
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", "", domain.OpFailedf(err, "failed to commit")
	}
	return hash.String(), parent, nil
}

// ResetBranchTo moves branch back to oid. When branch is checked out the
// index is reset as well (mixed reset); otherwise only the ref moves.
func (r *Repo) ResetBranchTo(branch, oid string) error {
	head, err := r.HeadBranch()
	if err == nil && head == branch {
		wt, err := r.repo.Worktree()
		if err != nil {
			return domain.OpFailedf(err, "failed to open worktree")
		}
		if err := wt.Reset(&gogit.ResetOptions{
			Commit: plumbing.NewHash(oid),
			Mode:   gogit.MixedReset,
		}); err != nil {
			return domain.OpFailedf(err, "failed to reset %s to %s", branch, oid)
		}
		return nil
	}
	return r.MoveBranchRef(branch, oid)
}

// Checkout switches the worktree to branch
func (r *Repo) Checkout(branch string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return domain.OpFailedf(err, "failed to open worktree")
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
	}); err != nil {
		return domain.OpFailedf(err, "failed to checkout %s", branch)
	}
	return nil
}

// CommitObject returns the commit at oid
func (r *Repo) CommitObject(oid string) (*object.Commit, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(oid))
	if err != nil {
		return nil, &domain.NotFoundError{Kind: "commit", Name: oid}
	}
	return commit, nil
}

// TreeForRef returns the tree of the commit that ref resolves to
func (r *Repo) TreeForRef(ref string) (*object.Tree, error) {
	oid, err := r.ResolveRefOID(ref)
	if err != nil {
		return nil, err
	}
	commit, err := r.CommitObject(oid)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, domain.OpFailedf(err, "failed to read tree of %s", ref)
	}
	return tree, nil
}

// ChangedPaths lists the paths that differ between the trees of two
// revisions, sorted.
func (r *Repo) ChangedPaths(from, to string) ([]string, error) {
	fromTree, err := r.TreeForRef(from)
	if err != nil {
		return nil, err
	}
	toTree, err := r.TreeForRef(to)
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, domain.OpFailedf(err, "failed to diff %s..%s", from, to)
	}
	seen := make(map[string]struct{})
	for _, ch := range changes {
		if ch.From.Name != "" {
			seen[ch.From.Name] = struct{}{}
		}
		if ch.To.Name != "" {
			seen[ch.To.Name] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// AheadCount counts the commits on ref that are not reachable from base
func (r *Repo) AheadCount(ref, base string) (int, error) {
	baseOID, err := r.MergeBaseOID(ref, base)
	if err != nil {
		return 0, err
	}
	refOID, err := r.ResolveRefOID(ref)
	if err != nil {
		return 0, err
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: plumbing.NewHash(refOID)})
	if err != nil {
		return 0, domain.OpFailedf(err, "failed to walk history of %s", ref)
	}
	defer iter.Close()

	count := 0
	stop := errors.New("stop")
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Hash.String() == baseOID {
			return stop
		}
		count++
		return nil
	})
	if err != nil && err != stop {
		return 0, domain.OpFailedf(err, "failed to walk history of %s", ref)
	}
	return count, nil
}

// MergeBaseOID returns the best common ancestor of two revisions
func (r *Repo) MergeBaseOID(ours, theirs string) (string, error) {
	oursOID, err := r.ResolveRefOID(ours)
	if err != nil {
		return "", err
	}
	theirsOID, err := r.ResolveRefOID(theirs)
	if err != nil {
		return "", err
	}
	oursCommit, err := r.CommitObject(oursOID)
	if err != nil {
		return "", err
	}
	theirsCommit, err := r.CommitObject(theirsOID)
	if err != nil {
		return "", err
	}
	bases, err := oursCommit.MergeBase(theirsCommit)
	if err != nil {
		return "", domain.OpFailedf(err, "failed to compute merge base of %s and %s", ours, theirs)
	}
	if len(bases) == 0 {
		return "", &domain.OperationFailedError{Message: fmt.Sprintf("no merge base between %s and %s", ours, theirs)}
	}
	return bases[0].Hash.String(), nil
}
