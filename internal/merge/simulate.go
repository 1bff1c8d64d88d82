// Package merge implements the dry-run three-way merge. It classifies
// tree-level divergence between two revisions against their merge base
// and reports structured conflicts without touching refs, index, or
// worktree.
package merge

import (
	"context"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/gitx"
)

// ConflictKind classifies a merge conflict
type ConflictKind string

const (
	ConflictContent      ConflictKind = "content"
	ConflictAddAdd       ConflictKind = "add_add"
	ConflictDeleteModify ConflictKind = "delete_modify"
	ConflictModifyDelete ConflictKind = "modify_delete"
	ConflictRenameRename ConflictKind = "rename_rename"
)

// Conflict is one entry a real merge would refuse to auto-resolve
type Conflict struct {
	Path   string       `json:"path"`
	Kind   ConflictKind `json:"kind"`
	Detail string       `json:"detail,omitempty"`
}

// Simulation is the result of a dry-run merge
type Simulation struct {
	Ours      string     `json:"ours"`
	Theirs    string     `json:"theirs"`
	Base      string     `json:"base"`
	Conflicts []Conflict `json:"conflicts"`
}

// Clean reports whether the merge would complete without conflicts
func (s *Simulation) Clean() bool { return len(s.Conflicts) == 0 }

// maxDetailLines bounds the diff excerpt attached to content conflicts
const maxDetailLines = 40

// sideChange is one side's change to a path relative to the base
type sideChange struct {
	action   merkletrie.Action
	fromPath string
	toPath   string
	hash     string // resulting blob hash; zero for deletes
}

// Simulate performs an in-memory three-way merge of ours and theirs.
// When base is empty the merge base of the two revisions is used.
func Simulate(repo *gitx.Repo, ours, theirs, base string) (*Simulation, error) {
	if base == "" {
		var err error
		base, err = repo.MergeBaseOID(ours, theirs)
		if err != nil {
			return nil, err
		}
	}

	baseTree, err := repo.TreeForRef(base)
	if err != nil {
		return nil, err
	}
	oursTree, err := repo.TreeForRef(ours)
	if err != nil {
		return nil, err
	}
	theirsTree, err := repo.TreeForRef(theirs)
	if err != nil {
		return nil, err
	}

	oursChanges, err := sideChanges(baseTree, oursTree)
	if err != nil {
		return nil, err
	}
	theirsChanges, err := sideChanges(baseTree, theirsTree)
	if err != nil {
		return nil, err
	}

	sim := &Simulation{Ours: ours, Theirs: theirs, Base: base}
	for path, oc := range oursChanges {
		tc, ok := theirsChanges[path]
		if !ok {
			continue
		}
		if conflict := classify(path, oc, tc, oursTree, theirsTree); conflict != nil {
			sim.Conflicts = append(sim.Conflicts, *conflict)
		}
	}
	sortConflicts(sim.Conflicts)
	return sim, nil
}

// sideChanges diffs base against one side, keyed by the base-relative
// path (the original path for renames and deletes, the new path for
// inserts).
func sideChanges(base, side *object.Tree) (map[string]sideChange, error) {
	changes, err := object.DiffTreeWithOptions(context.Background(), base, side,
		&object.DiffTreeOptions{DetectRenames: true})
	if err != nil {
		return nil, domain.OpFailedf(err, "failed to diff trees")
	}
	out := make(map[string]sideChange, len(changes))
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, domain.OpFailedf(err, "failed to classify change")
		}
		sc := sideChange{action: action}
		switch action {
		case merkletrie.Insert:
			sc.fromPath = change.To.Name
			sc.toPath = change.To.Name
			sc.hash = change.To.TreeEntry.Hash.String()
		case merkletrie.Delete:
			sc.fromPath = change.From.Name
		case merkletrie.Modify:
			sc.fromPath = change.From.Name
			sc.toPath = change.To.Name
			sc.hash = change.To.TreeEntry.Hash.String()
		}
		out[sc.fromPath] = sc
	}
	return out, nil
}

// classify decides whether both sides changing the same base path is a
// conflict. Identical results on both sides merge cleanly.
func classify(path string, ours, theirs sideChange, oursTree, theirsTree *object.Tree) *Conflict {
	switch {
	case ours.action == merkletrie.Insert && theirs.action == merkletrie.Insert:
		if ours.hash == theirs.hash {
			return nil
		}
		return &Conflict{Path: path, Kind: ConflictAddAdd}
	case ours.action == merkletrie.Delete && theirs.action == merkletrie.Delete:
		return nil
	case ours.action == merkletrie.Delete:
		return &Conflict{Path: path, Kind: ConflictDeleteModify}
	case theirs.action == merkletrie.Delete:
		return &Conflict{Path: path, Kind: ConflictModifyDelete}
	default:
		// Both sides modified (possibly renaming) the base path.
		if ours.toPath != theirs.toPath {
			return &Conflict{Path: path, Kind: ConflictRenameRename,
				Detail: ours.toPath + " vs " + theirs.toPath}
		}
		if ours.hash == theirs.hash {
			return nil
		}
		return &Conflict{Path: path, Kind: ConflictContent,
			Detail: contentDetail(ours.toPath, oursTree, theirsTree)}
	}
}

// contentDetail renders a bounded unified diff between the two sides'
// versions of the conflicting file.
func contentDetail(path string, oursTree, theirsTree *object.Tree) string {
	oursText := fileContents(oursTree, path)
	theirsText := fileContents(theirsTree, path)
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oursText),
		B:        difflib.SplitLines(theirsText),
		FromFile: "ours/" + path,
		ToFile:   "theirs/" + path,
		Context:  2,
	})
	if err != nil {
		return ""
	}
	lines := strings.SplitAfter(diff, "\n")
	if len(lines) > maxDetailLines {
		lines = append(lines[:maxDetailLines], "...\n")
	}
	return strings.Join(lines, "")
}

func fileContents(tree *object.Tree, path string) string {
	file, err := tree.File(path)
	if err != nil {
		return ""
	}
	contents, err := file.Contents()
	if err != nil {
		return ""
	}
	return contents
}

func sortConflicts(conflicts []Conflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Path < conflicts[j].Path
	})
}
