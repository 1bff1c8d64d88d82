package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/lease"
	"github.com/lherron/sv/internal/paths"
	"github.com/lherron/sv/internal/protect"
	"github.com/lherron/sv/internal/selectors"
)

// Select parses and evaluates a selector expression against the live
// repository: registered workspaces, the lease store, and local
// branches. Read-only, not journaled.
func (e *Engine) Select(expr string) ([]selectors.Match, error) {
	parsed, err := selectors.Parse(expr)
	if err != nil {
		return nil, domain.Invalidf("%v", err)
	}
	universe, matcher, err := e.selectorContext()
	if err != nil {
		return nil, err
	}
	return selectors.Eval(parsed, universe, matcher), nil
}

// selectorContext builds the candidate universe and a matcher closed
// over a snapshot of the live state.
func (e *Engine) selectorContext() (selectors.Universe, selectors.Matcher, error) {
	reg, err := e.loadWorkspaces()
	if err != nil {
		return nil, nil, err
	}
	set, err := lease.Load(e.Store)
	if err != nil {
		return nil, nil, err
	}
	branches, err := e.Repo.ListBranches("")
	if err != nil {
		return nil, nil, err
	}
	override, err := e.loadOverride()
	if err != nil {
		return nil, nil, err
	}
	policy, err := protect.Compile(e.Config.Protect, override)
	if err != nil {
		return nil, nil, err
	}

	universe := selectors.Universe{}
	branchOf := make(map[string]string)
	for _, ws := range reg.Workspaces {
		universe[selectors.KindWorkspace] = append(universe[selectors.KindWorkspace], selectors.Item{ID: ws.ID, Name: ws.Name})
		branchOf[ws.ID] = ws.Branch
	}
	leaseOf := make(map[string]*domain.Lease)
	for i := range set.Leases {
		l := &set.Leases[i]
		universe[selectors.KindLease] = append(universe[selectors.KindLease], selectors.Item{ID: l.ID, Name: l.Pathspec})
		leaseOf[l.ID] = l
	}
	for _, name := range branches {
		universe[selectors.KindBranch] = append(universe[selectors.KindBranch], selectors.Item{ID: name, Name: name})
	}

	snap := &selectorSnapshot{
		engine:   e,
		now:      e.Now(),
		base:     e.Config.Base,
		policy:   policy,
		branchOf: branchOf,
		leaseOf:  leaseOf,
		changed:  make(map[string][]string),
		ahead:    make(map[string]int),
	}
	return universe, snap.match, nil
}

type selectorSnapshot struct {
	engine   *Engine
	now      time.Time
	base     string
	policy   *protect.Policy
	branchOf map[string]string
	leaseOf  map[string]*domain.Lease

	// per-branch memos, filled on first use
	changed map[string][]string
	ahead   map[string]int
}

func (s *selectorSnapshot) branchFor(kind selectors.Kind, item selectors.Item) string {
	if kind == selectors.KindWorkspace {
		return s.branchOf[item.ID]
	}
	if kind == selectors.KindBranch {
		return item.ID
	}
	return ""
}

// changedPaths diffs the branch against the base, memoized. A branch
// that cannot be diffed (unborn base, missing ref) yields no paths.
func (s *selectorSnapshot) changedPaths(branch string) []string {
	if paths, ok := s.changed[branch]; ok {
		return paths
	}
	paths, err := s.engine.Repo.ChangedPaths(s.base, branch)
	if err != nil {
		paths = nil
	}
	s.changed[branch] = paths
	return paths
}

func (s *selectorSnapshot) aheadCount(branch string) int {
	if n, ok := s.ahead[branch]; ok {
		return n
	}
	n, err := s.engine.Repo.AheadCount(branch, s.base)
	if err != nil {
		n = 0
	}
	s.ahead[branch] = n
	return n
}

// match implements the selector predicates over live state:
//
//	active      lease not expired; ws/branch ahead of the base
//	stale       the complement of active within the kind
//	blocked     lease pathspec, or any changed path, hits a Blocked
//	            protect pattern
//	ahead:N     ws/branch at least N commits ahead of the base
//	touching:P  lease pathspec covers P; ws/branch changed P
//	overlaps:P  lease pathspec overlaps P; ws/branch changed a path
//	            overlapping P
//	name~"lit"  substring match on the item name
func (s *selectorSnapshot) match(kind selectors.Kind, item selectors.Item, pred selectors.Predicate) bool {
	switch pred.Name {
	case "active":
		if kind == selectors.KindLease {
			l := s.leaseOf[item.ID]
			return l != nil && !l.Expired(s.now)
		}
		return s.aheadCount(s.branchFor(kind, item)) > 0

	case "stale":
		if kind == selectors.KindLease {
			l := s.leaseOf[item.ID]
			return l != nil && l.Expired(s.now)
		}
		return s.aheadCount(s.branchFor(kind, item)) == 0

	case "blocked":
		if kind == selectors.KindLease {
			l := s.leaseOf[item.ID]
			if l == nil {
				return false
			}
			decision, _ := s.policy.Decide(l.Pathspec)
			return decision == domain.ProtectBlocked
		}
		for _, p := range s.changedPaths(s.branchFor(kind, item)) {
			if decision, _ := s.policy.Decide(p); decision == domain.ProtectBlocked {
				return true
			}
		}
		return false

	case "ahead":
		if kind == selectors.KindLease {
			return false
		}
		n, err := strconv.Atoi(pred.Arg)
		if err != nil {
			return false
		}
		return s.aheadCount(s.branchFor(kind, item)) >= n

	case "touching":
		if kind == selectors.KindLease {
			l := s.leaseOf[item.ID]
			return l != nil && lease.MatchesPath(l, pred.Arg)
		}
		for _, p := range s.changedPaths(s.branchFor(kind, item)) {
			if p == pred.Arg || paths.MatchGlob(pred.Arg, p) {
				return true
			}
		}
		return false

	case "overlaps":
		if kind == selectors.KindLease {
			l := s.leaseOf[item.ID]
			return l != nil && paths.Overlaps(l.Pathspec, pred.Arg)
		}
		for _, p := range s.changedPaths(s.branchFor(kind, item)) {
			if paths.Overlaps(p, pred.Arg) {
				return true
			}
		}
		return false

	case "name~":
		return strings.Contains(item.Name, pred.Arg)

	default:
		return false
	}
}
