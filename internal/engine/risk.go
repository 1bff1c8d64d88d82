package engine

import (
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/lease"
	"github.com/lherron/sv/internal/merge"
	"github.com/lherron/sv/internal/protect"
)

// RiskItem is one finding in a risk report
type RiskItem struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Pattern string `json:"pattern,omitempty"`
	LeaseID string `json:"lease,omitempty"`
	Holder  string `json:"holder,omitempty"`
	Other   string `json:"other,omitempty"`
}

const (
	RiskProtectBlocked = "protect_blocked"
	RiskProtectWarned  = "protect_warned"
	RiskLeaseConflict  = "lease_conflict"
	RiskLeaseOverlap   = "lease_overlap"
)

// RiskReport crosses staged paths with the protect policy and the lease
// table, and flags overlapping leases held by different actors.
type RiskReport struct {
	Branch string     `json:"branch"`
	Actor  string     `json:"actor"`
	Staged []string   `json:"staged"`
	Items  []RiskItem `json:"items"`
}

// Clean reports whether the risk scan found nothing
func (r *RiskReport) Clean() bool { return len(r.Items) == 0 }

// Risk runs the read-only pre-commit risk scan: every staged path is
// tested against the effective protect policy and against active leases
// held by other actors, and the lease table is scanned for overlapping
// claims between different actors. Nothing is journaled.
func (e *Engine) Risk() (*RiskReport, error) {
	actor := e.Actor()
	branch, err := e.Repo.HeadBranch()
	if err != nil {
		return nil, err
	}
	staged, err := e.Repo.StagedPaths()
	if err != nil {
		return nil, err
	}
	override, err := e.loadOverride()
	if err != nil {
		return nil, err
	}
	policy, err := protect.Compile(e.Config.Protect, override)
	if err != nil {
		return nil, err
	}
	set, err := lease.Load(e.Store)
	if err != nil {
		return nil, err
	}

	report := &RiskReport{Branch: branch, Actor: actor, Staged: staged}
	now := e.Now()
	active := set.Active(now)

	for _, path := range staged {
		decision, pattern := policy.Decide(path)
		switch decision {
		case domain.ProtectBlocked:
			report.Items = append(report.Items, RiskItem{Kind: RiskProtectBlocked, Path: path, Pattern: pattern})
		case domain.ProtectWarned:
			report.Items = append(report.Items, RiskItem{Kind: RiskProtectWarned, Path: path, Pattern: pattern})
		}
		for i := range active {
			l := &active[i]
			if l.Actor == actor || l.Actor == "" {
				continue
			}
			if lease.MatchesPath(l, path) {
				report.Items = append(report.Items, RiskItem{
					Kind:    RiskLeaseConflict,
					Path:    path,
					LeaseID: l.ID,
					Holder:  l.Actor,
				})
			}
		}
	}

	for i := range active {
		for j := i + 1; j < len(active); j++ {
			a, b := &active[i], &active[j]
			if a.Actor == b.Actor {
				continue
			}
			if lease.Overlaps(a, b) {
				report.Items = append(report.Items, RiskItem{
					Kind:    RiskLeaseOverlap,
					Path:    a.Pathspec,
					LeaseID: a.ID,
					Holder:  a.Actor,
					Other:   b.ID,
				})
			}
		}
	}
	return report, nil
}

// SimulateMerge dry-runs a three-way merge of ours and theirs. An empty
// base means compute the merge base. Read-only, not journaled.
func (e *Engine) SimulateMerge(ours, theirs, base string) (*merge.Simulation, error) {
	return merge.Simulate(e.Repo, ours, theirs, base)
}
