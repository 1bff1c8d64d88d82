package engine

import (
	"context"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/lease"
	"github.com/lherron/sv/internal/oplog"
	"github.com/lherron/sv/internal/protect"
	"github.com/lherron/sv/internal/storage"
)

// CommitOptions configures the commit pipeline
type CommitOptions struct {
	Message string
	// Paths are staged before the policy checks when given
	Paths []string
	// AllowOverlap forwards the lease overlap flag
	AllowOverlap bool
}

// CommitResult reports a completed commit
type CommitResult struct {
	OID      string   `json:"oid"`
	Branch   string   `json:"branch"`
	Staged   []string `json:"staged"`
	Warnings []string `json:"warnings,omitempty"`
}

// Commit runs the guarded commit pipeline: stage, protect check, lease
// check, commit, journal. A policy block journals a failed record and
// leaves the repository untouched.
func (e *Engine) Commit(ctx context.Context, opts CommitOptions) (*CommitResult, error) {
	if opts.Message == "" {
		return nil, domain.Invalidf("commit message must not be empty")
	}
	actor := e.Actor()

	var result *CommitResult
	err := e.Store.WithLock(ctx, storage.LockCommit, func() error {
		if len(opts.Paths) > 0 {
			if err := e.Repo.StagePaths(opts.Paths); err != nil {
				return err
			}
		}
		staged, err := e.Repo.StagedPaths()
		if err != nil {
			return err
		}
		if len(staged) == 0 {
			return domain.Invalidf("nothing staged to commit")
		}

		warnings, err := e.checkProtect(actor, staged)
		if err != nil {
			return err
		}
		if err := e.checkLeases(actor, staged, opts.AllowOverlap); err != nil {
			return err
		}

		branch, err := e.Repo.HeadBranch()
		if err != nil {
			return err
		}
		oid, parent, err := e.Repo.Commit(opts.Message, actor, e.Now())
		if err != nil {
			// The commit itself began mutating; journal the failure.
			e.journalFailed(actor, "commit", err, map[string]string{"branch": branch})
			return err
		}

		rec := oplog.NewRecord(e.Now(), actor, "commit")
		rec.AffectedRefs = []string{branch}
		rec.Details = map[string]string{"commit": oid, "message": opts.Message}
		rec.Inverse = &domain.Inverse{
			Kind:      domain.InverseResetCommit,
			Branch:    branch,
			ParentOID: parent,
			Files:     staged,
		}
		if err := e.Oplog.Append(rec); err != nil {
			return err
		}
		result = &CommitResult{OID: oid, Branch: branch, Staged: staged, Warnings: warnings}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkProtect tests every staged path against the effective policy.
// The first blocked path aborts with a journaled failure.
func (e *Engine) checkProtect(actor string, staged []string) ([]string, error) {
	override, err := e.loadOverride()
	if err != nil {
		return nil, err
	}
	policy, err := protect.Compile(e.Config.Protect, override)
	if err != nil {
		return nil, err
	}
	var warnings []string
	for _, path := range staged {
		decision, pattern := policy.Decide(path)
		switch decision {
		case domain.ProtectBlocked:
			blockErr := &domain.ProtectedPathError{Path: path, Pattern: pattern}
			e.journalFailed(actor, "commit", blockErr, map[string]string{
				"path":    path,
				"pattern": pattern,
			})
			return nil, blockErr
		case domain.ProtectWarned:
			warnings = append(warnings, "protected path modified: "+path+" (pattern "+pattern+")")
		}
	}
	return warnings, nil
}

// checkLeases rejects the commit when a staged path is covered by a
// conflicting lease held by another actor.
func (e *Engine) checkLeases(actor string, staged []string, allowOverlap bool) error {
	set, err := lease.Load(e.Store)
	if err != nil {
		return err
	}
	now := e.Now()
	strength := domain.LeaseStrength(e.Config.Leases.Defaults.Strength)
	for _, path := range staged {
		conflicts := set.CheckConflicts(path, strength, actor, allowOverlap, e.Config.Leases.Compat, now)
		if len(conflicts) > 0 {
			conflictErr := lease.ConflictError(path, conflicts)
			e.journalFailed(actor, "commit", conflictErr, map[string]string{
				"path":   path,
				"holder": conflicts[0].Actor,
			})
			return conflictErr
		}
	}
	return nil
}
