package engine

import (
	"context"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/id"
	"github.com/lherron/sv/internal/lease"
	"github.com/lherron/sv/internal/oplog"
	"github.com/lherron/sv/internal/storage"
)

// UndoResult reports an applied undo
type UndoResult struct {
	UndoneOp string             `json:"undone_op"`
	Command  string             `json:"command"`
	Plan     domain.InverseKind `json:"plan"`
}

// Undo applies the inverse plan of the record named by opID, or of the
// latest record when opID is empty. Preconditions are verified before
// any mutation; a violated precondition fails the undo without touching
// state. The undo itself is journaled as a regular record.
func (e *Engine) Undo(ctx context.Context, opID string) (*UndoResult, error) {
	var rec *domain.OpRecord
	var err error
	if opID == "" {
		rec, err = e.Oplog.Latest()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, &domain.NotFoundError{Kind: "op", Name: "(latest)"}
		}
		// The latest record may itself be an undo or a failed command;
		// those are regular entries and are undone like any other.
	} else {
		rec, err = e.Oplog.Get(opID)
		if err != nil {
			return nil, err
		}
	}
	if rec.Inverse == nil {
		return nil, domain.Invalidf("op %s (%s) is not undoable", rec.OpID, rec.Command)
	}

	redo, err := e.applyInverse(ctx, rec)
	if err != nil {
		return nil, err
	}

	undoRec := oplog.NewRecord(e.Now(), e.Actor(), "undo")
	undoRec.AffectedRefs = rec.AffectedRefs
	undoRec.AffectedWorkspaces = rec.AffectedWorkspaces
	undoRec.Details = map[string]string{
		"undone_op":      rec.OpID,
		"undone_command": rec.Command,
	}
	undoRec.Inverse = redo
	if err := e.Oplog.Append(undoRec); err != nil {
		return nil, err
	}
	return &UndoResult{UndoneOp: rec.OpID, Command: rec.Command, Plan: rec.Inverse.Kind}, nil
}

// applyInverse verifies the plan's preconditions against current state,
// applies it, and returns the inverse of the inverse for the undo
// record (nil where re-undo is not representable).
func (e *Engine) applyInverse(ctx context.Context, rec *domain.OpRecord) (*domain.Inverse, error) {
	plan := rec.Inverse
	switch plan.Kind {
	case domain.InverseDeleteBranch:
		// Undoing a branch creation: the branch must still sit where
		// the original command left it.
		current, err := e.Repo.ResolveRefOID(plan.Branch)
		if err != nil {
			return nil, undoPrecondition("branch %s no longer exists", plan.Branch)
		}
		if recorded := rec.Details["oid"]; recorded != "" && recorded != current {
			return nil, undoPrecondition("branch %s moved since the op (now %s)", plan.Branch, current)
		}
		if err := e.Repo.DeleteBranch(plan.Branch); err != nil {
			return nil, err
		}
		if plan.WorkspaceRecord != nil {
			if err := e.dropWorkspaceRecord(ctx, plan.WorkspaceRecord.ID); err != nil {
				return nil, err
			}
		}
		return &domain.Inverse{
			Kind:            domain.InverseCreateBranch,
			Branch:          plan.Branch,
			PriorOID:        current,
			WorkspaceRecord: plan.WorkspaceRecord,
		}, nil

	case domain.InverseCreateBranch:
		if _, err := e.Repo.ResolveRefOID(plan.Branch); err == nil {
			return nil, undoPrecondition("branch %s already exists", plan.Branch)
		}
		if err := e.Repo.CreateBranchFromRef(plan.Branch, plan.PriorOID, false); err != nil {
			return nil, err
		}
		if plan.WorkspaceRecord != nil {
			if err := e.restoreWorkspaceRecord(ctx, *plan.WorkspaceRecord); err != nil {
				return nil, err
			}
		}
		return &domain.Inverse{
			Kind:            domain.InverseDeleteBranch,
			Branch:          plan.Branch,
			WorkspaceRecord: plan.WorkspaceRecord,
		}, nil

	case domain.InverseMoveBranch:
		current, err := e.Repo.ResolveRefOID(plan.Branch)
		if err != nil {
			return nil, undoPrecondition("branch %s no longer exists", plan.Branch)
		}
		if recorded := rec.Details["oid"]; recorded != "" && recorded != current {
			return nil, undoPrecondition("branch %s moved since the op (now %s)", plan.Branch, current)
		}
		if err := e.Repo.MoveBranchRef(plan.Branch, plan.PriorOID); err != nil {
			return nil, err
		}
		return &domain.Inverse{Kind: domain.InverseMoveBranch, Branch: plan.Branch, PriorOID: current}, nil

	case domain.InverseResetCommit:
		commitOID := rec.Details["commit"]
		current, err := e.Repo.ResolveRefOID(plan.Branch)
		if err != nil {
			return nil, undoPrecondition("branch %s no longer exists", plan.Branch)
		}
		if commitOID != "" && current != commitOID {
			return nil, undoPrecondition("branch %s no longer points at the commit (now %s)", plan.Branch, current)
		}
		if err := e.Repo.ResetBranchTo(plan.Branch, plan.ParentOID); err != nil {
			return nil, err
		}
		// The mixed reset unstaged the commit's files; restore the
		// pre-commit index.
		if err := e.Repo.StagePaths(plan.Files); err != nil {
			return nil, err
		}
		return &domain.Inverse{Kind: domain.InverseMoveBranch, Branch: plan.Branch, PriorOID: current}, nil

	case domain.InverseRemoveLease:
		var snapshot *domain.Lease
		err := lease.Update(ctx, e.Store, func(set *lease.Set) error {
			if set.Find(plan.LeaseID) == nil {
				return undoPrecondition("lease %s no longer exists", plan.LeaseID)
			}
			var err error
			snapshot, err = set.Remove(plan.LeaseID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &domain.Inverse{Kind: domain.InverseRestoreLease, Lease: snapshot}, nil

	case domain.InverseRestoreLease:
		if plan.Lease == nil {
			return nil, undoPrecondition("restore plan carries no lease snapshot")
		}
		err := lease.Update(ctx, e.Store, func(set *lease.Set) error {
			if set.Find(plan.Lease.ID) != nil {
				return undoPrecondition("lease %s already exists", plan.Lease.ID)
			}
			return set.Add(*plan.Lease)
		})
		if err != nil {
			return nil, err
		}
		return &domain.Inverse{Kind: domain.InverseRemoveLease, LeaseID: plan.Lease.ID}, nil

	case domain.InverseEnableProt:
		// Undoing protect off: the pattern must still be disabled.
		err := e.Store.WithLock(ctx, storage.LockProtect, func() error {
			override, err := e.loadOverride()
			if err != nil {
				return err
			}
			if !override.Disabled(plan.Pattern) {
				return undoPrecondition("pattern %s is no longer disabled", plan.Pattern)
			}
			kept := override.DisabledPatterns[:0]
			for _, p := range override.DisabledPatterns {
				if p != plan.Pattern {
					kept = append(kept, p)
				}
			}
			override.DisabledPatterns = kept
			return e.Store.WriteJSON(e.Store.ProtectOverrideFile(), override)
		})
		if err != nil {
			return nil, err
		}
		return &domain.Inverse{Kind: domain.InverseDisableProt, Pattern: plan.Pattern}, nil

	case domain.InverseDisableProt:
		err := e.Store.WithLock(ctx, storage.LockProtect, func() error {
			override, err := e.loadOverride()
			if err != nil {
				return err
			}
			if override.Disabled(plan.Pattern) {
				return undoPrecondition("pattern %s is already disabled", plan.Pattern)
			}
			override.DisabledPatterns = append(override.DisabledPatterns, plan.Pattern)
			return e.Store.WriteJSON(e.Store.ProtectOverrideFile(), override)
		})
		if err != nil {
			return nil, err
		}
		return &domain.Inverse{Kind: domain.InverseEnableProt, Pattern: plan.Pattern}, nil

	case domain.InverseAppendEvent:
		if plan.Event == nil {
			return nil, undoPrecondition("append plan carries no event")
		}
		comp := *plan.Event
		comp.EventID = id.NewEvent()
		comp.Timestamp = e.Now().UTC()
		if err := e.Tasks.Append(comp); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, domain.Invalidf("unknown inverse plan: %s", plan.Kind)
	}
}

func undoPrecondition(format string, args ...interface{}) error {
	return domain.OpFailedf(nil, "undo precondition violated: "+format, args...)
}

func (e *Engine) dropWorkspaceRecord(ctx context.Context, wsID string) error {
	return e.Store.WithLock(ctx, storage.LockWorkspc, func() error {
		reg, err := e.loadWorkspaces()
		if err != nil {
			return err
		}
		reg.remove(wsID)
		return e.saveWorkspaces(reg)
	})
}

func (e *Engine) restoreWorkspaceRecord(ctx context.Context, ws domain.Workspace) error {
	return e.Store.WithLock(ctx, storage.LockWorkspc, func() error {
		reg, err := e.loadWorkspaces()
		if err != nil {
			return err
		}
		if reg.find(ws.ID) == nil {
			reg.Workspaces = append(reg.Workspaces, ws)
		}
		return e.saveWorkspaces(reg)
	})
}
