package engine

import (
	"github.com/lherron/sv/internal/lease"
)

// Status is the aggregate repository view
type Status struct {
	Branch       string `json:"branch"`
	Actor        string `json:"actor"`
	StagedPaths  int    `json:"staged_paths"`
	ActiveLeases int    `json:"active_leases"`
	TotalLeases  int    `json:"total_leases"`
	ProtectMode  string `json:"protect_mode"`
	Workspaces   int    `json:"workspaces"`
	OpenTasks    int    `json:"open_tasks"`
	ClosedTasks  int    `json:"closed_tasks"`
	Projects     int    `json:"projects"`
	LastOp       string `json:"last_op,omitempty"`
	LastCommand  string `json:"last_command,omitempty"`
}

// StatusReport assembles the aggregate view. Read-only, not journaled.
func (e *Engine) StatusReport() (*Status, error) {
	st := &Status{
		Actor:       e.Actor(),
		ProtectMode: e.Config.Protect.Mode,
	}

	// An unborn repository has no HEAD yet; status still renders.
	if branch, err := e.Repo.HeadBranch(); err == nil {
		st.Branch = branch
	}
	if staged, err := e.Repo.StagedPaths(); err == nil {
		st.StagedPaths = len(staged)
	}

	set, err := lease.Load(e.Store)
	if err != nil {
		return nil, err
	}
	st.TotalLeases = len(set.Leases)
	st.ActiveLeases = len(set.Active(e.Now()))

	reg, err := e.loadWorkspaces()
	if err != nil {
		return nil, err
	}
	st.Workspaces = len(reg.Workspaces)

	state, err := e.Tasks.TrackedState()
	if err != nil {
		return nil, err
	}
	for _, t := range state.Tasks {
		if t.Closed {
			st.ClosedTasks++
		} else {
			st.OpenTasks++
		}
	}
	st.Projects = len(state.Projects)

	last, err := e.Oplog.Latest()
	if err != nil {
		return nil, err
	}
	if last != nil {
		st.LastOp = last.OpID
		st.LastCommand = last.Command
	}
	return st, nil
}
