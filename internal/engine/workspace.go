package engine

import (
	"context"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/id"
	"github.com/lherron/sv/internal/oplog"
	"github.com/lherron/sv/internal/storage"
)

type workspaceRegistry struct {
	Workspaces []domain.Workspace `json:"workspaces"`
}

func (e *Engine) loadWorkspaces() (*workspaceRegistry, error) {
	var reg workspaceRegistry
	if err := e.Store.ReadJSON(e.Store.WorkspacesFile(), &reg); err != nil {
		if storage.IsNotFound(err) {
			return &workspaceRegistry{}, nil
		}
		return nil, err
	}
	return &reg, nil
}

func (e *Engine) saveWorkspaces(reg *workspaceRegistry) error {
	return e.Store.WriteJSON(e.Store.WorkspacesFile(), reg)
}

func (reg *workspaceRegistry) find(nameOrID string) *domain.Workspace {
	for i := range reg.Workspaces {
		ws := &reg.Workspaces[i]
		if ws.ID == nameOrID || ws.Name == nameOrID {
			return ws
		}
	}
	return nil
}

func (reg *workspaceRegistry) remove(wsID string) {
	kept := reg.Workspaces[:0]
	for _, ws := range reg.Workspaces {
		if ws.ID != wsID {
			kept = append(kept, ws)
		}
	}
	reg.Workspaces = kept
}

// WorkspaceNew creates a workspace backed by a branch off the base
func (e *Engine) WorkspaceNew(ctx context.Context, name string) (*domain.Workspace, error) {
	if name == "" {
		return nil, domain.Invalidf("workspace name must not be empty")
	}
	ws := domain.Workspace{
		ID:        id.NewWorkspace(),
		Name:      name,
		Branch:    name,
		CreatedAt: e.Now().UTC(),
	}

	err := e.Store.WithLock(ctx, storage.LockWorkspc, func() error {
		reg, err := e.loadWorkspaces()
		if err != nil {
			return err
		}
		if reg.find(name) != nil {
			return domain.Invalidf("workspace already exists: %s", name)
		}
		if err := e.Repo.CreateBranchFromRef(ws.Branch, e.Config.Base, false); err != nil {
			return err
		}
		reg.Workspaces = append(reg.Workspaces, ws)
		return e.saveWorkspaces(reg)
	})
	if err != nil {
		return nil, err
	}

	oid, _ := e.Repo.ResolveRefOID(ws.Branch)
	rec := oplog.NewRecord(e.Now(), e.Actor(), "ws new")
	rec.AffectedRefs = []string{ws.Branch}
	rec.AffectedWorkspaces = []string{ws.ID}
	rec.Details = map[string]string{"workspace": ws.ID, "name": ws.Name, "oid": oid}
	rec.Inverse = &domain.Inverse{
		Kind:            domain.InverseDeleteBranch,
		Branch:          ws.Branch,
		WorkspaceRecord: &ws,
	}
	if err := e.Oplog.Append(rec); err != nil {
		return nil, err
	}
	return &ws, nil
}

// WorkspaceRemove deletes a workspace and its branch
func (e *Engine) WorkspaceRemove(ctx context.Context, nameOrID string) (*domain.Workspace, error) {
	var removed domain.Workspace
	var priorOID string

	err := e.Store.WithLock(ctx, storage.LockWorkspc, func() error {
		reg, err := e.loadWorkspaces()
		if err != nil {
			return err
		}
		ws := reg.find(nameOrID)
		if ws == nil {
			return &domain.NotFoundError{Kind: "workspace", Name: nameOrID}
		}
		removed = *ws
		priorOID, err = e.Repo.ResolveRefOID(ws.Branch)
		if err != nil {
			return err
		}
		if err := e.Repo.DeleteBranch(ws.Branch); err != nil {
			return err
		}
		reg.remove(ws.ID)
		return e.saveWorkspaces(reg)
	})
	if err != nil {
		return nil, err
	}

	rec := oplog.NewRecord(e.Now(), e.Actor(), "ws rm")
	rec.AffectedRefs = []string{removed.Branch}
	rec.AffectedWorkspaces = []string{removed.ID}
	rec.Details = map[string]string{"workspace": removed.ID, "prior_oid": priorOID}
	rec.Inverse = &domain.Inverse{
		Kind:            domain.InverseCreateBranch,
		Branch:          removed.Branch,
		PriorOID:        priorOID,
		WorkspaceRecord: &removed,
	}
	if err := e.Oplog.Append(rec); err != nil {
		return nil, err
	}
	return &removed, nil
}

// WorkspaceSwitch checks out the workspace's branch
func (e *Engine) WorkspaceSwitch(ctx context.Context, nameOrID string) (*domain.Workspace, error) {
	reg, err := e.loadWorkspaces()
	if err != nil {
		return nil, err
	}
	ws := reg.find(nameOrID)
	if ws == nil {
		return nil, &domain.NotFoundError{Kind: "workspace", Name: nameOrID}
	}
	prior, _ := e.Repo.HeadBranch()
	if err := e.Repo.Checkout(ws.Branch); err != nil {
		return nil, err
	}

	rec := oplog.NewRecord(e.Now(), e.Actor(), "ws switch")
	rec.AffectedWorkspaces = []string{ws.ID}
	rec.Details = map[string]string{"workspace": ws.ID, "prior_branch": prior}
	if err := e.Oplog.Append(rec); err != nil {
		return nil, err
	}
	return ws, nil
}

// WorkspaceList returns the registered workspaces
func (e *Engine) WorkspaceList() ([]domain.Workspace, error) {
	reg, err := e.loadWorkspaces()
	if err != nil {
		return nil, err
	}
	return reg.Workspaces, nil
}
