package domain

import (
	"time"
)

// LeaseStrength represents how strongly a lease claims its pathspec
type LeaseStrength string

const (
	LeaseStrengthCooperative LeaseStrength = "cooperative"
	LeaseStrengthStrong      LeaseStrength = "strong"
	LeaseStrengthExclusive   LeaseStrength = "exclusive"
)

// ProtectMode represents the enforcement mode for protected paths
type ProtectMode string

const (
	ProtectModeGuard ProtectMode = "guard"
	ProtectModeWarn  ProtectMode = "warn"
	ProtectModeOff   ProtectMode = "off"
)

// ProtectDecision is the outcome of testing a path against the protect policy
type ProtectDecision string

const (
	ProtectAllowed ProtectDecision = "allowed"
	ProtectWarned  ProtectDecision = "warned"
	ProtectBlocked ProtectDecision = "blocked"
)

// Lease is an advisory claim on a pathspec.
//
// TTL is interpreted against wall-clock time: a lease is expired once
// CreatedAt+TTL is strictly in the past. Expired leases are skipped by
// conflict checks but remain on disk until released.
type Lease struct {
	ID        string        `json:"id"`
	Pathspec  string        `json:"pathspec"`
	Strength  LeaseStrength `json:"strength"`
	Actor     string        `json:"actor,omitempty"`
	Note      string        `json:"note,omitempty"`
	Intent    string        `json:"intent,omitempty"`
	TTL       Duration      `json:"ttl,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Expired reports whether the lease TTL has elapsed at the given instant.
// Leases with no TTL never expire.
func (l *Lease) Expired(now time.Time) bool {
	if l.TTL == 0 {
		return false
	}
	return now.After(l.CreatedAt.Add(time.Duration(l.TTL)))
}

// ProtectOverride holds per-workspace exceptions to the protect policy
type ProtectOverride struct {
	DisabledPatterns []string `json:"disabled_patterns"`
}

// Disabled reports whether the given pattern is disabled by this override.
func (o *ProtectOverride) Disabled(pattern string) bool {
	for _, p := range o.DisabledPatterns {
		if p == pattern {
			return true
		}
	}
	return false
}

// OpOutcome represents whether a journaled command succeeded
type OpOutcome string

const (
	OpOutcomeSuccess OpOutcome = "success"
	OpOutcomeFailed  OpOutcome = "failed"
)

// OpRecord is one entry in the append-only operation journal.
// Records are immutable once written.
type OpRecord struct {
	OpID               string            `json:"op_id"`
	Timestamp          time.Time         `json:"timestamp"`
	Actor              string            `json:"actor,omitempty"`
	Command            string            `json:"command"`
	Outcome            OpOutcome         `json:"outcome"`
	FailureReason      string            `json:"failure_reason,omitempty"`
	AffectedRefs       []string          `json:"affected_refs,omitempty"`
	AffectedWorkspaces []string          `json:"affected_workspaces,omitempty"`
	Details            map[string]string `json:"details,omitempty"`
	Inverse            *Inverse          `json:"inverse,omitempty"`
}

// InverseKind discriminates the inverse-plan union
type InverseKind string

const (
	InverseDeleteBranch InverseKind = "delete_branch"
	InverseMoveBranch   InverseKind = "move_branch"
	InverseCreateBranch InverseKind = "create_branch"
	InverseResetCommit  InverseKind = "reset_commit"
	InverseRemoveLease  InverseKind = "remove_lease"
	InverseRestoreLease InverseKind = "restore_lease"
	InverseEnableProt   InverseKind = "protect_enable"
	InverseDisableProt  InverseKind = "protect_disable"
	InverseAppendEvent  InverseKind = "append_event"
)

// Inverse describes how to undo the command that produced its OpRecord.
// Exactly the fields relevant to Kind are populated.
type Inverse struct {
	Kind InverseKind `json:"kind"`

	// Branch fields (delete_branch, move_branch, create_branch, reset_commit)
	Branch    string `json:"branch,omitempty"`
	PriorOID  string `json:"prior_oid,omitempty"`
	ParentOID string `json:"parent_oid,omitempty"`

	// Files to re-stage after reset_commit
	Files []string `json:"files,omitempty"`

	// Lease fields
	LeaseID string `json:"lease_id,omitempty"`
	Lease   *Lease `json:"lease,omitempty"`

	// Protect fields
	Pattern string `json:"pattern,omitempty"`

	// Workspace registry entry to drop or restore alongside its branch
	WorkspaceRecord *Workspace `json:"workspace_record,omitempty"`

	// Compensating task event
	Event *TaskEvent `json:"event,omitempty"`
}

// EventType represents the type of a task event
type EventType string

const (
	EventTaskCreated        EventType = "TaskCreated"
	EventTaskClosed         EventType = "TaskClosed"
	EventTaskReopened       EventType = "TaskReopened"
	EventTaskAssigned       EventType = "TaskAssigned"
	EventTaskRelated        EventType = "TaskRelated"
	EventTaskProjectSet     EventType = "TaskProjectSet"
	EventTaskProjectCleared EventType = "TaskProjectCleared"
	EventProjectCreated     EventType = "ProjectCreated"
	EventProjectRenamed     EventType = "ProjectRenamed"
)

// TaskEvent is an immutable record in one of the task event logs.
// Task and project state is derived exclusively by folding events;
// no stored record is ever updated in place.
type TaskEvent struct {
	EventID             string    `json:"event_id"`
	EventType           EventType `json:"event_type"`
	TaskID              string    `json:"task_id,omitempty"`
	Actor               string    `json:"actor,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	Title               string    `json:"title,omitempty"`
	Assignee            string    `json:"assignee,omitempty"`
	RelatedTaskID       string    `json:"related_task_id,omitempty"`
	RelationDescription string    `json:"relation_description,omitempty"`
	ProjectID           string    `json:"project_id,omitempty"`
	ProjectName         string    `json:"project_name,omitempty"`
}

// Task is the folded view of one task
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Closed    bool      `json:"closed"`
	Assignee  string    `json:"assignee,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project is the folded view of one project. Legacy projects are tasks
// doubling as project anchors; they carry the anchor task's id.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Legacy    bool      `json:"legacy,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskRelation links two tasks
type TaskRelation struct {
	FromTaskID  string `json:"from_task_id"`
	ToTaskID    string `json:"to_task_id"`
	Description string `json:"description,omitempty"`
}

// Workspace is a named working area backed by a branch
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Branch    string    `json:"branch"`
	CreatedAt time.Time `json:"created_at"`
}
