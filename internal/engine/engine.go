// Package engine composes storage, git, leases, protect, the op log and
// the task store into the semantics of each sv command. Every mutating
// command follows the same pipeline: acquire locks, resolve config and
// actor, run policy checks, mutate through gitx, journal the op record
// with its inverse plan, release locks.
package engine

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lherron/sv/internal/config"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/gitx"
	"github.com/lherron/sv/internal/oplog"
	"github.com/lherron/sv/internal/storage"
	"github.com/lherron/sv/internal/tasks"
)

// Engine wires the coordination subsystems over one repository
type Engine struct {
	Repo   *gitx.Repo
	Store  *storage.Store
	Config *config.Config
	Tasks  *tasks.Store
	Oplog  *oplog.Log
	Logger *slog.Logger

	// ActorOverride wins over every other actor source when set (--as)
	ActorOverride string

	// Now is the clock; tests pin it
	Now func() time.Time
}

// Open opens the repository containing path and loads its configuration
func Open(path string, logger *slog.Logger) (*Engine, error) {
	repo, err := gitx.Open(path)
	if err != nil {
		return nil, err
	}
	return fromRepo(repo, logger), nil
}

// Init opens or creates the repository at path, lays out the reserved
// directories, writes a default config file when none exists, and
// journals the initialization.
func Init(path string, logger *slog.Logger) (*Engine, error) {
	repo, err := gitx.Open(path)
	if err == gitx.ErrNotRepository {
		repo, err = gitx.Init(path)
	}
	if err != nil {
		return nil, err
	}
	e := fromRepo(repo, logger)
	if err := e.Store.EnsureLayout(); err != nil {
		return nil, domain.OpFailedf(err, "failed to create sv layout")
	}
	cfgPath := filepath.Join(repo.Root(), config.FileName)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfgPath, []byte(defaultConfigFile), 0o644); err != nil {
			return nil, domain.OpFailedf(err, "failed to write %s", config.FileName)
		}
	}
	rec := oplog.NewRecord(e.Now(), e.Actor(), "init")
	if err := e.Oplog.Append(rec); err != nil {
		return nil, err
	}
	return e, nil
}

func fromRepo(repo *gitx.Repo, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg := config.Load(repo.Root())
	store := storage.New(repo.Root(), repo.GitDir(), logger)
	return &Engine{
		Repo:   repo,
		Store:  store,
		Config: cfg,
		Tasks:  tasks.NewStore(store, cfg.Tasks.SharedLog),
		Oplog:  oplog.New(store),
		Logger: logger,
		Now:    time.Now,
	}
}

const defaultConfigFile = `base = "main"

[actor]
default = "unknown"

[leases.defaults]
strength = "cooperative"

[leases.compat]
allow_overlap_cooperative = true
require_flag_for_strong_overlap = true

[protect]
mode = "guard"
paths = []

[tasks]
shared_log = ".sv/tasks.shared.jsonl"
`

// Actor resolves the acting principal: the --as override, then the
// environment, then the persisted actor file, then the configured
// default, then "unknown".
func (e *Engine) Actor() string {
	if e.ActorOverride != "" {
		return e.ActorOverride
	}
	if actor := config.EnvActor(); actor != "" {
		return actor
	}
	if data, err := os.ReadFile(e.Store.ActorFile()); err == nil {
		if actor := strings.TrimSpace(string(data)); actor != "" {
			return actor
		}
	}
	if actor := e.Config.Actor.Default; actor != "" {
		return actor
	}
	return "unknown"
}

// SetActor persists name as the repository-local actor
func (e *Engine) SetActor(name string) error {
	if err := domain.ValidateActorName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(e.Store.SVDir(), 0o755); err != nil {
		return domain.OpFailedf(err, "failed to create .sv")
	}
	prior := e.Actor()
	if err := os.WriteFile(e.Store.ActorFile(), []byte(name+"\n"), 0o644); err != nil {
		return domain.OpFailedf(err, "failed to write actor file")
	}
	rec := oplog.NewRecord(e.Now(), name, "actor set")
	rec.Details = map[string]string{"prior": prior, "actor": name}
	return e.Oplog.Append(rec)
}

// journalFailed writes a failed op record after a mutation (or a policy
// gate inside the commit pipeline) did not complete.
func (e *Engine) journalFailed(actor, command string, cause error, details map[string]string) {
	rec := oplog.NewRecord(e.Now(), actor, command)
	rec.Outcome = domain.OpOutcomeFailed
	rec.FailureReason = cause.Error()
	rec.Details = details
	if err := e.Oplog.Append(rec); err != nil {
		e.Logger.Warn("failed to journal failure", "command", command, "error", err)
	}
}
