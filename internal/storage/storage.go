// Package storage owns all durable sv state outside of committed source.
// Tracked state lives under <root>/.sv, local-only state under the git
// control directory. Writes are atomic (tempfile + fsync + rename) and
// multi-step read/modify/write sections run under per-artifact advisory
// file locks.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lherron/sv/internal/domain"
)

// Store resolves and manipulates the reserved sv directories
type Store struct {
	root   string
	gitDir string
	logger *slog.Logger
}

// New creates a Store for the repository rooted at root with the given
// git control directory.
func New(root, gitDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{root: root, gitDir: gitDir, logger: logger}
}

// Root returns the repository root
func (s *Store) Root() string { return s.root }

// SVDir returns the tracked reserved directory
func (s *Store) SVDir() string { return filepath.Join(s.root, ".sv") }

// LocalDir returns the git-dir-local reserved directory
func (s *Store) LocalDir() string { return filepath.Join(s.gitDir, "sv") }

// ActorFile returns the path of the persisted actor name
func (s *Store) ActorFile() string { return filepath.Join(s.SVDir(), "actor") }

// ProtectOverrideFile returns the path of the per-workspace protect overrides
func (s *Store) ProtectOverrideFile() string {
	return filepath.Join(s.SVDir(), "protect-overrides.json")
}

// LeasesFile returns the path of the lease store. Leases coordinate
// actors sharing one working copy, so they are local-only.
func (s *Store) LeasesFile() string { return filepath.Join(s.LocalDir(), "leases.json") }

// WorkspacesFile returns the path of the workspace registry
func (s *Store) WorkspacesFile() string { return filepath.Join(s.SVDir(), "workspaces.json") }

// TrackedLog returns the path of the tracked task event log
func (s *Store) TrackedLog() string { return filepath.Join(s.SVDir(), "tasks.jsonl") }

// SharedLog resolves the repo-relative shared task event log path
func (s *Store) SharedLog(rel string) string { return filepath.Join(s.root, rel) }

// OplogDir returns the operation journal directory
func (s *Store) OplogDir() string { return filepath.Join(s.LocalDir(), "oplog") }

// HooksDir returns the git hooks directory
func (s *Store) HooksDir() string { return filepath.Join(s.gitDir, "hooks") }

func (s *Store) lockDir() string { return filepath.Join(s.LocalDir(), "locks") }

// EnsureLayout creates the reserved directories
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.SVDir(), s.LocalDir(), s.OplogDir(), s.lockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// IsNotFound reports whether err is a missing-file read error
func IsNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// ReadJSON reads and decodes a JSON file into v
func (s *Store) ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &domain.CorruptError{Path: path, Err: err}
	}
	return nil
}

// WriteJSON atomically replaces path with the JSON encoding of v.
// The temp file is created in the same directory so the rename cannot
// cross filesystems.
func (s *Store) WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return s.writeAtomic(path, data)
}

func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// AppendJSONL appends one JSON-encoded record plus a line terminator.
// The append is flushed before return; concurrent appenders rely on
// O_APPEND write atomicity for line-sized records. The first write
// creates the file with O_EXCL so two racing creators cannot both
// believe they made it; the loser reopens for plain append.
func (s *Store) AppendJSONL(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	f, err := openAppend(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}
	f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if errors.Is(err, os.ErrExist) {
		// Another appender created it between the two opens.
		return os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	}
	return f, err
}

// maxLineBytes bounds a single JSONL record. Records are single-line
// JSON objects; anything larger is treated as corruption rather than
// silently truncated.
const maxLineBytes = 4 * 1024 * 1024

// ReadJSONL parses a JSON-lines file. Blank lines are skipped; the first
// malformed line fails the whole read with a CorruptError. A missing
// file yields an empty slice.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &domain.CorruptError{Path: path, Line: line, Err: err}
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &domain.CorruptError{Path: path, Line: line + 1, Err: err}
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return out, nil
}

// WriteJSONL atomically replaces path with one record per line
func (s *Store) WriteJSONL(path string, records []interface{}) error {
	var buf []byte
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}
	return s.writeAtomic(path, buf)
}
