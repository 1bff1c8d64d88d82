// Package oplog implements the append-only operation journal. Each
// record is one file named by its op id; the id's nanosecond prefix makes
// lexical directory order equal creation order, so appends need no lock.
package oplog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/id"
	"github.com/lherron/sv/internal/storage"
)

// Log is the journal rooted at the oplog directory
type Log struct {
	store *storage.Store
}

// New creates a Log over the given store
func New(store *storage.Store) *Log {
	return &Log{store: store}
}

// Filter selects records on read. Zero-value fields mean no filter;
// Since and Until are inclusive.
type Filter struct {
	Actor   string
	Command string // substring match
	Since   time.Time
	Until   time.Time
	Limit   int
}

// NewRecord builds a record shell with a fresh op id
func NewRecord(now time.Time, actor, command string) domain.OpRecord {
	return domain.OpRecord{
		OpID:      id.NewOp(now),
		Timestamp: now.UTC(),
		Actor:     actor,
		Command:   command,
		Outcome:   domain.OpOutcomeSuccess,
	}
}

// Append durably writes one record. Records are immutable; an id
// collision is rejected rather than overwritten.
func (l *Log) Append(rec domain.OpRecord) error {
	dir := l.store.OplogDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.OpFailedf(err, "failed to create oplog dir")
	}
	path := filepath.Join(dir, rec.OpID+".json")
	if _, err := os.Stat(path); err == nil {
		return &domain.OperationFailedError{Message: "op id collision: " + rec.OpID}
	}
	if err := l.store.WriteJSON(path, rec); err != nil {
		return domain.OpFailedf(err, "failed to append op record")
	}
	return nil
}

// Read scans the journal newest-first and returns records matching the
// filter. Limit truncates the result after filtering.
func (l *Log) Read(filter Filter) ([]domain.OpRecord, error) {
	names, err := l.recordNames()
	if err != nil {
		return nil, err
	}
	// Newest first: op ids sort ascending by creation time.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var out []domain.OpRecord
	for _, name := range names {
		rec, err := l.readOne(name)
		if err != nil {
			return nil, err
		}
		if !matches(rec, filter) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Latest returns the most recent record, or nil when the journal is empty
func (l *Log) Latest() (*domain.OpRecord, error) {
	recs, err := l.Read(Filter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Get returns the record with the given op id
func (l *Log) Get(opID string) (*domain.OpRecord, error) {
	if !id.IsOp(opID) {
		return nil, domain.Invalidf("malformed op id: %s", opID)
	}
	rec, err := l.readOne(opID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, &domain.NotFoundError{Kind: "op", Name: opID}
		}
		return nil, err
	}
	return &rec, nil
}

func (l *Log) recordNames() ([]string, error) {
	entries, err := os.ReadDir(l.store.OplogDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.OpFailedf(err, "failed to read oplog dir")
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	return names, nil
}

func (l *Log) readOne(opID string) (domain.OpRecord, error) {
	var rec domain.OpRecord
	path := filepath.Join(l.store.OplogDir(), opID+".json")
	if err := l.store.ReadJSON(path, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func matches(rec domain.OpRecord, f Filter) bool {
	if f.Actor != "" && rec.Actor != f.Actor {
		return false
	}
	if f.Command != "" && !strings.Contains(rec.Command, f.Command) {
		return false
	}
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.Timestamp.After(f.Until) {
		return false
	}
	return true
}
