// Package lease implements the pathspec lease store and its conflict
// policy. Leases are advisory: they gate sv commands, not the underlying
// VCS.
package lease

import (
	"context"
	"time"

	"github.com/lherron/sv/internal/config"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/paths"
	"github.com/lherron/sv/internal/storage"
)

// Set is the persisted lease collection
type Set struct {
	Leases []domain.Lease `json:"leases"`
}

// Load reads the lease store. A missing file is an empty set.
func Load(store *storage.Store) (*Set, error) {
	var set Set
	if err := store.ReadJSON(store.LeasesFile(), &set); err != nil {
		if storage.IsNotFound(err) {
			return &Set{}, nil
		}
		return nil, err
	}
	return &set, nil
}

// Save writes the lease store atomically
func Save(store *storage.Store, set *Set) error {
	return store.WriteJSON(store.LeasesFile(), set)
}

// Update runs fn over the loaded set under the lease lock and persists
// the result when fn succeeds.
func Update(ctx context.Context, store *storage.Store, fn func(*Set) error) error {
	return store.WithLock(ctx, storage.LockLeases, func() error {
		set, err := Load(store)
		if err != nil {
			return err
		}
		if err := fn(set); err != nil {
			return err
		}
		return Save(store, set)
	})
}

// Add appends a lease. Lease ids are unique within a store.
func (s *Set) Add(l domain.Lease) error {
	for _, existing := range s.Leases {
		if existing.ID == l.ID {
			return domain.Invalidf("duplicate lease id: %s", l.ID)
		}
	}
	s.Leases = append(s.Leases, l)
	return nil
}

// Remove deletes the lease with the given id and returns it
func (s *Set) Remove(id string) (*domain.Lease, error) {
	for i, l := range s.Leases {
		if l.ID == id {
			removed := l
			s.Leases = append(s.Leases[:i], s.Leases[i+1:]...)
			return &removed, nil
		}
	}
	return nil, &domain.NotFoundError{Kind: "lease", Name: id}
}

// Find returns the lease with the given id
func (s *Set) Find(id string) *domain.Lease {
	for i := range s.Leases {
		if s.Leases[i].ID == id {
			return &s.Leases[i]
		}
	}
	return nil
}

// Active returns the leases that have not expired at now
func (s *Set) Active(now time.Time) []domain.Lease {
	var out []domain.Lease
	for _, l := range s.Leases {
		if !l.Expired(now) {
			out = append(out, l)
		}
	}
	return out
}

// MatchesPath reports whether the lease pathspec covers path, by glob or
// exact match.
func MatchesPath(l *domain.Lease, path string) bool {
	return l.Pathspec == path || paths.MatchGlob(l.Pathspec, path)
}

// Overlaps reports whether two leases can claim a common path
func Overlaps(a, b *domain.Lease) bool {
	return paths.Overlaps(a.Pathspec, b.Pathspec)
}

// CheckConflicts returns the existing leases that conflict with a
// request for pathspec at the given strength by the given actor.
//
// Per candidate lease E, in order:
//   - E is skipped if expired at now.
//   - E is skipped if held by the requesting actor (non-empty actor).
//   - Every E is skipped when the requester is ownerless: system-level
//     callers read through the lease table.
//   - E is skipped under allowOverlap when E is not exclusive and either
//     E is cooperative or the compat flag allows non-cooperative overlap;
//     a strong lease over another actor's strong lease additionally
//     requires require_flag_for_strong_overlap to be off.
//   - Otherwise E conflicts iff its pathspec overlaps the request.
func (s *Set) CheckConflicts(pathspec string, strength domain.LeaseStrength, actor string, allowOverlap bool, compat config.LeaseCompat, now time.Time) []domain.Lease {
	if actor == "" {
		return nil
	}
	var conflicts []domain.Lease
	for _, e := range s.Leases {
		if e.Expired(now) {
			continue
		}
		if e.Actor != "" && e.Actor == actor {
			continue
		}
		if allowOverlap && e.Strength != domain.LeaseStrengthExclusive {
			// Two strong leases from different actors may only overlap
			// when the compat gate is open and the flag was passed.
			strongPair := strength == domain.LeaseStrengthStrong && e.Strength == domain.LeaseStrengthStrong
			if e.Strength == domain.LeaseStrengthCooperative ||
				(compat.AllowOverlapCooperative && !(strongPair && compat.RequireFlagForStrongOverlap)) {
				continue
			}
		}
		if paths.Overlaps(e.Pathspec, pathspec) {
			conflicts = append(conflicts, e)
		}
	}
	return conflicts
}

// ConflictError converts the first conflict into the canonical error for
// a single-path operation.
func ConflictError(pathspec string, conflicts []domain.Lease) error {
	if len(conflicts) == 0 {
		return nil
	}
	first := conflicts[0]
	return &domain.LeaseConflictError{
		Path:     pathspec,
		Holder:   first.Actor,
		Strength: first.Strength,
	}
}
