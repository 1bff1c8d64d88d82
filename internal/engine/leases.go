package engine

import (
	"context"
	"time"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/id"
	"github.com/lherron/sv/internal/lease"
	"github.com/lherron/sv/internal/oplog"
)

// LeaseAcquireOptions configures lease acquire. Zero-valued fields fall
// back to the configured lease defaults.
type LeaseAcquireOptions struct {
	Pathspec     string
	Strength     string
	Note         string
	Intent       string
	TTL          time.Duration
	AllowOverlap bool
}

// LeaseAcquire claims a pathspec for the current actor
func (e *Engine) LeaseAcquire(ctx context.Context, opts LeaseAcquireOptions) (*domain.Lease, error) {
	if err := domain.ValidatePathspec(opts.Pathspec); err != nil {
		return nil, err
	}
	if opts.Strength == "" {
		opts.Strength = e.Config.Leases.Defaults.Strength
	}
	strength, err := domain.ValidateStrength(opts.Strength)
	if err != nil {
		return nil, err
	}
	if opts.Intent == "" {
		opts.Intent = e.Config.Leases.Defaults.Intent
	}
	ttl := domain.Duration(opts.TTL)
	if ttl == 0 {
		ttl = e.Config.Leases.Defaults.TTL
	}

	actor := e.Actor()
	now := e.Now()
	acquired := domain.Lease{
		ID:        id.NewLease(),
		Pathspec:  opts.Pathspec,
		Strength:  strength,
		Actor:     actor,
		Note:      opts.Note,
		Intent:    opts.Intent,
		TTL:       ttl,
		CreatedAt: now.UTC(),
	}

	err = lease.Update(ctx, e.Store, func(set *lease.Set) error {
		conflicts := set.CheckConflicts(opts.Pathspec, strength, actor, opts.AllowOverlap, e.Config.Leases.Compat, now)
		if len(conflicts) > 0 {
			return lease.ConflictError(opts.Pathspec, conflicts)
		}
		return set.Add(acquired)
	})
	if err != nil {
		return nil, err
	}

	rec := oplog.NewRecord(e.Now(), actor, "lease acquire")
	rec.Details = map[string]string{
		"lease":    acquired.ID,
		"pathspec": acquired.Pathspec,
		"strength": string(acquired.Strength),
	}
	rec.Inverse = &domain.Inverse{Kind: domain.InverseRemoveLease, LeaseID: acquired.ID}
	if err := e.Oplog.Append(rec); err != nil {
		return nil, err
	}
	return &acquired, nil
}

// LeaseRelease removes the lease with the given id
func (e *Engine) LeaseRelease(ctx context.Context, leaseID string) (*domain.Lease, error) {
	var removed *domain.Lease
	err := lease.Update(ctx, e.Store, func(set *lease.Set) error {
		var err error
		removed, err = set.Remove(leaseID)
		return err
	})
	if err != nil {
		return nil, err
	}

	rec := oplog.NewRecord(e.Now(), e.Actor(), "lease release")
	rec.Details = map[string]string{"lease": removed.ID, "pathspec": removed.Pathspec}
	rec.Inverse = &domain.Inverse{Kind: domain.InverseRestoreLease, Lease: removed}
	if err := e.Oplog.Append(rec); err != nil {
		return nil, err
	}
	return removed, nil
}

// LeaseList returns all leases; expired ones are included with their
// expiry visible to the caller.
func (e *Engine) LeaseList() ([]domain.Lease, error) {
	set, err := lease.Load(e.Store)
	if err != nil {
		return nil, err
	}
	return set.Leases, nil
}
