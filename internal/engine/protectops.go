package engine

import (
	"context"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/oplog"
	"github.com/lherron/sv/internal/storage"
)

// loadOverride reads the workspace's protect override; missing file is
// an empty override.
func (e *Engine) loadOverride() (domain.ProtectOverride, error) {
	var override domain.ProtectOverride
	if err := e.Store.ReadJSON(e.Store.ProtectOverrideFile(), &override); err != nil {
		if storage.IsNotFound(err) {
			return domain.ProtectOverride{}, nil
		}
		return domain.ProtectOverride{}, err
	}
	return override, nil
}

// ProtectOff disables a configured protect pattern for this workspace
func (e *Engine) ProtectOff(ctx context.Context, pattern string) error {
	if pattern == "" {
		return domain.Invalidf("pattern must not be empty")
	}
	err := e.Store.WithLock(ctx, storage.LockProtect, func() error {
		override, err := e.loadOverride()
		if err != nil {
			return err
		}
		if override.Disabled(pattern) {
			return domain.Invalidf("pattern already disabled: %s", pattern)
		}
		override.DisabledPatterns = append(override.DisabledPatterns, pattern)
		return e.Store.WriteJSON(e.Store.ProtectOverrideFile(), override)
	})
	if err != nil {
		return err
	}

	rec := oplog.NewRecord(e.Now(), e.Actor(), "protect off")
	rec.Details = map[string]string{"pattern": pattern}
	rec.Inverse = &domain.Inverse{Kind: domain.InverseEnableProt, Pattern: pattern}
	return e.Oplog.Append(rec)
}

// ProtectOn re-enables a previously disabled pattern
func (e *Engine) ProtectOn(ctx context.Context, pattern string) error {
	if pattern == "" {
		return domain.Invalidf("pattern must not be empty")
	}
	err := e.Store.WithLock(ctx, storage.LockProtect, func() error {
		override, err := e.loadOverride()
		if err != nil {
			return err
		}
		if !override.Disabled(pattern) {
			return &domain.NotFoundError{Kind: "override", Name: pattern}
		}
		kept := override.DisabledPatterns[:0]
		for _, p := range override.DisabledPatterns {
			if p != pattern {
				kept = append(kept, p)
			}
		}
		override.DisabledPatterns = kept
		return e.Store.WriteJSON(e.Store.ProtectOverrideFile(), override)
	})
	if err != nil {
		return err
	}

	rec := oplog.NewRecord(e.Now(), e.Actor(), "protect on")
	rec.Details = map[string]string{"pattern": pattern}
	rec.Inverse = &domain.Inverse{Kind: domain.InverseDisableProt, Pattern: pattern}
	return e.Oplog.Append(rec)
}
