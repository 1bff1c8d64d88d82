package engine

import (
	"os"
	"path/filepath"

	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/oplog"
)

const preCommitHook = `#!/bin/sh
# Installed by sv. Blocks commits that fail the risk scan.
exec sv risk --staged --quiet
`

// InstallHooks writes the pre-commit shim into the git hooks directory.
// Re-installing over an identical hook is a no-op; a foreign pre-commit
// hook is not overwritten.
func (e *Engine) InstallHooks() (installed bool, err error) {
	hookPath := filepath.Join(e.Store.HooksDir(), "pre-commit")
	if data, err := os.ReadFile(hookPath); err == nil {
		if string(data) == preCommitHook {
			return false, nil
		}
		return false, domain.Invalidf("a pre-commit hook already exists at %s", hookPath)
	}
	if err := os.MkdirAll(e.Store.HooksDir(), 0o755); err != nil {
		return false, domain.OpFailedf(err, "failed to create hooks directory")
	}
	if err := os.WriteFile(hookPath, []byte(preCommitHook), 0o755); err != nil {
		return false, domain.OpFailedf(err, "failed to write pre-commit hook")
	}

	rec := oplog.NewRecord(e.Now(), e.Actor(), "forge hooks install")
	rec.Details = map[string]string{"hook": "pre-commit"}
	if err := e.Oplog.Append(rec); err != nil {
		return false, err
	}
	return true, nil
}
