// Package protect compiles the protected-path pattern set and decides
// whether a changed path is allowed, warned, or blocked.
package protect

import (
	"github.com/gobwas/glob"

	"github.com/lherron/sv/internal/config"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/paths"
)

type compiledPattern struct {
	source  string
	matcher glob.Glob
}

// Policy is a compiled protect pattern set under one enforcement mode
type Policy struct {
	mode     domain.ProtectMode
	patterns []compiledPattern
}

// Compile builds the effective policy from the configured patterns minus
// the workspace's disabled patterns.
func Compile(cfg config.ProtectConfig, override domain.ProtectOverride) (*Policy, error) {
	mode, err := domain.ValidateProtectMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	p := &Policy{mode: mode}
	for _, pattern := range cfg.Paths {
		if override.Disabled(pattern) {
			continue
		}
		matcher, err := paths.Compile(pattern)
		if err != nil {
			return nil, domain.Invalidf("invalid protect pattern %q: %v", pattern, err)
		}
		p.patterns = append(p.patterns, compiledPattern{source: pattern, matcher: matcher})
	}
	return p, nil
}

// Mode returns the enforcement mode the policy was compiled with
func (p *Policy) Mode() domain.ProtectMode { return p.mode }

// Patterns returns the effective pattern sources
func (p *Policy) Patterns() []string {
	out := make([]string, 0, len(p.patterns))
	for _, cp := range p.patterns {
		out = append(out, cp.source)
	}
	return out
}

// Decide tests a changed path against the policy. The matched pattern is
// returned for warned and blocked decisions.
func (p *Policy) Decide(path string) (domain.ProtectDecision, string) {
	if p.mode == domain.ProtectModeOff {
		return domain.ProtectAllowed, ""
	}
	for _, cp := range p.patterns {
		if cp.matcher.Match(path) {
			if p.mode == domain.ProtectModeWarn {
				return domain.ProtectWarned, cp.source
			}
			return domain.ProtectBlocked, cp.source
		}
	}
	return domain.ProtectAllowed, ""
}
