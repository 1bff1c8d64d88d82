package protect

import (
	"testing"

	"github.com/lherron/sv/internal/config"
	"github.com/lherron/sv/internal/domain"
)

func compile(t *testing.T, mode string, patterns []string, disabled ...string) *Policy {
	t.Helper()
	p, err := Compile(
		config.ProtectConfig{Mode: mode, Paths: patterns},
		domain.ProtectOverride{DisabledPatterns: disabled},
	)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return p
}

func TestDecideModes(t *testing.T) {
	patterns := []string{"infra/**", "go.mod"}
	tests := []struct {
		mode string
		path string
		want domain.ProtectDecision
	}{
		{"guard", "infra/prod.tf", domain.ProtectBlocked},
		{"guard", "go.mod", domain.ProtectBlocked},
		{"guard", "src/main.go", domain.ProtectAllowed},
		{"warn", "infra/prod.tf", domain.ProtectWarned},
		{"warn", "src/main.go", domain.ProtectAllowed},
		{"off", "infra/prod.tf", domain.ProtectAllowed},
		{"off", "go.mod", domain.ProtectAllowed},
	}
	for _, tt := range tests {
		p := compile(t, tt.mode, patterns)
		got, _ := p.Decide(tt.path)
		if got != tt.want {
			t.Errorf("mode %s, path %s: decision = %s, want %s", tt.mode, tt.path, got, tt.want)
		}
	}
}

func TestDecideReportsPattern(t *testing.T) {
	p := compile(t, "guard", []string{"infra/**", "docs/*.md"})
	decision, pattern := p.Decide("docs/intro.md")
	if decision != domain.ProtectBlocked || pattern != "docs/*.md" {
		t.Errorf("Decide = %s %q", decision, pattern)
	}
}

func TestDisabledPatternSkipped(t *testing.T) {
	p := compile(t, "guard", []string{"infra/**", "go.mod"}, "infra/**")
	if got, _ := p.Decide("infra/prod.tf"); got != domain.ProtectAllowed {
		t.Errorf("disabled pattern still enforced: %s", got)
	}
	if got, _ := p.Decide("go.mod"); got != domain.ProtectBlocked {
		t.Errorf("other pattern not enforced: %s", got)
	}
	if len(p.Patterns()) != 1 {
		t.Errorf("effective patterns = %v", p.Patterns())
	}
}

func TestCompileRejectsBadInput(t *testing.T) {
	if _, err := Compile(config.ProtectConfig{Mode: "nonsense"}, domain.ProtectOverride{}); err == nil {
		t.Error("invalid mode accepted")
	}
	if _, err := Compile(config.ProtectConfig{Mode: "guard", Paths: []string{"[unclosed"}}, domain.ProtectOverride{}); err == nil {
		t.Error("invalid pattern accepted")
	}
}
