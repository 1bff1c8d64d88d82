package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lherron/sv/internal/domain"
)

func TestErrorEnvelope(t *testing.T) {
	env := ErrorEnvelope(&domain.ProtectedPathError{Path: "go.mod", Pattern: "go.mod"})
	if env.OK {
		t.Error("error envelope marked ok")
	}
	if env.Error.Code != domain.CodePolicyBlocked {
		t.Errorf("code = %s", env.Error.Code)
	}
	if env.Error.Details["path"] != "go.mod" {
		t.Errorf("details = %v", env.Error.Details)
	}
}

func TestRenderEnvelope(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatJSON})
	if err := r.RenderEnvelope(map[string]string{"branch": "main"}); err != nil {
		t.Fatalf("RenderEnvelope: %v", err)
	}
	var env struct {
		OK   bool              `json:"ok"`
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if !env.OK || env.Data["branch"] != "main" {
		t.Errorf("envelope = %+v", env)
	}
	// Non-porcelain output is indented.
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("output not indented")
	}
}

func TestRenderJSONPorcelain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatJSON, Porcelain: true})
	if err := r.RenderJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	if got := buf.String(); got != "{\"n\":1}\n" {
		t.Errorf("porcelain output = %q", got)
	}
}

func TestRenderNDJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatNDJSON})
	items := []interface{}{map[string]int{"n": 1}, map[string]int{"n": 2}}
	if err := r.RenderNDJSON(items); err != nil {
		t.Fatalf("RenderNDJSON: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	for _, line := range lines {
		var m map[string]int
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Errorf("line %q: %v", line, err)
		}
	}
}

func TestRenderKVAligned(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{})
	err := r.RenderKV([][2]string{
		{"branch", "main"},
		{"actor", "alice"},
	})
	if err != nil {
		t.Fatalf("RenderKV: %v", err)
	}
	want := "branch  main\nactor   alice\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestRenderTable(t *testing.T) {
	headers := []string{"ID", "NAME"}
	rows := [][]string{{"W-1", "alpha"}, {"W-2", "a-much-longer-name"}}

	var human bytes.Buffer
	r := NewRenderer(&human, Options{})
	if err := r.RenderTable(headers, rows); err != nil {
		t.Fatalf("RenderTable: %v", err)
	}
	lines := strings.Split(strings.TrimRight(human.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[1], "---") {
		t.Errorf("separator = %q", lines[1])
	}

	var porcelain bytes.Buffer
	r = NewRenderer(&porcelain, Options{Porcelain: true})
	if err := r.RenderTable(headers, rows); err != nil {
		t.Fatalf("RenderTable: %v", err)
	}
	if !strings.Contains(porcelain.String(), "W-1\talpha") {
		t.Errorf("porcelain = %q", porcelain.String())
	}

	var empty bytes.Buffer
	r = NewRenderer(&empty, Options{})
	if err := r.RenderTable(headers, nil); err != nil {
		t.Fatalf("RenderTable: %v", err)
	}
	if empty.Len() != 0 {
		t.Errorf("empty table produced output: %q", empty.String())
	}
}
