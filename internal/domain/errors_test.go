package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorCodeAndExit(t *testing.T) {
	tests := []struct {
		err  error
		code string
		exit int
	}{
		{&NotFoundError{Kind: "task", Name: "T-1"}, CodeNotFound, ExitUserError},
		{Invalidf("bad flag"), CodeInvalidArgument, ExitUserError},
		{&InvalidConfigError{Path: ".sv.toml", Err: errors.New("parse")}, CodeInvalidConfig, ExitUserError},
		{&LeaseConflictError{Path: "src/", Holder: "bob"}, CodePolicyBlocked, ExitPolicyBlocked},
		{&ProtectedPathError{Path: "go.mod", Pattern: "go.mod"}, CodePolicyBlocked, ExitPolicyBlocked},
		{&PolicyError{Message: "findings"}, CodePolicyBlocked, ExitPolicyBlocked},
		{&CorruptError{Path: "oplog", Line: 3, Err: errors.New("json")}, CodeCorrupt, ExitOperationFailed},
		{errors.New("anything else"), CodeOperationFailed, ExitOperationFailed},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.code {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.code)
		}
		if got := ExitCode(tt.err); got != tt.exit {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.exit)
		}
	}
	if ExitCode(nil) != ExitOK {
		t.Error("nil error must exit 0")
	}
}

func TestErrorCodeSeesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("while committing: %w", &ProtectedPathError{Path: "go.mod", Pattern: "go.mod"})
	if ErrorCode(wrapped) != CodePolicyBlocked {
		t.Errorf("wrapped code = %s", ErrorCode(wrapped))
	}
}

func TestErrorDetails(t *testing.T) {
	details := ErrorDetails(&LeaseConflictError{Path: "src/", Holder: "bob", Strength: LeaseStrengthStrong})
	if details["holder"] != "bob" || details["strength"] != "strong" {
		t.Errorf("lease details = %v", details)
	}
	details = ErrorDetails(&ProtectedPathError{Path: "go.mod", Pattern: "go.mod"})
	if details["pattern"] != "go.mod" {
		t.Errorf("protect details = %v", details)
	}
	if ErrorDetails(errors.New("plain")) != nil {
		t.Error("plain error produced details")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	type doc struct {
		TTL Duration `json:"ttl"`
	}
	data, err := json.Marshal(doc{TTL: Duration(90 * time.Minute)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"ttl":"1h30m0s"}` {
		t.Errorf("marshaled = %s", data)
	}
	var out doc
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if time.Duration(out.TTL) != 90*time.Minute {
		t.Errorf("round trip = %v", out.TTL)
	}

	if err := json.Unmarshal([]byte(`{"ttl":"soon"}`), &out); err == nil {
		t.Error("invalid duration accepted")
	}
	if err := json.Unmarshal([]byte(`{"ttl":""}`), &out); err != nil || out.TTL != 0 {
		t.Errorf("empty duration = %v, %v", out.TTL, err)
	}
}
