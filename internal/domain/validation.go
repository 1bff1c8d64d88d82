package domain

import (
	"fmt"
	"regexp"
	"time"
)

var actorNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]*$`)

// ValidateStrength validates a lease strength
func ValidateStrength(s string) (LeaseStrength, error) {
	switch LeaseStrength(s) {
	case LeaseStrengthCooperative, LeaseStrengthStrong, LeaseStrengthExclusive:
		return LeaseStrength(s), nil
	default:
		return "", Invalidf("invalid strength %q: must be one of: cooperative, strong, exclusive", s)
	}
}

// ValidateProtectMode validates a protect mode
func ValidateProtectMode(s string) (ProtectMode, error) {
	switch ProtectMode(s) {
	case ProtectModeGuard, ProtectModeWarn, ProtectModeOff:
		return ProtectMode(s), nil
	default:
		return "", Invalidf("invalid protect mode %q: must be one of: guard, warn, off", s)
	}
}

// ValidateEventType validates a task event type
func ValidateEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventTaskCreated, EventTaskClosed, EventTaskReopened, EventTaskAssigned,
		EventTaskRelated, EventTaskProjectSet, EventTaskProjectCleared,
		EventProjectCreated, EventProjectRenamed:
		return EventType(s), nil
	default:
		return "", Invalidf("invalid event type %q", s)
	}
}

// ValidateActorName validates an actor identifier
func ValidateActorName(s string) error {
	if s == "" {
		return Invalidf("actor name must not be empty")
	}
	if !actorNamePattern.MatchString(s) {
		return Invalidf("invalid actor name %q: must match %s", s, actorNamePattern.String())
	}
	return nil
}

// ValidateTimestamp validates and parses an ISO8601 timestamp
func ValidateTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, Invalidf("invalid timestamp %q: expected ISO8601/RFC3339: %v", s, err)
	}
	return t, nil
}

// ValidatePathspec rejects pathspecs that would escape the repository
func ValidatePathspec(p string) error {
	if p == "" {
		return Invalidf("pathspec must not be empty")
	}
	if p[0] == '/' {
		return Invalidf("pathspec %q must be repository-relative", p)
	}
	for _, seg := range splitSlash(p) {
		if seg == ".." {
			return Invalidf("pathspec %q must not contain ..", p)
		}
	}
	return nil
}

func splitSlash(p string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	return out
}

// FormatLeaseConflicts renders a conflict list for human output
func FormatLeaseConflicts(conflicts []Lease) string {
	if len(conflicts) == 0 {
		return ""
	}
	out := ""
	for i, l := range conflicts {
		if i > 0 {
			out += "; "
		}
		holder := l.Actor
		if holder == "" {
			holder = "(unowned)"
		}
		out += fmt.Sprintf("%s held by %s (%s)", l.Pathspec, holder, l.Strength)
	}
	return out
}
