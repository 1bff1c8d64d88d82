// Package id generates and validates the identifier shapes used across sv.
// Entity ids are typed prefixes over a short random suffix; op ids carry a
// nanosecond timestamp prefix so that lexical order equals creation order.
package id

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	opIDPattern    = regexp.MustCompile(`^\d{19}-[0-9a-f]{8}$`)
	leaseIDPattern = regexp.MustCompile(`^L-[0-9a-f]{8}$`)
	taskIDPattern  = regexp.MustCompile(`^(T|task)-[A-Za-z0-9-]+$`)
)

func shortSuffix() string {
	return uuid.NewString()[:8]
}

// NewOp returns a time-sortable operation id. The 19-digit zero-padded
// nanosecond prefix keeps lexical and chronological order identical until
// the year 2262; the random suffix breaks same-nanosecond ties.
func NewOp(now time.Time) string {
	return fmt.Sprintf("%019d-%s", now.UTC().UnixNano(), shortSuffix())
}

// OpTime extracts the creation time encoded in an op id
func OpTime(opID string) (time.Time, error) {
	if !opIDPattern.MatchString(opID) {
		return time.Time{}, fmt.Errorf("invalid op id: %s", opID)
	}
	var nanos int64
	if _, err := fmt.Sscanf(opID[:19], "%d", &nanos); err != nil {
		return time.Time{}, fmt.Errorf("invalid op id: %s", opID)
	}
	return time.Unix(0, nanos).UTC(), nil
}

// IsOp reports whether s has the op id shape
func IsOp(s string) bool {
	return opIDPattern.MatchString(s)
}

// NewLease returns a new lease id
func NewLease() string {
	return "L-" + shortSuffix()
}

// IsLease reports whether s has the lease id shape
func IsLease(s string) bool {
	return leaseIDPattern.MatchString(s)
}

// NewTask returns a new task id
func NewTask() string {
	return "T-" + shortSuffix()
}

// NewProject returns a new project id
func NewProject() string {
	return "P-" + shortSuffix()
}

// NewWorkspace returns a new workspace id
func NewWorkspace() string {
	return "W-" + shortSuffix()
}

// NewEvent returns a new task event id
func NewEvent() string {
	return uuid.NewString()
}

// IsTask reports whether s is plausibly a task id. Task ids from external
// logs are accepted in a looser shape than the ones sv generates.
func IsTask(s string) bool {
	return taskIDPattern.MatchString(strings.TrimSpace(s))
}
