package domain

import (
	"errors"
	"fmt"
)

// Exit codes for the sv binary. Policy failures are distinguished from
// user mistakes and from failures of the underlying repository.
const (
	ExitOK              = 0
	ExitUserError       = 2
	ExitPolicyBlocked   = 3
	ExitOperationFailed = 4
)

// Error codes used in structured (--json) output
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInvalidConfig   = "INVALID_CONFIG"
	CodeNotFound        = "NOT_FOUND"
	CodePolicyBlocked   = "POLICY_BLOCKED"
	CodeOperationFailed = "OPERATION_FAILED"
	CodeCorrupt         = "CORRUPT"
)

// NotFoundError is returned when a named entity does not exist
type NotFoundError struct {
	Kind string // "workspace", "task", "lease", "branch", "op"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// InvalidArgumentError is returned for malformed user input
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// Invalidf formats an InvalidArgumentError
func Invalidf(format string, args ...interface{}) error {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}

// InvalidConfigError is returned when an explicitly loaded config file
// cannot be parsed. Auto-loaded config falls back to defaults instead.
type InvalidConfigError struct {
	Path string
	Err  error
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %v", e.Path, e.Err)
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

// LeaseConflictError is returned when a pathspec is already claimed by a
// conflicting lease held by another actor
type LeaseConflictError struct {
	Path     string
	Holder   string
	Strength LeaseStrength
}

func (e *LeaseConflictError) Error() string {
	holder := e.Holder
	if holder == "" {
		holder = "(unowned)"
	}
	return fmt.Sprintf("lease conflict on %s: held by %s (%s)", e.Path, holder, e.Strength)
}

// ProtectedPathError is returned when a staged path is blocked by policy
type ProtectedPathError struct {
	Path    string
	Pattern string
}

func (e *ProtectedPathError) Error() string {
	return fmt.Sprintf("path %s is protected (pattern %s)", e.Path, e.Pattern)
}

// PolicyError is a generic policy rejection that is neither a lease
// conflict nor a single protected path, such as a failed risk scan
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string {
	return e.Message
}

// OperationFailedError wraps failures of the underlying repository, lock
// contention, and IO errors that occur after a mutation has started
type OperationFailedError struct {
	Message string
	Err     error
}

func (e *OperationFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *OperationFailedError) Unwrap() error { return e.Err }

// OpFailedf formats an OperationFailedError wrapping err
func OpFailedf(err error, format string, args ...interface{}) error {
	return &OperationFailedError{Message: fmt.Sprintf(format, args...), Err: err}
}

// CorruptError is returned when a journal or event log line cannot be
// parsed. Corrupt state is never auto-truncated.
type CorruptError struct {
	Path string
	Line int
	Err  error
}

func (e *CorruptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corrupt record in %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("corrupt record in %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// ErrorCode maps an error to its structured output code
func ErrorCode(err error) string {
	var (
		notFound  *NotFoundError
		invalid   *InvalidArgumentError
		badConfig *InvalidConfigError
		lease     *LeaseConflictError
		protected *ProtectedPathError
		policy    *PolicyError
		corrupt   *CorruptError
	)
	switch {
	case errors.As(err, &notFound):
		return CodeNotFound
	case errors.As(err, &invalid):
		return CodeInvalidArgument
	case errors.As(err, &badConfig):
		return CodeInvalidConfig
	case errors.As(err, &lease):
		return CodePolicyBlocked
	case errors.As(err, &protected):
		return CodePolicyBlocked
	case errors.As(err, &policy):
		return CodePolicyBlocked
	case errors.As(err, &corrupt):
		return CodeCorrupt
	default:
		return CodeOperationFailed
	}
}

// ExitCode maps an error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch ErrorCode(err) {
	case CodeNotFound, CodeInvalidArgument, CodeInvalidConfig:
		return ExitUserError
	case CodePolicyBlocked:
		return ExitPolicyBlocked
	default:
		return ExitOperationFailed
	}
}

// ErrorDetails extracts structured details for --json error envelopes
func ErrorDetails(err error) map[string]string {
	var (
		lease     *LeaseConflictError
		protected *ProtectedPathError
	)
	switch {
	case errors.As(err, &lease):
		return map[string]string{
			"path":     lease.Path,
			"holder":   lease.Holder,
			"strength": string(lease.Strength),
		}
	case errors.As(err, &protected):
		return map[string]string{
			"path":    protected.Path,
			"pattern": protected.Pattern,
		}
	default:
		return nil
	}
}
