package account

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("account: not found")
	ErrAlreadyExists = errors.New("account: already exists")
)

// ValidationError reports every business rule an input failed, not just the
// first, so the caller can surface all problems at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "account: validation failed: " + strings.Join(e.Violations, ", ")
}

// InvariantViolation rejects an operation that would break a system-wide
// invariant. Nothing is persisted before the check.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "account: invariant violation: " + e.Reason
}
