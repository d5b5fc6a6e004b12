package ticket

import (
	"errors"
	"strings"
	"time"

	"deskhub.org/internal/account"
)

var (
	ErrNotFound          = errors.New("ticket: not found")
	ErrInvalidTransition = errors.New("ticket: invalid status transition")
)

// ValidationError reports every rule a ticket input failed.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "ticket: validation failed: " + strings.Join(e.Violations, ", ")
}

// Status is the closed set of ticket states.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// CanTransition reports whether a ticket may move from s to next. Closed is
// terminal; resolved tickets can be reopened back to in_progress.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusOpen:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusResolved
	case StatusResolved:
		return next == StatusClosed || next == StatusInProgress
	}
	return false
}

// Priority orders triage.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Ticket is one support request raised by a department account.
type Ticket struct {
	ID         int64
	Reference  string
	Subject    string
	Body       string
	Department string
	Priority   Priority
	Status     Status
	CreatedBy  int64
	AssignedTo *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewTicket carries the input for ticket creation.
type NewTicket struct {
	Subject    string
	Body       string
	Department string
	Priority   Priority
}

// Actor identifies the account performing a ticket operation, with the role
// and department taken from its session payload.
type Actor struct {
	ID         int64
	Role       account.Role
	Department string
}
