// Package ticket implements the support-ticket domain: department accounts
// raise tickets, administrators triage, assign, and resolve them.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deskhub.org/internal/account"
	"deskhub.org/internal/audit"
	"deskhub.org/internal/ids"
)

// Service orchestrates ticket operations, enforcing department scoping and
// writing audit entries for assignments and status changes.
type Service struct {
	store    Store
	accounts account.Store
	auditlog audit.Recorder
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, accounts account.Store, auditlog audit.Recorder, opts ...ServiceOption) *Service {
	s := &Service{store: store, accounts: accounts, auditlog: auditlog, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new ticket. Department actors always file within their own
// department; administrators must name one.
func (s *Service) Create(ctx context.Context, actor Actor, in NewTicket) (*Ticket, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Body = strings.TrimSpace(in.Body)
	in.Department = strings.TrimSpace(in.Department)
	if actor.Role == account.RoleDepartment {
		in.Department = actor.Department
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}

	var violations []string
	if in.Subject == "" {
		violations = append(violations, "subject is required")
	}
	if in.Body == "" {
		violations = append(violations, "body is required")
	}
	if in.Department == "" {
		violations = append(violations, "department is required")
	}
	if !in.Priority.Valid() {
		violations = append(violations, "unknown priority")
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	t := &Ticket{
		Reference:  ids.New(),
		Subject:    in.Subject,
		Body:       in.Body,
		Department: in.Department,
		Priority:   in.Priority,
		Status:     StatusOpen,
		CreatedBy:  actor.ID,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Find loads one ticket. Department actors only see their own department's
// tickets; a cross-department id behaves as if it did not exist.
func (s *Service) Find(ctx context.Context, actor Actor, id int64) (*Ticket, error) {
	t, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == account.RoleDepartment && t.Department != actor.Department {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns the tickets visible to the actor.
func (s *Service) List(ctx context.Context, actor Actor) ([]*Ticket, error) {
	if actor.Role == account.RoleDepartment {
		return s.store.ListByDepartment(ctx, actor.Department)
	}
	return s.store.ListAll(ctx)
}

// Assign hands a ticket to an administrator. The assignee must be an active
// privileged account.
func (s *Service) Assign(ctx context.Context, actor Actor, ticketID, assigneeID int64, ip string) (*Ticket, error) {
	t, err := s.Find(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.accounts.Find(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, &ValidationError{Violations: []string{"assignee does not exist"}}
		}
		return nil, err
	}
	if assignee.Status != account.StatusActive || !assignee.Role.Privileged() {
		return nil, &ValidationError{Violations: []string{"assignee must be an active administrator"}}
	}

	if err := s.store.Assign(ctx, ticketID, assigneeID); err != nil {
		return nil, err
	}
	if t.Status == StatusOpen {
		if err := s.store.SetStatus(ctx, ticketID, StatusInProgress); err != nil {
			return nil, err
		}
	}

	if err := s.auditlog.Append(ctx, &audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionTicketAssigned,
		TargetType: "ticket",
		TargetID:   &ticketID,
		Details: map[string]any{
			"reference": t.Reference,
			"assignee":  assignee.Username,
		},
		IP:        ip,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return nil, err
	}
	return s.store.Find(ctx, ticketID)
}

// UpdateStatus moves a ticket along its lifecycle, rejecting transitions
// outside open -> in_progress -> resolved -> closed (with resolved ->
// in_progress as the reopen path).
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, ticketID int64, next Status, ip string) (*Ticket, error) {
	if !next.Valid() {
		return nil, &ValidationError{Violations: []string{"unknown status"}}
	}
	t, err := s.Find(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}

	if err := s.store.SetStatus(ctx, ticketID, next); err != nil {
		return nil, err
	}
	if err := s.auditlog.Append(ctx, &audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionTicketStatusChanged,
		TargetType: "ticket",
		TargetID:   &ticketID,
		Details: map[string]any{
			"reference": t.Reference,
			"from":      string(t.Status),
			"to":        string(next),
		},
		IP:        ip,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return nil, err
	}
	return s.store.Find(ctx, ticketID)
}
