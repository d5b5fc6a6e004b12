// Package audit provides the append-only ledger of privileged actions.
// Entries are immutable once written; no update or delete operation exists.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Action tags recorded by the lifecycle and ticket services.
const (
	ActionUserCreated         = "USER_CREATED"
	ActionUserUpdated         = "USER_UPDATED"
	ActionUserDeleted         = "USER_DELETED"
	ActionUserUnlocked        = "USER_UNLOCKED"
	ActionPasswordReset       = "PASSWORD_RESET"
	ActionPasswordChanged     = "PASSWORD_CHANGED"
	ActionTicketAssigned      = "TICKET_ASSIGNED"
	ActionTicketStatusChanged = "TICKET_STATUS_CHANGED"
)

// Entry is one immutable record of a privileged action: who did what, to
// what target, when, from where. The actor reference may dangle if the actor
// row is later removed by an unrelated process; the trail stands on its own.
type Entry struct {
	ID         string
	ActorID    int64
	Action     string
	TargetType string
	TargetID   *int64
	Details    map[string]any
	IP         string
	CreatedAt  time.Time
}

// Recorder appends entries to the ledger.
type Recorder interface {
	Append(ctx context.Context, entry *Entry) error
}

func validate(entry *Entry) error {
	if entry == nil {
		return errors.New("audit: entry is nil")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit: action is required")
	}
	if entry.ActorID <= 0 {
		return errors.New("audit: actor is required")
	}
	return nil
}
