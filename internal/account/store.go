package account

import (
	"context"
	"time"
)

// Store describes the persistence operations the security workflow needs
// from the credential table. Lookups exclude soft-deleted rows.
type Store interface {
	Create(ctx context.Context, acc *Account) error
	Find(ctx context.Context, id int64) (*Account, error)
	// FindByUsername returns the account including its credential hash.
	FindByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	UpdateFields(ctx context.Context, id int64, fields Fields) error
	// IncrementFailedLogins must issue an atomic increment statement; a
	// read-modify-write round trip would lose concurrent failures and
	// weaken the lockout guarantee.
	IncrementFailedLogins(ctx context.Context, username string) error
	ResetFailedLogins(ctx context.Context, id int64, touchLogin bool) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	CountActive(ctx context.Context, role Role) (int, error)
}

// Fields is a partial column update. Nil pointers are left unchanged.
// Department set to a pointer to the empty string clears the column.
type Fields struct {
	Username          *string
	Email             *string
	PasswordHash      *string
	Role              *Role
	Department        *string
	Status            *Status
	PasswordChangedAt *time.Time
}

// Hasher is the adaptive one-way hash used for credentials. Compare returns
// false with a nil error on a clean mismatch; errors are reserved for
// malformed hashes or hasher failure.
type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, hash, password string) (bool, error)
}

// SessionPurger invalidates every session belonging to one account and
// reports how many were removed.
type SessionPurger interface {
	PurgeAccount(ctx context.Context, accountID int64) (int, error)
}
