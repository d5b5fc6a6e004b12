// Package auth implements credential verification with lockout enforcement
// and self-service password-reset tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"deskhub.org/internal/account"
	"deskhub.org/internal/obs"
)

// ErrInvalidCredentials is returned for every user-facing rejection: unknown
// username, wrong password, locked account, inactive account. Keeping the
// failure indistinguishable prevents account enumeration.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// maxFailedLogins is the lockout threshold: once the counter reaches it,
// authentication is denied until an explicit unlock.
const maxFailedLogins = 5

// Authenticator verifies username/password pairs against the credential
// store. It holds no mutable state; lockout and status are read fresh on
// every attempt so a concurrent deactivation takes effect immediately.
type Authenticator struct {
	accounts account.Store
	hasher   account.Hasher
}

func NewAuthenticator(accounts account.Store, hasher account.Hasher) *Authenticator {
	return &Authenticator{accounts: accounts, hasher: hasher}
}

// Authenticate checks the supplied credentials. Exactly one hash comparison
// runs whether or not the username exists. On success the failed-login
// counter resets and the login timestamp is updated; on a mismatch the
// counter is incremented atomically before returning.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*account.Account, error) {
	username = strings.TrimSpace(strings.ToLower(username))

	acc, err := a.accounts.FindByUsername(ctx, username)
	if errors.Is(err, account.ErrNotFound) {
		// Burn a comparison so an unknown username costs the same as a
		// wrong password. The result is discarded.
		_, _ = a.hasher.Compare(ctx, dummyHash, password)
		obs.ObserveLogin("rejected")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		obs.ObserveLogin("error")
		return nil, fmt.Errorf("auth: lookup %q: %w", username, err)
	}

	if acc.FailedLogins >= maxFailedLogins {
		obs.ObserveLogin("rejected")
		return nil, ErrInvalidCredentials
	}
	if acc.Status != account.StatusActive {
		obs.ObserveLogin("rejected")
		return nil, ErrInvalidCredentials
	}

	ok, err := a.hasher.Compare(ctx, acc.PasswordHash, password)
	if err != nil {
		obs.ObserveLogin("error")
		return nil, fmt.Errorf("auth: compare: %w", err)
	}
	if !ok {
		if err := a.accounts.IncrementFailedLogins(ctx, acc.Username); err != nil {
			obs.ObserveLogin("error")
			return nil, fmt.Errorf("auth: record failed login: %w", err)
		}
		if acc.FailedLogins+1 >= maxFailedLogins {
			obs.ObserveLockout()
		}
		obs.ObserveLogin("rejected")
		return nil, ErrInvalidCredentials
	}

	if err := a.accounts.ResetFailedLogins(ctx, acc.ID, true); err != nil {
		obs.ObserveLogin("error")
		return nil, fmt.Errorf("auth: reset failed logins: %w", err)
	}
	acc.FailedLogins = 0
	obs.ObserveLogin("success")
	return acc, nil
}
