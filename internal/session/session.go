// Package session provides Redis-backed session persistence. Each session
// maps an opaque identifier to a fixed payload snapshot taken at login; a
// per-account index set makes all sessions of one account enumerable and
// bulk-deletable, which the lifecycle service relies on to force logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"deskhub.org/internal/account"
	"deskhub.org/internal/obs"
)

var (
	// ErrNotFound indicates the session id is unknown or expired.
	ErrNotFound = errors.New("session: not found")
	// ErrUnavailable wraps Redis connectivity failures.
	ErrUnavailable = errors.New("session: store unavailable")
)

// Payload is the session snapshot taken at login time. Role and Department
// reflect the account as of that moment; the middleware re-validates the
// account's status on every request.
type Payload struct {
	AccountID  int64        `json:"account_id"`
	Username   string       `json:"username"`
	Email      string       `json:"email"`
	Role       account.Role `json:"role"`
	Department string       `json:"department,omitempty"`
}

// PayloadFor builds the login-time snapshot of an account.
func PayloadFor(acc *account.Account) Payload {
	return Payload{
		AccountID:  acc.ID,
		Username:   acc.Username,
		Email:      acc.Email,
		Role:       acc.Role,
		Department: acc.Department,
	}
}

// Store persists sessions in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a session store. prefix namespaces the Redis keys; ttl is
// the session lifetime.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{redis: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(sid string) string {
	return s.prefix + ":s:" + sid
}

func (s *Store) accountKey(accountID int64) string {
	return s.prefix + ":a:" + strconv.FormatInt(accountID, 10)
}

// Create stores a new session and returns its opaque identifier.
func (s *Store) Create(ctx context.Context, p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sid := uuid.NewString()
	accountKey := s.accountKey(p.AccountID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sid), data, s.ttl)
		pipe.SAdd(ctx, accountKey, sid)
		pipe.Expire(ctx, accountKey, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sid, nil
}

// Get loads the payload for a session id.
func (s *Store) Get(ctx context.Context, sid string) (Payload, error) {
	data, err := s.redis.Get(ctx, s.key(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Payload{}, ErrNotFound
	}
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("session: decode payload: %w", err)
	}
	return p, nil
}

// Delete removes a single session. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, sid string) error {
	p, err := s.Get(ctx, sid)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sid))
		pipe.SRem(ctx, s.accountKey(p.AccountID), sid)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// PurgeAccount removes every session belonging to the account and returns
// the number of live sessions that were deleted.
func (s *Store) PurgeAccount(ctx context.Context, accountID int64) (int, error) {
	accountKey := s.accountKey(accountID)
	sids, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	keys := make([]string, 0, len(sids))
	for _, sid := range sids {
		keys = append(keys, s.key(sid))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, accountKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var n int
	if deleted != nil {
		n = int(deleted.Val())
	}
	obs.ObserveSessionsPurged(n)
	return n, nil
}

// ActiveCount reports how many live sessions the account currently has. The
// index set may hold stale ids for expired sessions, so each one is checked.
func (s *Store) ActiveCount(ctx context.Context, accountID int64) (int, error) {
	sids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(sids) == 0 {
		return 0, nil
	}
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(sids))
	for i, sid := range sids {
		cmds[i] = pipe.Exists(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var n int
	for _, cmd := range cmds {
		n += int(cmd.Val())
	}
	return n, nil
}

type payloadContextKey struct{}

// ContextWithPayload attaches the authenticated session payload to the context.
func ContextWithPayload(ctx context.Context, p Payload) context.Context {
	return context.WithValue(ctx, payloadContextKey{}, &p)
}

// PayloadFromContext extracts the session payload placed by the middleware.
func PayloadFromContext(ctx context.Context) (Payload, bool) {
	if ctx == nil {
		return Payload{}, false
	}
	v, ok := ctx.Value(payloadContextKey{}).(*Payload)
	if !ok || v == nil {
		return Payload{}, false
	}
	return *v, true
}
