package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is fixed; raising it invalidates timing assumptions baked into
// the dummy-hash comparison below, which was generated at the same cost.
const bcryptCost = 10

// dummyHash is a well-formed bcrypt digest compared against when the
// username is unknown, so lookup misses take the same time as credential
// mismatches. The comparison result is always discarded.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// BcryptHasher implements the credential hash using bcrypt.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcryptCost}
}

// Hash derives a credential hash from the plaintext password.
func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare checks the plaintext password against a stored hash. A clean
// mismatch returns (false, nil); errors indicate a malformed hash.
func (h *BcryptHasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
