package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const resetIssuer = "deskhub"

// ErrInvalidResetToken indicates the reset token failed validation.
var ErrInvalidResetToken = errors.New("auth: invalid reset token")

// resetClaims binds the token to the credential state at issue time: a
// token issued before the password last changed is no longer redeemable.
type resetClaims struct {
	PasswordStamp int64 `json:"pwd_stamp"`
	jwt.RegisteredClaims
}

// ResetTokenizer issues and validates short-lived HS256 tokens for the
// self-service forgot-password flow.
type ResetTokenizer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewResetTokenizer(secret string, ttl time.Duration) (*ResetTokenizer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: reset token secret is not configured")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: reset token ttl must be greater than zero")
	}
	return &ResetTokenizer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a reset token for the account. passwordChangedAt pins the
// token to the current credential; pass nil if the password never changed.
func (t *ResetTokenizer) Issue(accountID int64, passwordChangedAt *time.Time) (string, error) {
	if accountID <= 0 {
		return "", errors.New("auth: account id is required")
	}
	var stamp int64
	if passwordChangedAt != nil {
		stamp = passwordChangedAt.UTC().Unix()
	}
	now := t.now().UTC()
	claims := resetClaims{
		PasswordStamp: stamp,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    resetIssuer,
			Subject:   strconv.FormatInt(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate verifies the signature and claims, returning the account id and
// the password stamp the token was issued against.
func (t *ResetTokenizer) Validate(token string) (int64, int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, 0, ErrInvalidResetToken
	}
	parsed, err := jwt.ParseWithClaims(token, &resetClaims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidResetToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil {
		return 0, 0, ErrInvalidResetToken
	}
	claims, ok := parsed.Claims.(*resetClaims)
	if !ok || !parsed.Valid {
		return 0, 0, ErrInvalidResetToken
	}
	if claims.Issuer != resetIssuer {
		return 0, 0, ErrInvalidResetToken
	}
	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || accountID <= 0 {
		return 0, 0, ErrInvalidResetToken
	}
	return accountID, claims.PasswordStamp, nil
}
