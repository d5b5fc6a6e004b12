package account

import (
	"strings"
	"unicode"
)

const minPasswordLength = 8

const specialCharacters = "!@#$%^&*()_+-=[]{}|;:'\",.<>/?`~\\"

// Password policy rule identifiers, stable for UI mapping.
const (
	RulePasswordLength    = "password must be at least 8 characters"
	RulePasswordUppercase = "password must contain an uppercase letter"
	RulePasswordLowercase = "password must contain a lowercase letter"
	RulePasswordNumber    = "password must contain a number"
	RulePasswordSpecial   = "password must contain a special character"
)

// ValidatePassword checks the complexity policy and returns every unmet
// rule. An empty slice means the password is acceptable.
func ValidatePassword(password string) []string {
	var violations []string
	if len(password) < minPasswordLength {
		violations = append(violations, RulePasswordLength)
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialCharacters, r):
			special = true
		}
	}
	if !upper {
		violations = append(violations, RulePasswordUppercase)
	}
	if !lower {
		violations = append(violations, RulePasswordLowercase)
	}
	if !digit {
		violations = append(violations, RulePasswordNumber)
	}
	if !special {
		violations = append(violations, RulePasswordSpecial)
	}
	return violations
}
