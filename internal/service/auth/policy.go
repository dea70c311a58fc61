package auth

import (
	"strings"
	"unicode"
)

const (
	minUppercase = 2
	minDigits    = 3
	minSymbols   = 3
)

// PolicyError lists every rule a rejected password broke.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "password policy: " + strings.Join(e.Violations, "; ")
}

// ValidatePassword checks password against the registration policy and
// returns a *PolicyError describing all failures, or nil.
func ValidatePassword(password string) error {
	if password == "" {
		return &PolicyError{Violations: []string{"password cannot be empty"}}
	}

	var upper, digits, symbols int
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsDigit(r):
			digits++
		case !unicode.IsLetter(r):
			symbols++
		}
	}

	var violations []string
	if upper < minUppercase {
		violations = append(violations, "password must contain at least 2 uppercase letters")
	}
	if digits < minDigits {
		violations = append(violations, "password must contain at least 3 digits")
	}
	if symbols < minSymbols {
		violations = append(violations, "password must contain at least 3 symbols")
	}
	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
