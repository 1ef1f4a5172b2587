// Package password checks account passwords against the service's rules.
package password

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MinLength is the shortest accepted password, in characters.
const MinLength = 14

// strongLength upgrades a valid password from medium to strong.
const strongLength = 18

const specials = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Rule violations, in the order they are checked.
var (
	ErrTooShort  = errors.New("password must be at least 14 characters long")
	ErrNoUpper   = errors.New("password must contain at least one uppercase letter")
	ErrNoLower   = errors.New("password must contain at least one lowercase letter")
	ErrNoDigit   = errors.New("password must contain at least one number")
	ErrNoSpecial = errors.New("password must contain at least one special character")
)

const ruleCount = 5

// Result lists the rules a password breaks.
type Result struct {
	Valid  bool
	Errors []error
}

// Err joins the violations, or returns nil for a valid password.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Validate checks pw against every rule.
func Validate(pw string) Result {
	var errs []error
	if utf8.RuneCountInString(pw) < MinLength {
		errs = append(errs, ErrTooShort)
	}
	if !strings.ContainsFunc(pw, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		errs = append(errs, ErrNoUpper)
	}
	if !strings.ContainsFunc(pw, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		errs = append(errs, ErrNoLower)
	}
	if !strings.ContainsFunc(pw, func(r rune) bool { return r >= '0' && r <= '9' }) {
		errs = append(errs, ErrNoDigit)
	}
	if !strings.ContainsAny(pw, specials) {
		errs = append(errs, ErrNoSpecial)
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Level is a coarse strength rating for display.
type Level string

const (
	Weak   Level = "weak"
	Medium Level = "medium"
	Strong Level = "strong"
)

// Strength rates pw. Valid passwords are medium, or strong from 18
// characters. Invalid ones are medium if they meet at least three rules.
func Strength(pw string) Level {
	r := Validate(pw)
	if r.Valid {
		if utf8.RuneCountInString(pw) >= strongLength {
			return Strong
		}
		return Medium
	}
	if ruleCount-len(r.Errors) >= 3 {
		return Medium
	}
	return Weak
}
