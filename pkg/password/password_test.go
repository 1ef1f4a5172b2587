package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		pw   string
		want []error
	}{
		{"valid", "Abcdefghijkl1!", nil},
		{"too short", "Abc1!", []error{ErrTooShort}},
		{"no upper", "abcdefghijkl1!", []error{ErrNoUpper}},
		{"no lower", "ABCDEFGHIJKL1!", []error{ErrNoLower}},
		{"no digit", "Abcdefghijklm!", []error{ErrNoDigit}},
		{"no special", "Abcdefghijklm1", []error{ErrNoSpecial}},
		{"backslash is special", `Abcdefghijkl1\`, nil},
		{"empty", "", []error{ErrTooShort, ErrNoUpper, ErrNoLower, ErrNoDigit, ErrNoSpecial}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tt.pw)
			assert.Equal(t, tt.want, r.Errors)
			assert.Equal(t, len(tt.want) == 0, r.Valid)
			if r.Valid {
				assert.NoError(t, r.Err())
			} else {
				assert.ErrorIs(t, r.Err(), tt.want[0])
			}
		})
	}
}

func TestStrength(t *testing.T) {
	tests := []struct {
		pw   string
		want Level
	}{
		{"Abcdefghijkl1!", Medium},
		{"Abcdefghijklmnop1!", Strong},
		{"Abc1!", Medium},
		{"abcdefgh", Weak},
		{"abc1", Weak},
		{"", Weak},
	}
	for _, tt := range tests {
		if got := Strength(tt.pw); got != tt.want {
			t.Errorf("Strength(%q) = %s, want %s", tt.pw, got, tt.want)
		}
	}
}
