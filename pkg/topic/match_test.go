package topic

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		// Exact matches
		{"exact match", "a/b/c", "a/b/c", true},
		{"exact no match", "a/b/c", "a/b/d", false},
		{"case sensitive", "a/B/c", "a/b/c", false},
		{"literal shorter than topic", "a/b", "a/b/c", false},
		{"literal longer than topic", "a/b/c/d", "a/b/c", false},

		// + (one level)
		{"plus matches one level", "a/+/c", "a/b/c", true},
		{"plus does not match deeper", "a/+/c", "a/b/c/d", false},
		{"plus needs a segment", "a/+/c", "a/c", false},
		{"plus at end", "a/+", "a/b", true},
		{"plus at end needs segment", "a/+", "a", false},
		{"plus matches empty segment", "a/+/c", "a//c", true},
		{"plus at start", "+/b", "x/b", true},

		// # (multi level)
		{"hash matches parent", "a/b/#", "a/b", true},
		{"hash matches one more", "a/b/#", "a/b/c", true},
		{"hash matches deep", "a/b/#", "a/b/c/d", true},
		{"hash wrong prefix", "a/b/#", "a/x", false},
		{"hash alone", "#", "a/b/c", true},
		{"hash alone matches empty", "#", "", true},
		{"plus then hash", "a/+/#", "a/b/c/d", true},
		{"plus then hash needs plus segment", "a/+/#", "a", false},

		// Non-terminal # is literal
		{"inner hash literal", "a/#/c", "a/#/c", true},
		{"inner hash not wildcard", "a/#/c", "a/b/c", false},

		// Edge cases
		{"empty pattern empty topic", "", "", true},
		{"empty pattern non-empty topic", "", "a", false},
		{"non-empty pattern empty topic", "a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.pattern, tt.topic)
			if got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}

func TestMatchLiteralProperty(t *testing.T) {
	topics := []string{"a", "a/b", "a/b/c", "b/a", "a/b/c/d", "x/y"}
	for _, p := range topics {
		for _, tp := range topics {
			want := p == tp
			if got := Match(p, tp); got != want {
				t.Errorf("Match(%q, %q) = %v, want %v", p, tp, got, want)
			}
		}
	}
}

func TestMatchMultiLevelPrefixProperty(t *testing.T) {
	prefix := []string{"hooker", "hooks", "h1"}
	pattern := Join(append(prefix, MultiLevel)...)
	for extra := 0; extra < 4; extra++ {
		segs := append([]string{}, prefix...)
		for i := 0; i < extra; i++ {
			segs = append(segs, "s")
		}
		if !Match(pattern, Join(segs...)) {
			t.Errorf("Match(%q, %q) = false, want true", pattern, Join(segs...))
		}
	}
	if Match(pattern, "hooker/hooks") {
		t.Errorf("Match(%q, %q) = true, want false", pattern, "hooker/hooks")
	}
}

func TestSplit(t *testing.T) {
	if got := Split(""); len(got) != 0 {
		t.Errorf("Split(\"\") = %v, want no segments", got)
	}
	if got := Split("a//b"); len(got) != 3 {
		t.Errorf("Split(\"a//b\") = %v, want 3 segments", got)
	}
}

func TestValidatePattern(t *testing.T) {
	if err := ValidatePattern(""); err != ErrEmptyPattern {
		t.Errorf("ValidatePattern(\"\") = %v, want ErrEmptyPattern", err)
	}
	if err := ValidatePattern("a/+/#"); err != nil {
		t.Errorf("ValidatePattern(\"a/+/#\") = %v, want nil", err)
	}
	if !HasInnerMultiLevel("a/#/b") {
		t.Error("HasInnerMultiLevel(\"a/#/b\") = false, want true")
	}
	if HasInnerMultiLevel("a/b/#") {
		t.Error("HasInnerMultiLevel(\"a/b/#\") = true, want false")
	}
	if !HasWildcard("a/+/b") || HasWildcard("a/b") {
		t.Error("HasWildcard mismatch")
	}
}
