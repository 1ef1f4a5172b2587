// Package topic implements MQTT topic matching and the Hooker topic namespace.
package topic

import (
	"errors"
	"strings"
)

// Wildcards recognised in subscription patterns.
const (
	Separator   = "/"
	SingleLevel = "+"
	MultiLevel  = "#"
)

// ErrEmptyPattern is returned by ValidatePattern for an empty pattern.
var ErrEmptyPattern = errors.New("topic pattern is empty")

// Split breaks a topic or pattern into its segments.
// The empty string has zero segments.
func Split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, Separator)
}

// Match reports whether a concrete topic matches a subscription pattern.
//
// "+" matches exactly one segment. "#" as the last pattern segment matches
// zero or more trailing segments. A "#" anywhere else is compared literally.
func Match(pattern, topic string) bool {
	return MatchSegments(Split(pattern), Split(topic))
}

// MatchSegments is Match over pre-split segments.
func MatchSegments(pattern, topic []string) bool {
	last := len(pattern) - 1
	for i, seg := range pattern {
		if seg == MultiLevel && i == last {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if seg == SingleLevel {
			continue
		}
		if seg != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// HasWildcard reports whether the pattern contains a wildcard segment.
func HasWildcard(pattern string) bool {
	for _, seg := range Split(pattern) {
		if seg == SingleLevel || seg == MultiLevel {
			return true
		}
	}
	return false
}

// ValidatePattern rejects patterns that cannot be subscribed to.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return ErrEmptyPattern
	}
	return nil
}

// HasInnerMultiLevel reports whether "#" appears before the last segment,
// where it only matches literally.
func HasInnerMultiLevel(pattern string) bool {
	segs := Split(pattern)
	for i := 0; i < len(segs)-1; i++ {
		if segs[i] == MultiLevel {
			return true
		}
	}
	return false
}
