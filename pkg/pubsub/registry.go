package pubsub

import (
	"sort"

	"hooker/pkg/topic"
)

type entry struct {
	segments  []string
	listeners map[*Listener]struct{}
}

// registry maps patterns to listeners (the desired subscriptions) and tracks
// which patterns the broker has acknowledged in the current session (the
// active subscriptions). It is not safe for concurrent use; Client guards it.
type registry struct {
	entries map[string]*entry
	active  map[string]struct{}
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[string]*entry),
		active:  make(map[string]struct{}),
	}
}

func (r *registry) has(pattern string) bool {
	_, ok := r.entries[pattern]
	return ok
}

// add registers l under pattern and reports whether the pattern is new.
func (r *registry) add(pattern string, l *Listener) bool {
	e, ok := r.entries[pattern]
	if !ok {
		e = &entry{
			segments:  topic.Split(pattern),
			listeners: make(map[*Listener]struct{}),
		}
		r.entries[pattern] = e
	}
	e.listeners[l] = struct{}{}
	return !ok
}

// remove drops l from pattern and reports whether that emptied the pattern,
// in which case the pattern is gone from the registry.
func (r *registry) remove(pattern string, l *Listener) bool {
	e, ok := r.entries[pattern]
	if !ok {
		return false
	}
	if _, ok := e.listeners[l]; !ok {
		return false
	}
	delete(e.listeners, l)
	if len(e.listeners) > 0 {
		return false
	}
	delete(r.entries, pattern)
	return true
}

// match returns every listener whose pattern matches the topic, each once.
func (r *registry) match(t string) []*Listener {
	segs := topic.Split(t)
	seen := make(map[*Listener]struct{})
	var out []*Listener
	for _, e := range r.entries {
		if !topic.MatchSegments(e.segments, segs) {
			continue
		}
		for l := range e.listeners {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

func (r *registry) patterns() []string {
	out := make([]string, 0, len(r.entries))
	for p := range r.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *registry) isActive(pattern string) bool {
	_, ok := r.active[pattern]
	return ok
}

func (r *registry) markActive(pattern string) {
	r.active[pattern] = struct{}{}
}

func (r *registry) markInactive(pattern string) {
	delete(r.active, pattern)
}

func (r *registry) resetActive() {
	r.active = make(map[string]struct{})
}

// pending lists registered patterns the broker has not acknowledged.
func (r *registry) pending() []string {
	var out []string
	for p := range r.entries {
		if !r.isActive(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// stale lists acknowledged patterns that nobody listens to any more.
func (r *registry) stale() []string {
	var out []string
	for p := range r.active {
		if !r.has(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (r *registry) clear() {
	r.entries = make(map[string]*entry)
	r.resetActive()
}
