package topic

import "strings"

// Root is the top-level segment of every Hooker topic.
const Root = "hooker"

// Any can be passed wherever an id is expected to subscribe to every value
// at that level.
const Any = SingleLevel

// Scope builds topics under either the global hook tree or a user's tree.
//
//	hooker/hooks/<hookId>/...
//	hooker/users/<userId>/hooks/<hookId>/...
type Scope struct {
	prefix string
}

// Hooks is the global scope, used with hook-scoped credentials.
var Hooks = Scope{prefix: Join(Root, "hooks")}

// User returns the scope of one user's hooks, used with user-wide credentials.
func User(userID string) Scope {
	return Scope{prefix: Join(Root, "users", userID, "hooks")}
}

// Join concatenates segments with the topic separator.
func Join(segs ...string) string {
	return strings.Join(segs, Separator)
}

func (s Scope) hook(hookID string, rest ...string) string {
	return Join(append([]string{s.prefix, hookID}, rest...)...)
}

// Events carries every captured request of a hook (payload: Event).
func (s Scope) Events(hookID string) string {
	return s.hook(hookID, "events")
}

// EventDeleted fires when an event is removed (payload: Deleted).
func (s Scope) EventDeleted(hookID, eventID string) string {
	return s.hook(hookID, "events", eventID, "deleted")
}

// Created fires when a hook is created (payload: Hook).
func (s Scope) Created(hookID string) string {
	return s.hook(hookID, "created")
}

// Updated fires when a hook changes (payload: Hook).
func (s Scope) Updated(hookID string) string {
	return s.hook(hookID, "updated")
}

// Deleted fires when a hook is removed (payload: Deleted).
func (s Scope) Deleted(hookID string) string {
	return s.hook(hookID, "deleted")
}

// ForwardsQueued fires when a forward is queued (payload: Forward).
func (s Scope) ForwardsQueued(hookID string) string {
	return s.hook(hookID, "forwards", "queued")
}

// ForwardStatusChange fires when a forward enters one status (payload: Forward).
func (s Scope) ForwardStatusChange(hookID, forwardID, status string) string {
	return s.hook(hookID, "forwards", forwardID, "status-changes", status)
}

// ForwardStatusChanges matches every status change of a forward.
func (s Scope) ForwardStatusChanges(hookID, forwardID string) string {
	return s.hook(hookID, "forwards", forwardID, "status-changes", MultiLevel)
}

// ForwardAttempts carries delivery attempts of a forward (payload: ForwardAttempt).
func (s Scope) ForwardAttempts(hookID, forwardID string) string {
	return s.hook(hookID, "forwards", forwardID, "attempts")
}

// All matches every topic of a hook.
func (s Scope) All(hookID string) string {
	return s.hook(hookID, MultiLevel)
}
