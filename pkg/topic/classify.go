package topic

// Kind identifies which notification a concrete topic carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindEvent
	KindEventDeleted
	KindHookCreated
	KindHookUpdated
	KindHookDeleted
	KindForwardQueued
	KindForwardStatus
	KindForwardAttempt
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindEvent:          "event",
	KindEventDeleted:   "event-deleted",
	KindHookCreated:    "hook-created",
	KindHookUpdated:    "hook-updated",
	KindHookDeleted:    "hook-deleted",
	KindForwardQueued:  "forward-queued",
	KindForwardStatus:  "forward-status",
	KindForwardAttempt: "forward-attempt",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// Info is a concrete topic broken into its parts. Fields that the kind does
// not carry are empty.
type Info struct {
	Kind      Kind
	UserID    string
	HookID    string
	EventID   string
	ForwardID string
	Status    string
}

// Classify parses a concrete topic produced by the service.
func Classify(t string) Info {
	segs := Split(t)
	var info Info

	switch {
	case len(segs) >= 3 && segs[0] == Root && segs[1] == "hooks":
		segs = segs[2:]
	case len(segs) >= 5 && segs[0] == Root && segs[1] == "users" && segs[3] == "hooks":
		info.UserID = segs[2]
		segs = segs[4:]
	default:
		return Info{}
	}

	info.HookID = segs[0]
	rest := segs[1:]

	switch {
	case len(rest) == 1 && rest[0] == "events":
		info.Kind = KindEvent
	case len(rest) == 3 && rest[0] == "events" && rest[2] == "deleted":
		info.Kind = KindEventDeleted
		info.EventID = rest[1]
	case len(rest) == 1 && rest[0] == "created":
		info.Kind = KindHookCreated
	case len(rest) == 1 && rest[0] == "updated":
		info.Kind = KindHookUpdated
	case len(rest) == 1 && rest[0] == "deleted":
		info.Kind = KindHookDeleted
	case len(rest) == 2 && rest[0] == "forwards" && rest[1] == "queued":
		info.Kind = KindForwardQueued
	case len(rest) >= 3 && rest[0] == "forwards" && rest[2] == "status-changes":
		info.Kind = KindForwardStatus
		info.ForwardID = rest[1]
		if len(rest) > 3 {
			info.Status = rest[3]
		}
	case len(rest) == 3 && rest[0] == "forwards" && rest[2] == "attempts":
		info.Kind = KindForwardAttempt
		info.ForwardID = rest[1]
	default:
		return Info{}
	}
	return info
}
