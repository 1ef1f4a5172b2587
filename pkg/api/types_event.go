package api

import "encoding/json"

// Event is a single captured inbound HTTP request.
type Event struct {
	ID          string          `json:"id"`
	HookID      string          `json:"hookId"`
	Path        string          `json:"path"`
	Querystring string          `json:"querystring"` // raw, no leading "?"
	Method      string          `json:"method"`
	Body        *string         `json:"body"`
	Headers     json.RawMessage `json:"headers"`
	Timestamp   int64           `json:"timestamp"` // ms epoch
	IP          string          `json:"ip"`
	ContentType *string         `json:"contentType"`
	Bookmarked  bool            `json:"bookmarked"`
}

// BodyText returns the raw body or "" when the request had none.
func (e Event) BodyText() string {
	if e.Body == nil {
		return ""
	}
	return *e.Body
}

// EventListItem is an Event enriched with the aggregated forward status.
// ForwardStatus is nil when the event has no forwards; otherwise the most
// applicable one (failed > running > pendingReattempt > pending > completed).
type EventListItem struct {
	Event
	ForwardStatus *ForwardStatus `json:"forwardStatus"`
}

// EventsCursor points at the next page of events.
type EventsCursor struct {
	BeforeTs int64  `json:"beforeTs"`
	BeforeID string `json:"beforeId"`
}

// EventsList is one page of events.
type EventsList struct {
	Items      []EventListItem `json:"items"`
	NextCursor *EventsCursor   `json:"nextCursor"`
}

// EventsQuery selects a page of events. Zero values are omitted.
type EventsQuery struct {
	Limit    int
	BeforeTs int64
	BeforeID string
}

// EventBookmarkBody sets or clears an event bookmark.
type EventBookmarkBody struct {
	State bool `json:"state"`
}

// AttachmentType classifies an event attachment.
type AttachmentType string

const (
	AttachmentFormData      AttachmentType = "form-data"
	AttachmentEML           AttachmentType = "eml"
	AttachmentEMLAttachment AttachmentType = "eml-attachment"
)

// AttachmentMeta describes a file captured with an event.
type AttachmentMeta struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Length   int64          `json:"length"`
	Type     AttachmentType `json:"type"`
	MimeType string         `json:"mimeType"`
	SourceID string         `json:"sourceId,omitempty"` // e.g. Content-ID of an email part
}

// ColumnType is a column kind of the events table UI.
type ColumnType string

const (
	ColumnBookmark      ColumnType = "bookmark"
	ColumnEventID       ColumnType = "eventId"
	ColumnTimestamp     ColumnType = "timestamp"
	ColumnMethod        ColumnType = "method"
	ColumnForwardStatus ColumnType = "forwardStatus"
	ColumnHookID        ColumnType = "hookId"
	ColumnPath          ColumnType = "path"
	ColumnIP            ColumnType = "ip"
	ColumnContentType   ColumnType = "contentType"
	ColumnBody          ColumnType = "body"
	ColumnActions       ColumnType = "actions"
	ColumnCustom        ColumnType = "custom"
)

// Column is a per-hook column configuration row.
type Column struct {
	ID       string     `json:"id"`
	Type     ColumnType `json:"type"`
	Name     string     `json:"name"`
	WidthPct int        `json:"widthPct"` // 0 means auto
	Show     bool       `json:"show"`
	JSONPath string     `json:"jsonPath,omitempty"` // custom columns only
}

// SaveColumnsBody replaces all columns of a hook.
type SaveColumnsBody struct {
	Columns []Column `json:"columns"`
}
