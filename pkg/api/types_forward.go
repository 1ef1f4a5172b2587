package api

// ForwardStatus is the delivery state of a forward.
type ForwardStatus string

const (
	ForwardPending          ForwardStatus = "pending"
	ForwardRunning          ForwardStatus = "running"
	ForwardCompleted        ForwardStatus = "completed"
	ForwardFailed           ForwardStatus = "failed"
	ForwardPendingReattempt ForwardStatus = "pendingReattempt"
)

// Forward tracks delivery of one event to a target URL under a forward rule.
type Forward struct {
	ID              string        `json:"id"`
	HookID          string        `json:"hookId"`
	ForwardRuleID   string        `json:"forwardRuleId"`
	EventID         string        `json:"eventId"`
	TargetURL       string        `json:"targetUrl"`
	Timestamp       int64         `json:"timestamp"`
	StatusUpdatedAt *int64        `json:"statusUpdatedAt,omitempty"`
	Status          ForwardStatus `json:"status"`
}

// ForwardAttempt is one delivery attempt with the target's response.
type ForwardAttempt struct {
	ID           string `json:"id"`
	ForwardID    string `json:"forwardId"`
	Timestamp    int64  `json:"timestamp"`
	StatusCode   int    `json:"statusCode"`
	ContentType  string `json:"contentType,omitempty"`
	ResponseBody string `json:"responseBody,omitempty"`
	DurationMs   int64  `json:"durationMs"`
}

// ForwardRule conditionally forwards a hook's events to another endpoint.
type ForwardRule struct {
	ID          string   `json:"id"`
	HookID      string   `json:"hookId"`
	TargetURL   string   `json:"targetUrl"`
	IsActive    bool     `json:"isActive"`
	Timestamp   int64    `json:"timestamp"`
	PassFilters []Filter `json:"passFilters,omitempty"` // all must match
	FailFilters []Filter `json:"failFilters,omitempty"` // none may match
}

// SelectorType names the part of a request a filter inspects.
type SelectorType string

const (
	SelectorHeader   SelectorType = "header"
	SelectorQuery    SelectorType = "query"
	SelectorBodyJSON SelectorType = "body-json"
	SelectorBodyText SelectorType = "body-text"
)

// ValueSelector picks a value out of a captured request.
// Name is set for header and query selectors, Path for body-json.
type ValueSelector struct {
	Type SelectorType `json:"type"`
	Name string       `json:"name,omitempty"`
	Path string       `json:"path,omitempty"`
}

// MatchType is the comparison a filter applies.
type MatchType string

const (
	MatchEquals     MatchType = "equals"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startsWith"
	MatchRegex      MatchType = "regex"
)

// Filter is one condition of a forward rule.
type Filter struct {
	Selector   ValueSelector `json:"selector"`
	MatchType  MatchType     `json:"matchType"`
	MatchValue string        `json:"matchValue"`
	Invert     bool          `json:"invert"`
}
