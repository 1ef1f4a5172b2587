package relay

import (
	"net/http"
	"time"

	"hooker/internal/httpcontract"
	"hooker/internal/httpresponse"
)

// StatusHandler hosts the public status routes.
type StatusHandler struct {
	StartedAt   time.Time
	Broker      func() string
	RabbitMQ    func() string
	Archive     func(r *http.Request) string
	Connections func() int
	Topics      func() []string
}

func stateOf(fn func() string) string {
	if fn == nil {
		return httpcontract.StateDisabled
	}
	return fn()
}

// Status handles GET /api/status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpresponse.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := httpcontract.StatusResponse{
		Status:    httpcontract.StateOK,
		Uptime:    time.Since(h.StartedAt).Round(time.Second).String(),
		StartedAt: h.StartedAt,
		Broker:    stateOf(h.Broker),
		RabbitMQ:  stateOf(h.RabbitMQ),
		Archive:   httpcontract.StateDisabled,
	}
	if h.Archive != nil {
		status.Archive = h.Archive(r)
	}
	if h.Connections != nil {
		status.Connections = h.Connections()
	}

	httpresponse.WriteJSON(w, status)
}

// TopicsList handles GET /api/topics.
func (h *StatusHandler) TopicsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpresponse.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	topics := []string{}
	if h.Topics != nil {
		topics = h.Topics()
	}

	httpresponse.WriteJSON(w, httpcontract.TopicsResponse{Topics: topics})
}
