package relay

import (
	"context"
	"sync"

	"hooker/internal/httpcontract"
	"hooker/pkg/pubsub"
	"hooker/pkg/topic"

	"github.com/charmbracelet/log"
)

// DefaultBufferSize is the per-connection queue length.
const DefaultBufferSize = 64

// wsClient is one WebSocket connection registered with the hub.
type wsClient struct {
	id       string
	consumer string
	patterns [][]string
	send     chan httpcontract.MessageFrame
}

func newWSClient(id, consumer string, patterns []string, buffer int) *wsClient {
	c := &wsClient{
		id:       id,
		consumer: consumer,
		send:     make(chan httpcontract.MessageFrame, buffer),
	}
	for _, p := range patterns {
		c.patterns = append(c.patterns, topic.Split(p))
	}
	return c
}

func (c *wsClient) wants(segs []string) bool {
	for _, p := range c.patterns {
		if topic.MatchSegments(p, segs) {
			return true
		}
	}
	return false
}

// Hub fans broker messages out to WebSocket connections by pattern.
// It is a Sink.
type Hub struct {
	buffer int
	logger *log.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub whose connections queue up to buffer messages each.
func NewHub(buffer int, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = log.Default().WithPrefix("relay")
	}
	return &Hub{
		buffer:  buffer,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "websocket" }

// Handle queues msg on every connection with a matching pattern. A
// connection whose queue is full misses the message.
func (h *Hub) Handle(_ context.Context, msg pubsub.Message) error {
	segs := topic.Split(msg.Topic)
	frame := httpcontract.MessageFrame{
		Type:    httpcontract.FrameMessage,
		Topic:   msg.Topic,
		Payload: msg.Payload,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(segs) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("Dropping message for slow client", "conn_id", c.id, "consumer", c.consumer, "topic", msg.Topic)
		}
	}
	return nil
}
