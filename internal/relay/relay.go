// Package relay forwards live Hooker notifications to local consumers: a
// SQLite archive, a RabbitMQ exchange and WebSocket clients.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hooker/pkg/pubsub"

	"github.com/charmbracelet/log"
)

// DefaultSinkTimeout bounds one sink call.
const DefaultSinkTimeout = 5 * time.Second

// ErrNoPatterns is returned by Start without patterns to subscribe.
var ErrNoPatterns = errors.New("no patterns to relay")

// Sink receives every relayed message.
type Sink interface {
	Name() string
	Handle(ctx context.Context, msg pubsub.Message) error
}

// Subscriber is the part of *pubsub.Client the relay uses.
type Subscriber interface {
	Subscribe(ctx context.Context, pattern string, l *pubsub.Listener) (*pubsub.Subscription, error)
	State() pubsub.State
	Patterns() []string
}

// Relay subscribes one listener under several patterns and hands each
// message to every sink once, however many patterns match it.
type Relay struct {
	client      Subscriber
	patterns    []string
	sinks       []Sink
	sinkTimeout time.Duration
	logger      *log.Logger
	listener    *pubsub.Listener

	mu   sync.Mutex
	subs []*pubsub.Subscription
}

// New creates a relay. Nothing is subscribed until Start.
func New(client Subscriber, patterns []string, logger *log.Logger, sinks ...Sink) *Relay {
	if logger == nil {
		logger = log.Default().WithPrefix("relay")
	}
	r := &Relay{
		client:      client,
		patterns:    patterns,
		sinks:       sinks,
		sinkTimeout: DefaultSinkTimeout,
		logger:      logger,
	}
	r.listener = pubsub.Listen(r.handle)
	return r
}

// Start subscribes every pattern. On failure the patterns subscribed so far
// are cancelled again.
func (r *Relay) Start(ctx context.Context) error {
	if len(r.patterns) == 0 {
		return ErrNoPatterns
	}

	var subs []*pubsub.Subscription
	for _, p := range r.patterns {
		sub, err := r.client.Subscribe(ctx, p, r.listener)
		if err != nil {
			for _, s := range subs {
				s.Cancel()
			}
			return fmt.Errorf("failed to relay %s: %w", p, err)
		}
		subs = append(subs, sub)
	}

	r.mu.Lock()
	r.subs = append(r.subs, subs...)
	r.mu.Unlock()

	r.logger.Info("Relay started", "patterns", r.patterns, "sinks", len(r.sinks))
	return nil
}

// Stop cancels the relay's subscriptions.
func (r *Relay) Stop() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}

// BrokerState reports the broker connection state.
func (r *Relay) BrokerState() string {
	return r.client.State().String()
}

// Topics returns the patterns subscribed at the broker.
func (r *Relay) Topics() []string {
	return r.client.Patterns()
}

// handle passes msg to each sink in turn. Sink failures are logged and do
// not reach the client's error handler.
func (r *Relay) handle(msg pubsub.Message) error {
	for _, s := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), r.sinkTimeout)
		err := s.Handle(ctx, msg)
		cancel()
		if err != nil {
			r.logger.Warn("Sink failed", "sink", s.Name(), "topic", msg.Topic, "error", err)
		}
	}
	return nil
}
