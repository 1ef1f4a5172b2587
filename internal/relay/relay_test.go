package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"hooker/pkg/pubsub"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

// recordingSink remembers every message it is handed.
type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	msgs []pubsub.Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Handle(_ context.Context, msg pubsub.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSink) topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		out = append(out, m.Topic)
	}
	return out
}

// A client without a transport only queues patterns, which is all the relay
// needs to be exercised.
func newOfflineClient(t *testing.T) *pubsub.Client {
	t.Helper()
	c := pubsub.New(nil, nil, pubsub.WithLogger(discardLogger()))
	t.Cleanup(func() { c.Close() })
	return c
}

func message(topic, payload string) pubsub.Message {
	var v any
	_ = json.Unmarshal([]byte(payload), &v)
	return pubsub.Message{Topic: topic, Payload: json.RawMessage(payload), Value: v}
}

func TestRelayStartStop(t *testing.T) {
	client := newOfflineClient(t)
	r := New(client, []string{"hooker/hooks/h1/#", "hooker/hooks/h2/events"}, discardLogger())

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, []string{"hooker/hooks/h1/#", "hooker/hooks/h2/events"}, r.Topics())
	assert.Equal(t, "disconnected", r.BrokerState())

	r.Stop()
	assert.Empty(t, r.Topics())

	// Stopping twice is harmless.
	r.Stop()
}

func TestRelayStartNoPatterns(t *testing.T) {
	r := New(newOfflineClient(t), nil, discardLogger())
	assert.ErrorIs(t, r.Start(context.Background()), ErrNoPatterns)
}

func TestRelayStartRollsBack(t *testing.T) {
	client := newOfflineClient(t)
	r := New(client, []string{"hooker/hooks/h1/events", ""}, discardLogger())

	err := r.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pubsub.ErrInvalidPattern)
	assert.Empty(t, client.Patterns())
}

func TestRelayHandleIsolatesSinks(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}
	r := New(newOfflineClient(t), []string{"#"}, discardLogger(), failing, ok)

	require.NoError(t, r.handle(message("hooker/hooks/h1/events", `{"id":"e1"}`)))
	require.NoError(t, r.handle(message("hooker/hooks/h1/created", `{}`)))

	assert.Equal(t, []string{"hooker/hooks/h1/events", "hooker/hooks/h1/created"}, failing.topics())
	assert.Equal(t, []string{"hooker/hooks/h1/events", "hooker/hooks/h1/created"}, ok.topics())
}
