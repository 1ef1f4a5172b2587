package relay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"hooker/internal/queue"
	"hooker/internal/store"
	"hooker/pkg/api"
	"hooker/pkg/topic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "hooker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestArchiveSinkEvents(t *testing.T) {
	db := newTestStore(t)
	sink := NewArchiveSink(db, discardLogger())
	ctx := context.Background()

	// The hook id comes from the topic when the payload lacks it.
	require.NoError(t, sink.Handle(ctx, message(topic.Hooks.Events("h1"), `{"id":"e1","method":"POST","timestamp":100}`)))
	require.NoError(t, sink.Handle(ctx, message(topic.User("u1").Events("h1"), `{"id":"e2","hookId":"h1","method":"GET","timestamp":200}`)))

	ev, err := db.GetEvent(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "h1", ev.HookID)
	assert.Equal(t, topic.Hooks.Events("h1"), ev.Topic)

	n, err := db.CountEvents(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, sink.Handle(ctx, message(topic.Hooks.EventDeleted("h1", "e1"), `{}`)))
	ev, err = db.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, ev)

	// Deleting an event that was never archived is fine.
	require.NoError(t, sink.Handle(ctx, message(topic.Hooks.EventDeleted("h1", "missing"), `{}`)))

	require.NoError(t, sink.Handle(ctx, message(topic.Hooks.Deleted("h1"), `{"id":"h1"}`)))
	n, err = db.CountEvents(ctx, "h1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveSinkForwards(t *testing.T) {
	db := newTestStore(t)
	sink := NewArchiveSink(db, discardLogger())
	ctx := context.Background()

	queued := `{"id":"f1","forwardRuleId":"r1","eventId":"e1","targetUrl":"https://example.com","timestamp":10,"status":"pending"}`
	require.NoError(t, sink.Handle(ctx, message(topic.Hooks.ForwardsQueued("h1"), queued)))

	// Status changes may carry only part of the forward.
	require.NoError(t, sink.Handle(ctx, message(topic.Hooks.ForwardStatusChange("h1", "f1", "completed"), `{"eventId":"e1"}`)))

	forwards, err := db.ListForwards(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, forwards, 1)
	assert.Equal(t, "f1", forwards[0].ID)
	assert.Equal(t, "h1", forwards[0].HookID)
	assert.Equal(t, "https://example.com", forwards[0].TargetURL)
	assert.Equal(t, api.ForwardCompleted, forwards[0].Status)
}

func TestArchiveSinkIgnoresOtherTopics(t *testing.T) {
	db := newTestStore(t)
	sink := NewArchiveSink(db, discardLogger())

	require.NoError(t, sink.Handle(context.Background(), message(topic.Hooks.Created("h1"), `{"id":"h1"}`)))
	require.NoError(t, sink.Handle(context.Background(), message("elsewhere/x", `1`)))
}

func TestArchiveSinkDecodeError(t *testing.T) {
	sink := NewArchiveSink(newTestStore(t), discardLogger())
	err := sink.Handle(context.Background(), message(topic.Hooks.Events("h1"), `"not an event"`))
	assert.Error(t, err)
}

type fakePublisher struct {
	err    error
	topics []string
	bodies []string
}

func (p *fakePublisher) Publish(_ context.Context, t string, body []byte) error {
	p.topics = append(p.topics, t)
	p.bodies = append(p.bodies, string(body))
	return p.err
}

func TestQueueSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewQueueSink(pub, discardLogger())

	require.NoError(t, sink.Handle(context.Background(), message("hooker/hooks/h1/events", `{"id":"e1"}`)))
	assert.Equal(t, []string{"hooker/hooks/h1/events"}, pub.topics)
	assert.Equal(t, []string{`{"id":"e1"}`}, pub.bodies)

	pub.err = queue.ErrNoRoute
	assert.NoError(t, sink.Handle(context.Background(), message("hooker/hooks/h1/events", `{}`)))

	pub.err = errors.New("channel closed")
	assert.Error(t, sink.Handle(context.Background(), message("hooker/hooks/h1/events", `{}`)))
}
