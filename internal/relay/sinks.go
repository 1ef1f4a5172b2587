package relay

import (
	"context"
	"errors"
	"fmt"

	"hooker/internal/queue"
	"hooker/internal/store"
	"hooker/pkg/api"
	"hooker/pkg/pubsub"
	"hooker/pkg/topic"

	"github.com/charmbracelet/log"
)

// Archive is the store the archive sink writes to. *store.Store implements it.
type Archive interface {
	SaveEvent(ctx context.Context, topic string, ev api.Event) error
	DeleteEvent(ctx context.Context, id string) error
	DeleteHookEvents(ctx context.Context, hookID string) (int64, error)
	SaveForward(ctx context.Context, f api.Forward) error
}

// ArchiveSink keeps the archive in step with the notification stream:
// events and forwards are stored, deletions are applied.
type ArchiveSink struct {
	archive Archive
	logger  *log.Logger
}

func NewArchiveSink(a Archive, logger *log.Logger) *ArchiveSink {
	if logger == nil {
		logger = log.Default().WithPrefix("archive")
	}
	return &ArchiveSink{archive: a, logger: logger}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Handle(ctx context.Context, msg pubsub.Message) error {
	info := topic.Classify(msg.Topic)
	switch info.Kind {
	case topic.KindEvent:
		var ev api.Event
		if err := msg.Decode(&ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if ev.HookID == "" {
			ev.HookID = info.HookID
		}
		return s.archive.SaveEvent(ctx, msg.Topic, ev)

	case topic.KindEventDeleted:
		err := s.archive.DeleteEvent(ctx, info.EventID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err

	case topic.KindHookDeleted:
		n, err := s.archive.DeleteHookEvents(ctx, info.HookID)
		if err != nil {
			return err
		}
		s.logger.Debug("Hook deleted, archive pruned", "hook_id", info.HookID, "events", n)
		return nil

	case topic.KindForwardQueued, topic.KindForwardStatus:
		var f api.Forward
		if err := msg.Decode(&f); err != nil {
			return fmt.Errorf("failed to decode forward: %w", err)
		}
		if f.HookID == "" {
			f.HookID = info.HookID
		}
		if f.ID == "" {
			f.ID = info.ForwardID
		}
		if f.Status == "" && info.Status != "" {
			f.Status = api.ForwardStatus(info.Status)
		}
		return s.archive.SaveForward(ctx, f)
	}
	return nil
}

// Publisher is the exchange the queue sink publishes to. *queue.Client
// implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
}

// QueueSink republishes every message to RabbitMQ.
type QueueSink struct {
	pub    Publisher
	logger *log.Logger
}

func NewQueueSink(p Publisher, logger *log.Logger) *QueueSink {
	if logger == nil {
		logger = log.Default().WithPrefix("amqp")
	}
	return &QueueSink{pub: p, logger: logger}
}

func (s *QueueSink) Name() string { return "amqp" }

// Handle publishes msg. Nobody listening for the topic is not an error.
func (s *QueueSink) Handle(ctx context.Context, msg pubsub.Message) error {
	err := s.pub.Publish(ctx, msg.Topic, msg.Payload)
	if errors.Is(err, queue.ErrNoRoute) {
		s.logger.Debug("No queue bound for topic", "topic", msg.Topic, "routing_key", queue.RoutingKey(msg.Topic))
		return nil
	}
	return err
}
