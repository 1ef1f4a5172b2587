package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"hooker/pkg/topic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoRoute is returned when a published message cannot be routed to any queue.
// This happens when no consumer has bound a queue matching the topic.
var ErrNoRoute = errors.New("message not routed to any queue")

// ErrNotConnected is returned while the connection is down.
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// ErrInvalidPattern is returned by Subscribe for patterns that AMQP would
// bind differently than they match over MQTT.
var ErrInvalidPattern = errors.New("invalid binding pattern")

// TopicHeader carries the original MQTT topic of a republished message.
const TopicHeader = "x-hooker-topic"

const (
	DefaultExchange = "hooker.events"
	ExchangeType    = "topic"
)

// Config holds RabbitMQ configuration.
type Config struct {
	Exchange    string
	MessageTTL  int // Milliseconds
	QueueExpiry int // Milliseconds
}

// Client republishes Hooker notifications to a RabbitMQ topic exchange and
// reconnects automatically.
type Client struct {
	url    string
	cfg    Config
	logger *log.Logger

	mu       sync.RWMutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	closed   bool
	returnCh chan amqp.Return

	pubMu       sync.Mutex
	notifyClose chan *amqp.Error
}

// NewClient connects to RabbitMQ and returns a ready-to-use client.
func NewClient(url string, cfg Config) (*Client, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	c := &Client{
		url:    url,
		cfg:    cfg,
		logger: log.Default().WithPrefix("amqp"),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.handleReconnect()

	return c, nil
}

// Exchange returns the exchange messages are published to.
func (c *Client) Exchange() string {
	return c.cfg.Exchange
}

// connect establishes connection and channel to RabbitMQ.
func (c *Client) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		c.cfg.Exchange,
		ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Publisher confirms let Publish detect unroutable messages.
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	returnCh := make(chan amqp.Return, 1)
	ch.NotifyReturn(returnCh)

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.returnCh = returnCh
	c.notifyClose = make(chan *amqp.Error, 1)
	c.conn.NotifyClose(c.notifyClose)
	c.mu.Unlock()

	return nil
}

// handleReconnect monitors connection and reconnects on failure.
func (c *Client) handleReconnect() {
	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		notifyClose := c.notifyClose
		c.mu.RUnlock()

		err := <-notifyClose
		if err == nil {
			// Graceful close.
			return
		}

		c.logger.Warn("RabbitMQ connection lost, reconnecting...", "error", err)

		backoff := time.Second
		maxBackoff := 30 * time.Second

		for {
			c.mu.RLock()
			if c.closed {
				c.mu.RUnlock()
				return
			}
			c.mu.RUnlock()

			time.Sleep(backoff)

			if err := c.connect(); err != nil {
				c.logger.Error("Reconnection failed", "error", err, "retry_in", backoff)
				backoff = nextBackoff(backoff, maxBackoff)
				continue
			}

			c.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	cur *= 2
	if cur > limit {
		return limit
	}
	return cur
}

// IsConnected returns true if the client is connected to RabbitMQ.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close cleanly shuts down the channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Publish sends one notification to the exchange under RoutingKey(t).
// Returns ErrNoRoute if no queue is bound for the topic.
func (c *Client) Publish(ctx context.Context, t string, body []byte) error {
	// Serialize publishes to correlate confirms with returns
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.RLock()
	ch := c.channel
	returnCh := c.returnCh
	c.mu.RUnlock()

	if ch == nil {
		return ErrNotConnected
	}

	// Drain any stale return from a previous publish
	select {
	case <-returnCh:
	default:
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Headers:      amqp.Table{TopicHeader: t},
		Body:         body,
	}
	if c.cfg.MessageTTL > 0 {
		msg.Expiration = fmt.Sprint(c.cfg.MessageTTL)
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		c.cfg.Exchange,
		RoutingKey(t),
		true,  // mandatory: return message if no queue is bound
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm message: %w", err)
	}
	if !ok {
		return fmt.Errorf("message was nacked by broker")
	}

	// RabbitMQ sends basic.return before basic.ack, so a return for this
	// message is already queued once the confirm arrives.
	select {
	case <-returnCh:
		return ErrNoRoute
	default:
		return nil
	}
}

// Subscribe declares a durable queue for the consumer and binds it to the
// given MQTT patterns. Queues outlive the connection, so a consumer that
// comes back within QueueExpiry receives what arrived meanwhile.
func (c *Client) Subscribe(consumerID string, patterns []string) (<-chan amqp.Delivery, error) {
	for _, p := range patterns {
		if err := topic.ValidatePattern(p); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err)
		}
		// AMQP treats an inner "#" as a wildcard, MQTT only as a literal.
		if topic.HasInnerMultiLevel(p) {
			return nil, fmt.Errorf("%w %q: '#' must be the last level", ErrInvalidPattern, p)
		}
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queueName := QueueName(consumerID)

	args := amqp.Table{}
	if c.cfg.MessageTTL > 0 {
		args["x-message-ttl"] = c.cfg.MessageTTL
	}
	if c.cfg.QueueExpiry > 0 {
		args["x-expires"] = c.cfg.QueueExpiry
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused: keep queue for reconnecting consumers
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare consumer queue: %w", err)
	}

	for _, p := range patterns {
		if err := ch.QueueBind(q.Name, BindingKey(p), c.cfg.Exchange, false, nil); err != nil {
			ch.QueueDelete(queueName, false, false, false)
			ch.Close()
			return nil, fmt.Errorf("failed to bind pattern %s: %w", p, err)
		}
	}

	msgs, err := ch.Consume(
		q.Name,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	out := make(chan amqp.Delivery)
	go func() {
		defer ch.Close()
		defer close(out)
		for msg := range msgs {
			out <- msg
		}
	}()

	return out, nil
}

// QueueName is the durable queue of a consumer.
func QueueName(consumerID string) string {
	return "hooker-" + consumerID
}

// DeliveryTopic returns the MQTT topic a delivery was published under.
func DeliveryTopic(d amqp.Delivery) string {
	if t, ok := d.Headers[TopicHeader].(string); ok {
		return t
	}
	return strings.ReplaceAll(d.RoutingKey, ".", topic.Separator)
}

// RoutingKey converts an MQTT topic to an AMQP routing key: levels become
// dot-separated words.
func RoutingKey(t string) string {
	return strings.ReplaceAll(t, topic.Separator, ".")
}

// BindingKey converts an MQTT pattern to an AMQP binding key.
// MQTT "+" is AMQP "*"; a trailing "#" means the same in both. An inner "#"
// is an AMQP wildcard but an MQTT literal, so Subscribe refuses it.
func BindingKey(pattern string) string {
	segs := topic.Split(pattern)
	for i, s := range segs {
		if s == topic.SingleLevel {
			segs[i] = "*"
		}
	}
	return strings.Join(segs, ".")
}
