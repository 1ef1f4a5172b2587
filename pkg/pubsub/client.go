package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"hooker/pkg/topic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Client subscribes to Hooker notifications over a broker transport.
type Client struct {
	creds     CredentialSource
	transport Transport
	opts      options
	logger    *log.Logger

	mu     sync.Mutex
	state  State
	closed bool
	reg    *registry
	// gen changes on every Connect and Disconnect.
	gen uint64

	// flight coalesces concurrent broker subscribes of one pattern.
	flight singleflight.Group
	// reconcileMu serializes reconcile passes.
	reconcileMu sync.Mutex
	wg          sync.WaitGroup
}

// New creates a disconnected client with an empty registry.
func New(creds CredentialSource, transport Transport, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		creds:     creds,
		transport: transport,
		opts:      o,
		logger:    o.logger,
		reg:       newRegistry(),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Patterns returns the registered patterns, sorted.
func (c *Client) Patterns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.patterns()
}

// Connect opens the broker session and subscribes every registered pattern.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if err := c.open(ctx); err != nil {
		c.mu.Lock()
		if c.state == StateConnecting && c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if !c.stillConnecting(gen) {
		return c.abandon()
	}

	c.reconcile(ctx)

	c.mu.Lock()
	if c.state != StateConnecting || c.gen != gen || c.closed {
		c.mu.Unlock()
		return c.abandon()
	}
	c.state = StateConnected
	late := len(c.reg.pending()) > 0
	c.mu.Unlock()

	if late {
		// Patterns registered while the replay was running.
		c.reconcile(ctx)
	}

	c.logger.Info("Connected to broker", "patterns", len(c.Patterns()))
	return nil
}

// stillConnecting reports whether the Connect that started generation gen
// still owns the session.
func (c *Client) stillConnecting(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnecting && c.gen == gen && !c.closed
}

// abandon tears down a session opened by a Connect that lost the race
// against Disconnect or Close.
func (c *Client) abandon() error {
	c.mu.Lock()
	c.reg.resetActive()
	c.mu.Unlock()
	c.transport.Disconnect()
	c.logger.Debug("Dropped broker session opened during disconnect")
	return fmt.Errorf("%w: disconnected while connecting", ErrConnect)
}

func (c *Client) open(ctx context.Context) error {
	broker, err := c.creds.BrokerConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get broker config: %w", err)
	}
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to get broker credentials: %w", err)
	}

	opts := ConnectOptions{
		BrokerURL:      broker.URL,
		ClientID:       broker.ClientIDPrefix + strconv.FormatInt(c.opts.now().UnixMilli(), 10),
		Username:       creds.Username,
		Password:       creds.Password,
		UseTLS:         isTLS(broker.URL),
		KeepAlive:      c.opts.keepAlive,
		ConnectTimeout: c.opts.connectTimeout,
		CleanSession:   true,
	}
	c.logger.Debug("Connecting to broker", "url", opts.BrokerURL, "client_id", opts.ClientID, "tls", opts.UseTLS)

	return c.transport.Connect(ctx, opts, Handlers{
		OnMessage:        c.dispatch,
		OnConnect:        c.onTransportConnect,
		OnConnectionLost: c.onConnectionLost,
	})
}

func isTLS(brokerURL string) bool {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "wss", "ssl", "tls", "mqtts":
		return true
	}
	return false
}

// Disconnect closes the broker session. Registered patterns are kept and
// subscribed again by the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	prev := c.state
	c.state = StateDisconnected
	c.gen++
	c.reg.resetActive()
	c.mu.Unlock()

	if prev != StateDisconnected {
		c.transport.Disconnect()
		c.logger.Info("Disconnected from broker")
	}
}

// Close disconnects and drops every registration. Outstanding subscriptions
// can still be cancelled but no longer have any effect.
func (c *Client) Close() error {
	c.Disconnect()
	c.mu.Lock()
	c.closed = true
	c.reg.clear()
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

// liveLocked reports whether broker round trips are possible. c.mu must be held.
func (c *Client) liveLocked() bool {
	return c.state == StateConnected && c.transport.IsConnected()
}

// Subscribe registers l under pattern.
//
// If the pattern is already registered, l joins it without a broker round
// trip. A new pattern on a live connection is registered only after the
// broker acknowledges it; otherwise it is queued for the next Connect.
func (c *Client) Subscribe(ctx context.Context, pattern string, l *Listener) (*Subscription, error) {
	if err := topic.ValidatePattern(pattern); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, pattern, err)
	}
	if l == nil {
		return nil, ErrNilListener
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.reg.has(pattern) || !c.liveLocked() {
		created := c.reg.add(pattern, l)
		c.mu.Unlock()
		if created {
			c.logger.Debug("Subscription queued until connected", "pattern", pattern)
		}
		return c.newSubscription(pattern, l), nil
	}
	c.mu.Unlock()

	if topic.HasInnerMultiLevel(pattern) {
		c.logger.Warn("'#' before the last level only matches literally", "pattern", pattern)
	}

	if err := c.subscribeRemote(ctx, pattern); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrSubscribe, pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.reg.add(pattern, l)
	if c.liveLocked() {
		c.reg.markActive(pattern)
	}
	c.logger.Debug("Subscribed", "pattern", pattern)
	return c.newSubscription(pattern, l), nil
}

func (c *Client) subscribeRemote(ctx context.Context, pattern string) error {
	_, err, shared := c.flight.Do(pattern, func() (any, error) {
		return nil, c.transport.Subscribe(ctx, pattern)
	})
	if shared {
		c.logger.Debug("Joined in-flight subscribe", "pattern", pattern)
	}
	return err
}

// remove is called by Subscription.Cancel.
func (c *Client) remove(pattern string, l *Listener) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.reg.remove(pattern, l) {
		c.mu.Unlock()
		return
	}
	wasActive := c.reg.isActive(pattern)
	c.reg.markInactive(pattern)
	if !wasActive || !c.liveLocked() {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.unsubscribeRemote(pattern)
	}()
}

func (c *Client) unsubscribeRemote(pattern string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.subscribeTimeout)
	defer cancel()

	if err := c.transport.Unsubscribe(ctx, pattern); err != nil {
		c.logger.Warn("Failed to unsubscribe", "pattern", pattern, "error", err)
	} else {
		c.logger.Debug("Unsubscribed", "pattern", pattern)
	}

	// The pattern may have been registered again while the unsubscribe was
	// in flight, in which case the broker no longer has it.
	c.mu.Lock()
	again := c.reg.has(pattern) && c.liveLocked()
	if again {
		c.reg.markInactive(pattern)
	}
	c.mu.Unlock()
	if again {
		c.reconcile(ctx)
	}
}

// reconcile subscribes registered patterns the broker lacks and unsubscribes
// acknowledged patterns nobody listens to. Failures are logged and retried on
// the next pass.
func (c *Client) reconcile(ctx context.Context) {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	c.mu.Lock()
	pending := c.reg.pending()
	stale := c.reg.stale()
	c.mu.Unlock()

	for _, p := range pending {
		if err := c.subscribeRemote(ctx, p); err != nil {
			c.logger.Warn("Failed to restore subscription", "pattern", p, "error", err)
			continue
		}
		c.mu.Lock()
		c.reg.markActive(p)
		if !c.reg.has(p) {
			// Cancelled while the subscribe was in flight.
			stale = append(stale, p)
		}
		c.mu.Unlock()
	}

	for _, p := range stale {
		if err := c.transport.Unsubscribe(ctx, p); err != nil {
			c.logger.Warn("Failed to unsubscribe", "pattern", p, "error", err)
			continue
		}
		c.mu.Lock()
		if !c.reg.has(p) {
			c.reg.markInactive(p)
		}
		c.mu.Unlock()
	}

	if len(pending) > 0 || len(stale) > 0 {
		c.logger.Debug("Subscriptions reconciled", "subscribed", len(pending), "unsubscribed", len(stale))
	}
}

func (c *Client) onTransportConnect() {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st != StateConnected {
		// The first connection is reconciled by Connect itself.
		return
	}

	c.logger.Info("Reconnected to broker, restoring subscriptions")
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.subscribeTimeout)
	defer cancel()
	c.reconcile(ctx)
}

func (c *Client) onConnectionLost(err error) {
	c.mu.Lock()
	c.reg.resetActive()
	c.mu.Unlock()
	c.logger.Warn("Broker connection lost", "error", err)
}

// dispatch decodes one message and hands it to every matching listener.
func (c *Client) dispatch(t string, payload []byte) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		c.report(&DecodeError{Topic: t, Payload: payload, Err: err})
		return
	}

	c.mu.Lock()
	listeners := c.reg.match(t)
	c.mu.Unlock()

	msg := Message{Topic: t, Payload: json.RawMessage(payload), Value: v}
	for _, l := range listeners {
		c.invoke(l, msg)
	}
}

func (c *Client) invoke(l *Listener, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.report(&ListenerError{Topic: msg.Topic, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := l.handle(msg); err != nil {
		c.report(&ListenerError{Topic: msg.Topic, Err: err})
	}
}

func (c *Client) report(err error) {
	if c.opts.onError != nil {
		c.opts.onError(err)
		return
	}
	c.logger.Error("Message dropped", "error", err)
}
