// Package mqtt implements pubsub.Transport on the Eclipse Paho MQTT client.
package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"hooker/pkg/pubsub"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
)

var (
	// ErrNotConnected is returned by broker operations before Connect.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrRefused is returned when the broker rejects a subscription.
	ErrRefused = errors.New("mqtt: subscription refused by broker")
)

// subackFailure is the SUBACK return code for a rejected topic filter.
const subackFailure = 0x80

// DefaultQuiesce is how long Disconnect lets in-flight work finish, in ms.
const DefaultQuiesce = 250

// Transport is a Paho client session. The zero value is not usable; use NewTransport.
type Transport struct {
	qos       byte
	quiesce   uint
	logger    *log.Logger
	newClient func(*paho.ClientOptions) paho.Client

	mu     sync.Mutex
	client paho.Client
}

var _ pubsub.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithQoS sets the QoS of subscriptions. The service publishes at QoS 0.
func WithQoS(qos byte) Option {
	return func(t *Transport) {
		t.qos = qos
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// WithQuiesce sets the Disconnect grace period in milliseconds.
func WithQuiesce(ms uint) Option {
	return func(t *Transport) {
		t.quiesce = ms
	}
}

// NewTransport creates a transport. Nothing is dialled until Connect.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		quiesce:   DefaultQuiesce,
		logger:    log.Default().WithPrefix("mqtt"),
		newClient: paho.NewClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials the broker. Paho reconnects on its own afterwards and
// reports every successful connection through h.OnConnect.
func (t *Transport) Connect(ctx context.Context, opts pubsub.ConnectOptions, h pubsub.Handlers) error {
	t.mu.Lock()
	if t.client != nil {
		old := t.client
		t.client = nil
		t.mu.Unlock()
		old.Disconnect(0)
	} else {
		t.mu.Unlock()
	}

	c := t.newClient(t.clientOptions(opts, h))
	if err := wait(ctx, c.Connect()); err != nil {
		c.Disconnect(0)
		return fmt.Errorf("failed to connect to %s: %w", opts.BrokerURL, err)
	}

	t.mu.Lock()
	t.client = c
	t.mu.Unlock()
	return nil
}

func (t *Transport) clientOptions(opts pubsub.ConnectOptions, h pubsub.Handlers) *paho.ClientOptions {
	o := paho.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetCleanSession(opts.CleanSession).
		SetKeepAlive(opts.KeepAlive).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(true).
		// Listeners may subscribe from inside a callback, which would
		// deadlock an ordered router.
		SetOrderMatters(false)

	if opts.UseTLS {
		o.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	o.SetDefaultPublishHandler(func(_ paho.Client, m paho.Message) {
		if h.OnMessage != nil {
			h.OnMessage(m.Topic(), m.Payload())
		}
	})
	o.SetOnConnectHandler(func(paho.Client) {
		t.logger.Debug("Broker connection established", "client_id", opts.ClientID)
		if h.OnConnect != nil {
			h.OnConnect()
		}
	})
	o.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if h.OnConnectionLost != nil {
			h.OnConnectionLost(err)
		}
	})
	o.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		t.logger.Debug("Reconnecting to broker", "url", opts.BrokerURL)
	})
	return o
}

func (t *Transport) current() (paho.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, ErrNotConnected
	}
	return t.client, nil
}

// Subscribe subscribes the session to a topic filter. Messages arrive
// through the handlers passed to Connect.
func (t *Transport) Subscribe(ctx context.Context, topic string) error {
	c, err := t.current()
	if err != nil {
		return err
	}
	tok := c.Subscribe(topic, t.qos, nil)
	if err := wait(ctx, tok); err != nil {
		return err
	}
	if st, ok := tok.(*paho.SubscribeToken); ok {
		if code, ok := st.Result()[topic]; ok && code == subackFailure {
			return fmt.Errorf("%w: %s", ErrRefused, topic)
		}
	}
	return nil
}

// Unsubscribe removes a topic filter from the session.
func (t *Transport) Unsubscribe(ctx context.Context, topic string) error {
	c, err := t.current()
	if err != nil {
		return err
	}
	return wait(ctx, c.Unsubscribe(topic))
}

// Disconnect closes the session and stops reconnecting.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	c := t.client
	t.client = nil
	t.mu.Unlock()
	if c != nil {
		c.Disconnect(t.quiesce)
	}
}

// IsConnected reports whether the session is up right now. It is false
// while Paho is reconnecting.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil && t.client.IsConnectionOpen()
}

// wait blocks until tok completes or ctx is done.
func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
