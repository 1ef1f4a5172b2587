package pubsub

import (
	"time"

	"github.com/charmbracelet/log"
)

// Defaults match the session parameters the web client uses.
const (
	DefaultKeepAlive        = 60 * time.Second
	DefaultConnectTimeout   = 30 * time.Second
	DefaultSubscribeTimeout = 10 * time.Second
)

type options struct {
	logger           *log.Logger
	onError          func(error)
	keepAlive        time.Duration
	connectTimeout   time.Duration
	subscribeTimeout time.Duration
	now              func() time.Time
}

// Option configures a Client.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           log.Default().WithPrefix("pubsub"),
		keepAlive:        DefaultKeepAlive,
		connectTimeout:   DefaultConnectTimeout,
		subscribeTimeout: DefaultSubscribeTimeout,
		now:              time.Now,
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithErrorHandler receives errors that have no caller to return to:
// undecodable payloads (*DecodeError) and failing listeners (*ListenerError).
// Without it they are logged.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithKeepAlive sets the MQTT keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) {
		o.keepAlive = d
	}
}

// WithConnectTimeout bounds the broker handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = d
	}
}

// WithSubscribeTimeout bounds broker round trips that have no caller
// context: resubscribing after a reconnect and unsubscribing on Cancel.
func WithSubscribeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.subscribeTimeout = d
	}
}

// WithClock replaces time.Now, which seeds the client id.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
