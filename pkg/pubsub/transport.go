package pubsub

import (
	"context"
	"time"
)

// ConnectOptions carries everything a transport needs to open a session.
type ConnectOptions struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	UseTLS         bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	CleanSession   bool
}

// Handlers receive transport events. They are called from transport
// goroutines and must not be invoked while the transport holds its own locks.
type Handlers struct {
	// OnMessage is called once per received message.
	OnMessage func(topic string, payload []byte)
	// OnConnect is called after every successful connection, including
	// automatic reconnects.
	OnConnect func()
	// OnConnectionLost is called when an established connection drops.
	OnConnectionLost func(err error)
}

// Transport is a broker connection.
type Transport interface {
	Connect(ctx context.Context, opts ConnectOptions, h Handlers) error
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect()
	IsConnected() bool
}
