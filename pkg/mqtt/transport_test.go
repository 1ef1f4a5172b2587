package mqtt

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"hooker/pkg/pubsub"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// fakeClient overrides the paho.Client methods the transport uses.
type fakeClient struct {
	paho.Client
	opts        *paho.ClientOptions
	connectTok  paho.Token
	subTok      paho.Token
	open        bool
	subscribed  []string
	unsubbed    []string
	disconnects int
}

func (c *fakeClient) Connect() paho.Token {
	c.open = true
	return c.connectTok
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	c.subscribed = append(c.subscribed, topic)
	return c.subTok
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.unsubbed = append(c.unsubbed, topics...)
	return doneToken(nil)
}

func (c *fakeClient) Disconnect(uint) {
	c.open = false
	c.disconnects++
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func newTestTransport(fc *fakeClient) *Transport {
	return NewTransport(
		WithLogger(log.New(io.Discard)),
		func(t *Transport) {
			t.newClient = func(o *paho.ClientOptions) paho.Client {
				fc.opts = o
				return fc
			}
		},
	)
}

func testConnectOptions() pubsub.ConnectOptions {
	return pubsub.ConnectOptions{
		BrokerURL:      "wss://mqtt.hooker.test:443/mqtt",
		ClientID:       "hooker_123",
		Username:       "user",
		Password:       "secret",
		UseTLS:         true,
		KeepAlive:      60 * time.Second,
		ConnectTimeout: 30 * time.Second,
		CleanSession:   true,
	}
}

func TestClientOptions(t *testing.T) {
	var (
		gotTopic   string
		gotPayload []byte
		connects   int
		lost       error
	)
	h := pubsub.Handlers{
		OnMessage: func(topic string, payload []byte) {
			gotTopic, gotPayload = topic, payload
		},
		OnConnect:        func() { connects++ },
		OnConnectionLost: func(err error) { lost = err },
	}

	tr := NewTransport(WithLogger(log.New(io.Discard)))
	o := tr.clientOptions(testConnectOptions(), h)

	require.Len(t, o.Servers, 1)
	assert.Equal(t, "wss://mqtt.hooker.test:443/mqtt", o.Servers[0].String())
	assert.Equal(t, "hooker_123", o.ClientID)
	assert.Equal(t, "user", o.Username)
	assert.Equal(t, "secret", o.Password)
	assert.True(t, o.CleanSession)
	assert.True(t, o.AutoReconnect)
	assert.False(t, o.Order)
	assert.Equal(t, int64(60), o.KeepAlive)
	assert.Equal(t, 30*time.Second, o.ConnectTimeout)
	require.NotNil(t, o.TLSConfig)

	o.DefaultPublishHandler(nil, fakeMessage{topic: "a/b", payload: []byte(`{}`)})
	assert.Equal(t, "a/b", gotTopic)
	assert.Equal(t, []byte(`{}`), gotPayload)

	o.OnConnect(nil)
	assert.Equal(t, 1, connects)

	o.OnConnectionLost(nil, io.EOF)
	assert.Equal(t, io.EOF, lost)
}

func TestClientOptionsPlain(t *testing.T) {
	opts := testConnectOptions()
	opts.BrokerURL = "tcp://localhost:1883"
	opts.UseTLS = false

	o := NewTransport().clientOptions(opts, pubsub.Handlers{})
	assert.Nil(t, o.TLSConfig)

	// Missing handlers are tolerated.
	o.DefaultPublishHandler(nil, fakeMessage{topic: "x"})
	o.OnConnect(nil)
	o.OnConnectionLost(nil, io.EOF)
}

func TestNotConnected(t *testing.T) {
	tr := NewTransport()
	ctx := context.Background()

	assert.ErrorIs(t, tr.Subscribe(ctx, "a"), ErrNotConnected)
	assert.ErrorIs(t, tr.Unsubscribe(ctx, "a"), ErrNotConnected)
	assert.False(t, tr.IsConnected())
	tr.Disconnect()
}

func TestConnectSubscribe(t *testing.T) {
	fc := &fakeClient{connectTok: doneToken(nil), subTok: doneToken(nil)}
	tr := newTestTransport(fc)
	ctx := context.Background()

	require.NoError(t, tr.Connect(ctx, testConnectOptions(), pubsub.Handlers{}))
	assert.True(t, tr.IsConnected())
	require.NotNil(t, fc.opts)

	require.NoError(t, tr.Subscribe(ctx, "hooker/hooks/+/events"))
	require.NoError(t, tr.Unsubscribe(ctx, "hooker/hooks/+/events"))
	assert.Equal(t, []string{"hooker/hooks/+/events"}, fc.subscribed)
	assert.Equal(t, []string{"hooker/hooks/+/events"}, fc.unsubbed)

	tr.Disconnect()
	assert.False(t, tr.IsConnected())
	assert.Equal(t, 1, fc.disconnects)
	assert.ErrorIs(t, tr.Subscribe(ctx, "a"), ErrNotConnected)
}

func TestConnectError(t *testing.T) {
	fc := &fakeClient{connectTok: doneToken(errors.New("not authorized"))}
	tr := newTestTransport(fc)

	err := tr.Connect(context.Background(), testConnectOptions(), pubsub.Handlers{})
	assert.ErrorContains(t, err, "not authorized")
	assert.False(t, tr.IsConnected())
	assert.Equal(t, 1, fc.disconnects)
}

func TestConnectContextCancelled(t *testing.T) {
	fc := &fakeClient{connectTok: &fakeToken{done: make(chan struct{})}}
	tr := newTestTransport(fc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.Connect(ctx, testConnectOptions(), pubsub.Handlers{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, tr.IsConnected())
}

func TestSubscribeError(t *testing.T) {
	fc := &fakeClient{connectTok: doneToken(nil), subTok: doneToken(errors.New("timeout"))}
	tr := newTestTransport(fc)
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx, testConnectOptions(), pubsub.Handlers{}))

	assert.ErrorContains(t, tr.Subscribe(ctx, "a"), "timeout")
}
