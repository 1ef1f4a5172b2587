package pubsub

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// fakeTransport is an in-memory broker session. It never calls a handler
// while holding its own lock.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	opts       ConnectOptions
	handlers   Handlers
	connectErr error
	subErr     map[string]error
	subs       map[string]struct{}
	subCalls   []string
	unsubCalls []string

	// When set, Subscribe signals entered and waits for release.
	entered chan string
	release chan struct{}

	// When set, Connect signals connecting and waits for connectRelease
	// before it stores the session.
	connecting     chan struct{}
	connectRelease chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subErr: make(map[string]error),
		subs:   make(map[string]struct{}),
	}
}

func (f *fakeTransport) Connect(ctx context.Context, opts ConnectOptions, h Handlers) error {
	f.mu.Lock()
	connecting, connectRelease := f.connecting, f.connectRelease
	f.mu.Unlock()
	if connecting != nil {
		connecting <- struct{}{}
	}
	if connectRelease != nil {
		select {
		case <-connectRelease:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return err
	}
	f.connected = true
	f.opts = opts
	f.handlers = h
	f.subs = make(map[string]struct{})
	f.mu.Unlock()

	if h.OnConnect != nil {
		h.OnConnect()
	}
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, t string) error {
	f.mu.Lock()
	f.subCalls = append(f.subCalls, t)
	err := f.subErr[t]
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- t
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.subs[t] = struct{}{}
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Unsubscribe(_ context.Context, t string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubCalls = append(f.unsubCalls, t)
	delete(f.subs, t)
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.subs = make(map[string]struct{})
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// publish delivers a message the way the broker would.
func (f *fakeTransport) publish(t, payload string) {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	h.OnMessage(t, []byte(payload))
}

// drop simulates a lost connection. A clean session forgets subscriptions.
func (f *fakeTransport) drop(err error) {
	f.mu.Lock()
	f.connected = false
	f.subs = make(map[string]struct{})
	h := f.handlers
	f.mu.Unlock()
	h.OnConnectionLost(err)
}

// restore simulates an automatic reconnect.
func (f *fakeTransport) restore() {
	f.mu.Lock()
	f.connected = true
	h := f.handlers
	f.mu.Unlock()
	h.OnConnect()
}

func (f *fakeTransport) subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.subs))
	for t := range f.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (f *fakeTransport) subscribeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subCalls...)
}

func (f *fakeTransport) unsubscribeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubCalls...)
}

func (f *fakeTransport) connectOptions() ConnectOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}

type staticCreds struct {
	broker BrokerConfig
	creds  Credentials
	err    error
}

func (s staticCreds) BrokerConfig(context.Context) (BrokerConfig, error) {
	return s.broker, s.err
}

func (s staticCreds) Credentials(context.Context) (Credentials, error) {
	return s.creds, s.err
}

func testCreds() staticCreds {
	return staticCreds{
		broker: BrokerConfig{URL: "wss://mqtt.hooker.test/mqtt", ClientIDPrefix: "hooker_"},
		creds:  Credentials{Username: "user", Password: "secret", ExpiresAt: time.Now().Add(time.Hour)},
	}
}

// errorSink collects errors passed to the error handler.
type errorSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errorSink) handle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *errorSink) all() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func newTestClient(t *testing.T, creds CredentialSource, opts ...Option) (*Client, *fakeTransport, *errorSink) {
	t.Helper()
	ft := newFakeTransport()
	sink := &errorSink{}
	base := []Option{
		WithLogger(log.New(io.Discard)),
		WithErrorHandler(sink.handle),
		WithSubscribeTimeout(time.Second),
	}
	c := New(creds, ft, append(base, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c, ft, sink
}

// counter is a listener that counts its calls.
type counter struct {
	mu    sync.Mutex
	calls []Message
}

func (c *counter) listener() *Listener {
	return Listen(func(m Message) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calls = append(c.calls, m)
		return nil
	})
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
