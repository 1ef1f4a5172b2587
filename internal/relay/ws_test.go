package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hooker/internal/httpcontract"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	hub *Hub
	url string
}

func newWSFixture(t *testing.T, ws WSConfig, consumers ConsumerLookup) *wsFixture {
	t.Helper()
	hub := NewHub(8, discardLogger())
	srv := NewServer(ServerConfig{WS: ws}, Deps{Hub: hub, Consumers: consumers}, discardLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &wsFixture{hub: hub, url: "ws" + strings.TrimPrefix(ts.URL, "http")}
}

func (f *wsFixture) dial(t *testing.T, path string, header http.Header) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, f.url+path, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var v T
	require.NoError(t, wsjson.Read(ctx, conn, &v))
	return v
}

func bearer(token string) http.Header {
	return http.Header{httpcontract.HeaderAuthorization: []string{httpcontract.BearerPrefix + token}}
}

func TestWSOpenMode(t *testing.T) {
	f := newWSFixture(t, WSConfig{}, nil)
	conn := f.dial(t, "/ws/?topics=hooker/hooks/+/events,hooker/hooks/h9/created", nil)

	ack := readFrame[httpcontract.AuthOKFrame](t, conn)
	assert.Equal(t, httpcontract.FrameAuthOK, ack.Type)
	assert.Equal(t, []string{"hooker/hooks/+/events", "hooker/hooks/h9/created"}, ack.Topics)
	assert.Equal(t, 1, f.hub.Count())

	require.NoError(t, f.hub.Handle(context.Background(), message("hooker/hooks/h1/created", `{}`)))
	require.NoError(t, f.hub.Handle(context.Background(), message("hooker/hooks/h1/events", `{"id":"e1"}`)))

	frame := readFrame[httpcontract.MessageFrame](t, conn)
	assert.Equal(t, httpcontract.FrameMessage, frame.Type)
	assert.Equal(t, "hooker/hooks/h1/events", frame.Topic)
	assert.JSONEq(t, `{"id":"e1"}`, string(frame.Payload))

	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWSPathPattern(t *testing.T) {
	f := newWSFixture(t, WSConfig{}, nil)
	conn := f.dial(t, "/ws/hooker/hooks/h1/%23", nil)

	ack := readFrame[httpcontract.AuthOKFrame](t, conn)
	assert.Equal(t, []string{"hooker/hooks/h1/#"}, ack.Topics)
}

func TestWSBearerToken(t *testing.T) {
	f := newWSFixture(t, WSConfig{Token: "secret"}, nil)
	conn := f.dial(t, "/ws/?topics=%23", bearer("secret"))

	ack := readFrame[httpcontract.AuthOKFrame](t, conn)
	assert.Equal(t, adminConsumer, ack.Consumer)
}

func TestWSInvalidBearerToken(t *testing.T) {
	f := newWSFixture(t, WSConfig{Token: "secret"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, f.url+"/ws/?topics=%23", &websocket.DialOptions{HTTPHeader: bearer("wrong")})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSNoTopics(t *testing.T) {
	f := newWSFixture(t, WSConfig{}, nil)

	resp, err := http.Get("http" + strings.TrimPrefix(f.url, "ws") + "/ws/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWSFirstFrameAuth(t *testing.T) {
	f := newWSFixture(t, WSConfig{Token: "secret"}, nil)
	conn := f.dial(t, "/ws/?topics=hooker/hooks/h1/events", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, httpcontract.AuthFrame{Type: httpcontract.FrameAuth, Token: "secret"}))

	ack := readFrame[httpcontract.AuthOKFrame](t, conn)
	assert.Equal(t, adminConsumer, ack.Consumer)
}

func TestWSFirstFrameInvalid(t *testing.T) {
	f := newWSFixture(t, WSConfig{Token: "secret"}, nil)

	for name, frame := range map[string]any{
		"wrong token": httpcontract.AuthFrame{Type: httpcontract.FrameAuth, Token: "nope"},
		"wrong type":  map[string]string{"type": "hello", "token": "secret"},
	} {
		t.Run(name, func(t *testing.T) {
			conn := f.dial(t, "/ws/?topics=%23", nil)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, wsjson.Write(ctx, conn, frame))

			_, _, err := conn.Read(ctx)
			assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
		})
	}
}

func TestWSConsumerPatterns(t *testing.T) {
	db := newTestStore(t)
	_, err := db.CreateConsumer(context.Background(), "dashboard", "consumer-token", []string{"hooker/hooks/h1/#"})
	require.NoError(t, err)
	_, err = db.CreateConsumer(context.Background(), "nothing", "empty-token", nil)
	require.NoError(t, err)

	f := newWSFixture(t, WSConfig{}, db)

	t.Run("allowed", func(t *testing.T) {
		conn := f.dial(t, "/ws/?topics=hooker/hooks/h1/events,hooker/hooks/h1/%23", bearer("consumer-token"))
		ack := readFrame[httpcontract.AuthOKFrame](t, conn)
		assert.Equal(t, "dashboard", ack.Consumer)
	})

	for name, tc := range map[string]struct{ token, query string }{
		"other hook":       {"consumer-token", "hooker/hooks/h2/events"},
		"broader wildcard": {"consumer-token", "hooker/hooks/+/events"},
		"no patterns":      {"empty-token", "hooker/hooks/h1/events"},
	} {
		t.Run(name, func(t *testing.T) {
			conn := f.dial(t, "/ws/?topics="+tc.query, bearer(tc.token))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _, err := conn.Read(ctx)
			assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
		})
	}
}

func TestRequestedPatterns(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/a/b?topics=x/+/y,%20z%20,x/+/y", nil)
	assert.Equal(t, []string{"x/+/y", "z", "a/b"}, requestedPatterns(r))

	r = httptest.NewRequest(http.MethodGet, "/ws/", nil)
	assert.Empty(t, requestedPatterns(r))
}

func TestIdentityPermits(t *testing.T) {
	id := &identity{name: "c", allowed: []string{"hooker/hooks/h1/#", "hooker/users/u1/hooks/+/events"}}

	assert.True(t, id.permits("hooker/hooks/h1/#"))
	assert.True(t, id.permits("hooker/hooks/h1/events"))
	assert.True(t, id.permits("hooker/users/u1/hooks/h7/events"))
	assert.False(t, id.permits("hooker/hooks/h1/+"))
	assert.False(t, id.permits("hooker/hooks/h2/events"))

	assert.True(t, (&identity{unrestricted: true}).permits("#"))
	assert.False(t, (&identity{}).permits("a"))
}

func TestStatusRoutes(t *testing.T) {
	client := newOfflineClient(t)
	r := New(client, []string{"hooker/hooks/h1/events"}, discardLogger())
	require.NoError(t, r.Start(context.Background()))

	hub := NewHub(1, discardLogger())
	srv := NewServer(ServerConfig{}, Deps{Relay: r, Hub: hub, Queue: connectedQueue{}, Archive: newTestStore(t)}, discardLogger())
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, httpcontract.RouteStatus, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status httpcontract.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, httpcontract.StateOK, status.Status)
	assert.Equal(t, "disconnected", status.Broker)
	assert.Equal(t, httpcontract.StateConnected, status.RabbitMQ)
	assert.Equal(t, httpcontract.StateOK, status.Archive)
	assert.Zero(t, status.Connections)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, httpcontract.RouteTopics, nil))
	var topics httpcontract.TopicsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topics))
	assert.Equal(t, []string{"hooker/hooks/h1/events"}, topics.Topics)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, httpcontract.RouteStatus, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusDisabledParts(t *testing.T) {
	srv := NewServer(ServerConfig{}, Deps{Hub: NewHub(1, discardLogger())}, discardLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, httpcontract.RouteStatus, nil))

	var status httpcontract.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, httpcontract.StateDisabled, status.Broker)
	assert.Equal(t, httpcontract.StateDisabled, status.RabbitMQ)
	assert.Equal(t, httpcontract.StateDisabled, status.Archive)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, httpcontract.RouteTopics, nil))
	assert.JSONEq(t, `{"topics":[]}`, rec.Body.String())
}

type connectedQueue struct{}

func (connectedQueue) IsConnected() bool { return true }
