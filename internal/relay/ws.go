package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hooker/internal/httpcontract"
	"hooker/internal/store"
	"hooker/pkg/topic"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// Defaults for WSConfig.
const (
	DefaultWSWriteTimeout = 10 * time.Second
	DefaultWSAuthTimeout  = 10 * time.Second
	DefaultWSAuthMaxBytes = 8192
)

// adminConsumer names connections authenticated with the relay token.
const adminConsumer = "admin"

// ConsumerLookup resolves consumer tokens. *store.Store implements it.
type ConsumerLookup interface {
	GetConsumerByToken(ctx context.Context, token string) (*store.Consumer, error)
}

// WSConfig tunes the WebSocket endpoint.
type WSConfig struct {
	// Token admits a client to every pattern. When empty and no consumer
	// lookup is configured, the endpoint is open.
	Token          string
	AllowedOrigins []string
	WriteTimeout   time.Duration
	AuthTimeout    time.Duration
	AuthMaxBytes   int64
}

// WSHandler streams matching broker messages to WebSocket clients.
type WSHandler struct {
	hub       *Hub
	consumers ConsumerLookup
	cfg       WSConfig
	logger    *log.Logger
}

// NewWSHandler creates the WebSocket handler. consumers may be nil.
func NewWSHandler(hub *Hub, consumers ConsumerLookup, cfg WSConfig) *WSHandler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWSWriteTimeout
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultWSAuthTimeout
	}
	if cfg.AuthMaxBytes <= 0 {
		cfg.AuthMaxBytes = DefaultWSAuthMaxBytes
	}
	return &WSHandler{hub: hub, consumers: consumers, cfg: cfg, logger: hub.logger}
}

func (h *WSHandler) authRequired() bool {
	return h.cfg.Token != "" || h.consumers != nil
}

// identity is who a connection authenticated as.
type identity struct {
	name         string
	unrestricted bool
	allowed      []string
}

// authenticate resolves a token, returning nil for unknown tokens.
func (h *WSHandler) authenticate(ctx context.Context, token string) (*identity, error) {
	if h.cfg.Token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.Token)) == 1 {
		return &identity{name: adminConsumer, unrestricted: true}, nil
	}
	if h.consumers == nil {
		return nil, nil
	}
	c, err := h.consumers.GetConsumerByToken(ctx, token)
	if err != nil || c == nil {
		return nil, err
	}
	return &identity{name: c.Name, allowed: c.Patterns}, nil
}

// permits reports whether id may subscribe to pattern: it must be one of the
// consumer's patterns, or a wildcard-free topic one of them matches.
func (id *identity) permits(pattern string) bool {
	if id.unrestricted {
		return true
	}
	for _, a := range id.allowed {
		if pattern == a {
			return true
		}
		if !topic.HasWildcard(pattern) && topic.Match(a, pattern) {
			return true
		}
	}
	return false
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get(httpcontract.HeaderAuthorization)
	if strings.HasPrefix(header, httpcontract.BearerPrefix) {
		return strings.TrimPrefix(header, httpcontract.BearerPrefix)
	}
	return ""
}

// requestedPatterns collects patterns from ?topics= and the path after /ws/.
// A literal "+" in the query is kept as a wildcard rather than read as a
// space; "#" has to be sent as %23.
func requestedPatterns(r *http.Request) []string {
	var requested []string
	q, _ := url.ParseQuery(strings.ReplaceAll(r.URL.RawQuery, "+", "%2B"))
	for _, p := range strings.Split(q.Get(httpcontract.QueryParamTopics), ",") {
		if p = strings.TrimSpace(p); p != "" {
			requested = append(requested, p)
		}
	}
	if p := strings.TrimPrefix(r.URL.Path, httpcontract.RouteSubscribe); p != "" && p != r.URL.Path {
		requested = append(requested, p)
	}

	seen := make(map[string]struct{}, len(requested))
	out := requested[:0]
	for _, p := range requested {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Subscribe handles GET /ws/?topics=p1,p2 and /ws/{pattern}.
func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	patterns := requestedPatterns(r)
	if len(patterns) == 0 {
		http.Error(w, "No topics specified", http.StatusBadRequest)
		return
	}

	var id *identity
	if !h.authRequired() {
		id = &identity{name: "anonymous", unrestricted: true}
	} else if token := extractBearerToken(r); token != "" {
		// Header auth is checked before upgrading.
		var err error
		id, err = h.authenticate(r.Context(), token)
		if err != nil {
			h.logger.Error("Failed to validate bearer token", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if id == nil {
			h.logger.Warn("WebSocket rejected: invalid bearer token", "remote", r.RemoteAddr)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	acceptOpts := &websocket.AcceptOptions{InsecureSkipVerify: true}
	if len(h.cfg.AllowedOrigins) > 0 {
		acceptOpts.OriginPatterns = h.cfg.AllowedOrigins
		acceptOpts.InsecureSkipVerify = false
	}

	conn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		h.logger.Error("Failed to accept websocket", "error", err)
		return
	}

	// Browsers cannot set headers, so they authenticate with a first frame.
	if id == nil {
		id = h.readAuthFrame(r, conn)
		if id == nil {
			return
		}
	}

	for _, p := range patterns {
		if !id.permits(p) {
			h.logger.Warn("Consumer tried to subscribe to unauthorized pattern", "consumer", id.name, "pattern", p)
			conn.Close(websocket.StatusPolicyViolation, "Unauthorized topic: "+p)
			return
		}
	}

	// Registered before the ack so nothing published after it is missed.
	client := newWSClient(uuid.NewString(), id.name, patterns, h.hub.buffer)
	h.hub.add(client)
	defer h.hub.remove(client)

	ack := httpcontract.AuthOKFrame{Type: httpcontract.FrameAuthOK, Consumer: id.name, Topics: patterns}
	if err := h.write(r.Context(), conn, ack); err != nil {
		h.logger.Error("Failed to send auth ack", "error", err)
		conn.Close(websocket.StatusInternalError, "Failed to send ack")
		return
	}
	h.logger.Info("WebSocket client connected", "conn_id", client.id, "consumer", id.name, "topics", patterns, "remote", r.RemoteAddr)

	// The client sends nothing after auth; CloseRead notices when it leaves.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket client disconnected", "conn_id", client.id)
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case frame := <-client.send:
			if err := h.write(ctx, conn, frame); err != nil {
				h.logger.Error("Failed to write to websocket", "conn_id", client.id, "error", err)
				conn.Close(websocket.StatusInternalError, "Write failed")
				return
			}
			h.logger.Debug("Message sent to client", "conn_id", client.id, "topic", frame.Topic)
		}
	}
}

func (h *WSHandler) readAuthFrame(r *http.Request, conn *websocket.Conn) *identity {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.AuthTimeout)
	defer cancel()

	conn.SetReadLimit(h.cfg.AuthMaxBytes)
	_, msg, err := conn.Read(ctx)
	if err != nil {
		h.logger.Warn("WebSocket auth timeout or read error", "remote", r.RemoteAddr, "error", err)
		conn.Close(websocket.StatusPolicyViolation, "Authentication timeout")
		return nil
	}

	var frame httpcontract.AuthFrame
	if err := json.Unmarshal(msg, &frame); err != nil || frame.Type != httpcontract.FrameAuth || frame.Token == "" {
		h.logger.Warn("WebSocket invalid auth message", "remote", r.RemoteAddr)
		conn.Close(websocket.StatusPolicyViolation, "Invalid auth message")
		return nil
	}

	id, err := h.authenticate(ctx, frame.Token)
	if err != nil {
		h.logger.Error("Failed to validate token", "error", err)
		conn.Close(websocket.StatusInternalError, "Internal error")
		return nil
	}
	if id == nil {
		h.logger.Warn("WebSocket connection with invalid token", "remote", r.RemoteAddr)
		conn.Close(websocket.StatusPolicyViolation, "Invalid token")
		return nil
	}
	return id
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
