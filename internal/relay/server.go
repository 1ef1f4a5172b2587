package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"hooker/internal/httpcontract"

	"github.com/charmbracelet/log"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WS                WSConfig
}

// Deps are the components the server reports on. Optional ones may be nil.
type Deps struct {
	Relay     *Relay
	Hub       *Hub
	Consumers ConsumerLookup
	Queue     interface{ IsConnected() bool }
	Archive   interface{ Ping(ctx context.Context) error }
}

// Server exposes the WebSocket relay and status routes.
type Server struct {
	cfg       ServerConfig
	deps      Deps
	startedAt time.Time
	logger    *log.Logger

	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a server; Start begins listening.
func NewServer(cfg ServerConfig, deps Deps, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default().WithPrefix("relay")
	}
	return &Server{
		cfg:       cfg,
		deps:      deps,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	status := &StatusHandler{
		StartedAt:   s.startedAt,
		Connections: s.deps.Hub.Count,
	}
	if s.deps.Relay != nil {
		status.Broker = s.deps.Relay.BrokerState
		status.Topics = s.deps.Relay.Topics
	}
	if q := s.deps.Queue; q != nil {
		status.RabbitMQ = func() string {
			if q.IsConnected() {
				return httpcontract.StateConnected
			}
			return httpcontract.StateDisconnected
		}
	}
	if a := s.deps.Archive; a != nil {
		status.Archive = func(r *http.Request) string {
			if err := a.Ping(r.Context()); err != nil {
				return httpcontract.StateError
			}
			return httpcontract.StateOK
		}
	}

	ws := NewWSHandler(s.deps.Hub, s.deps.Consumers, s.cfg.WS)

	mux.HandleFunc(httpcontract.RouteStatus, status.Status)
	mux.HandleFunc(httpcontract.RouteTopics, status.TopicsList)
	mux.HandleFunc(httpcontract.RouteSubscribe, ws.Subscribe)

	return middlewareLog(s.logger, mux)
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start() error {
	if s.cfg.WS.Token == "" && s.deps.Consumers == nil {
		s.logger.Warn("Relay has no token configured, WebSocket clients are not authenticated")
	}

	ln, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	s.logger.Info("Listening on TCP", "addr", s.addr.String())

	// No WriteTimeout: WebSocket streams are long-lived.
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("TCP Server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down relay server...")
	return s.httpServer.Shutdown(ctx)
}
