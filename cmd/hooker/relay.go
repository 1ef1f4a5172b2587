package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hooker/internal/httpcontract"
	"hooker/internal/queue"
	"hooker/internal/relay"
	"hooker/internal/store"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Relay Commands
type RelayCmd struct {
	Serve  RelayServeCmd  `cmd:"" help:"Relay live notifications to the archive, RabbitMQ and WebSocket clients"`
	Status RelayStatusCmd `cmd:"" help:"Check a running relay"`
	Topics RelayTopicsCmd `cmd:"" help:"List the patterns a running relay subscribes"`
	Tail   RelayTailCmd   `cmd:"" help:"Stream messages from a running relay"`
}

type RelayServeCmd struct {
	Patterns  []string `arg:"" optional:"" help:"Topic patterns to relay (defaults to the profile patterns, hook or user)"`
	Hook      string   `help:"Scope broker credentials to one hook (defaults to the profile hook)"`
	AMQP      bool     `name:"amqp" help:"Republish to the RabbitMQ exchange" env:"HOOKER_RELAY_AMQP"`
	NoArchive bool     `help:"Do not archive events locally"`
}

func (c *RelayServeCmd) Run(ctx *Context) error {
	cfg := ctx.Config
	logger := ctx.Logger.WithPrefix("relay")

	hookID := c.Hook
	if hookID == "" {
		hookID = cfg.HookID
	}
	patterns := c.Patterns
	if len(patterns) == 0 {
		patterns = cfg.RelayPatterns
	}
	if len(patterns) == 0 {
		patterns = ctx.defaultPatterns(hookID)
	}

	hub := relay.NewHub(cfg.WSBufferSize, logger)
	sinks := []relay.Sink{hub}
	deps := relay.Deps{Hub: hub}

	if !c.NoArchive {
		db, err := store.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer db.Close()
		logger.Info("Connected to SQLite", "path", cfg.DBPath)

		sinks = append(sinks, relay.NewArchiveSink(db, ctx.Logger.WithPrefix("archive")))
		deps.Archive = db
		deps.Consumers = db
	}

	if c.AMQP {
		mq, err := queue.NewClient(cfg.AMQPURL(), queue.Config{Exchange: cfg.Exchange, MessageTTL: cfg.MessageTTL})
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer mq.Close()
		logger.Info("Connected to RabbitMQ", "exchange", mq.Exchange())

		sinks = append(sinks, relay.NewQueueSink(mq, ctx.Logger.WithPrefix("amqp")))
		deps.Queue = mq
	}

	sigCtx, stop := interruptContext()
	defer stop()

	client := ctx.brokerClient(hookID)
	defer client.Close()

	r := relay.New(client, patterns, logger, sinks...)
	if err := r.Start(sigCtx); err != nil {
		return err
	}
	defer r.Stop()
	deps.Relay = r

	if err := client.Connect(sigCtx); err != nil {
		return err
	}

	srv := relay.NewServer(relay.ServerConfig{
		Port:              cfg.RelayPort,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeout) * time.Second,
		WS: relay.WSConfig{
			Token:          cfg.RelayToken,
			AllowedOrigins: cfg.RelayAllowedOrigins,
			WriteTimeout:   time.Duration(cfg.WSWriteTimeoutSeconds) * time.Second,
		},
	}, deps, logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start relay server: %w", err)
	}

	<-sigCtx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// RelayClient holds the flags shared by commands that query a running relay.
type RelayClient struct {
	URL        string `help:"Relay base URL (defaults to localhost on the configured port)"`
	RelayToken string `help:"Relay or consumer token" env:"HOOKER_RELAY_TOKEN"`
}

func (r *RelayClient) baseURL(ctx *Context) string {
	if r.URL != "" {
		return strings.TrimSuffix(r.URL, "/")
	}
	return "http://localhost:" + ctx.Config.RelayPort
}

func (r *RelayClient) wsURL(ctx *Context) string {
	u := r.baseURL(ctx)
	if rest, ok := strings.CutPrefix(u, "http"); ok {
		return "ws" + rest
	}
	return u
}

func (r *RelayClient) get(ctx *Context, path string, out any) error {
	reqCtx, cancel := ctx.Request()
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, r.baseURL(ctx)+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("relay error: %s", body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// RelayStatusCmd checks the relay health.
type RelayStatusCmd struct {
	RelayClient `embed:""`
}

func (c *RelayStatusCmd) Run(ctx *Context) error {
	var status httpcontract.StatusResponse
	if err := c.get(ctx, httpcontract.RouteStatus, &status); err != nil {
		return err
	}

	ctx.printf("Status:      %s\n", status.Status)
	ctx.printf("Uptime:      %s\n", status.Uptime)
	ctx.printf("Started:     %s\n", status.StartedAt.Format(time.RFC3339))
	ctx.printf("Broker:      %s\n", status.Broker)
	ctx.printf("RabbitMQ:    %s\n", status.RabbitMQ)
	ctx.printf("Archive:     %s\n", status.Archive)
	ctx.printf("Connections: %d\n", status.Connections)
	return nil
}

// RelayTopicsCmd lists relayed patterns.
type RelayTopicsCmd struct {
	RelayClient `embed:""`
}

func (c *RelayTopicsCmd) Run(ctx *Context) error {
	var topics httpcontract.TopicsResponse
	if err := c.get(ctx, httpcontract.RouteTopics, &topics); err != nil {
		return err
	}

	if len(topics.Topics) == 0 {
		ctx.printf("No active topics\n")
		return nil
	}
	ctx.printf("Active topics:\n")
	for _, t := range topics.Topics {
		ctx.printf("  - %s\n", t)
	}
	return nil
}

// RelayTailCmd subscribes to a running relay over WebSocket.
type RelayTailCmd struct {
	RelayClient `embed:""`
	Patterns []string `arg:"" help:"Topic patterns to stream"`
	Raw      bool     `short:"r" help:"Output raw payloads without formatting"`
}

func (c *RelayTailCmd) Run(ctx *Context) error {
	// "#" would start a URL fragment.
	u := c.wsURL(ctx) + httpcontract.RouteSubscribe + "?" + httpcontract.QueryParamTopics + "=" +
		strings.ReplaceAll(strings.Join(c.Patterns, ","), "#", url.QueryEscape("#"))

	sigCtx, stop := interruptContext()
	defer stop()

	opts := &websocket.DialOptions{}
	if c.RelayToken != "" {
		opts.HTTPHeader = http.Header{httpcontract.HeaderAuthorization: []string{httpcontract.BearerPrefix + c.RelayToken}}
	}

	conn, _, err := websocket.Dial(sigCtx, u, opts)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ack httpcontract.AuthOKFrame
	if err := wsjson.Read(sigCtx, conn, &ack); err != nil {
		return fmt.Errorf("subscription refused: %w", err)
	}
	if !c.Raw {
		ctx.printf("Subscribed to '%s' as %s (Ctrl+C to exit)\n", strings.Join(ack.Topics, "', '"), ack.Consumer)
		ctx.printf("%s\n", strings.Repeat("-", 40))
	}

	for {
		var frame httpcontract.MessageFrame
		if err := wsjson.Read(sigCtx, conn, &frame); err != nil {
			if sigCtx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("connection error: %w", err)
		}

		if c.Raw {
			ctx.printf("%s\n", frame.Payload)
		} else {
			ctx.printf("[%s] %s %s\n", time.Now().Format("15:04:05"), frame.Topic, frame.Payload)
		}
	}
}
