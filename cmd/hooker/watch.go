package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hooker/internal/relay"
	"hooker/internal/store"
	"hooker/pkg/mqtt"
	"hooker/pkg/pubsub"
	"hooker/pkg/topic"
)

// brokerClient builds a pub/sub client over MQTT. An empty hookID scopes
// the broker credentials to the whole account.
func (c *Context) brokerClient(hookID string) *pubsub.Client {
	transport := mqtt.NewTransport(
		mqtt.WithQoS(byte(c.Config.MQTTQoS)),
		mqtt.WithLogger(c.Logger.WithPrefix("mqtt")),
	)
	logger := c.Logger.WithPrefix("pubsub")
	return pubsub.New(pubsub.APICredentials(c.API(), hookID), transport,
		pubsub.WithLogger(logger),
		pubsub.WithSubscribeTimeout(time.Duration(c.Config.SubscribeTimeoutSeconds)*time.Second),
		pubsub.WithErrorHandler(func(err error) {
			logger.Warn("Message dropped", "error", err)
		}),
	)
}

// defaultPatterns picks the patterns to use when none are given.
func (c *Context) defaultPatterns(hookID string) []string {
	switch {
	case hookID != "":
		return []string{topic.Hooks.All(hookID)}
	case c.Config.UserID != "":
		return []string{topic.User(c.Config.UserID).All(topic.Any)}
	}
	return nil
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// printSink writes every message to the terminal.
type printSink struct {
	out io.Writer
	raw bool
}

func (s *printSink) Name() string { return "stdout" }

func (s *printSink) Handle(_ context.Context, msg pubsub.Message) error {
	if s.raw {
		_, err := fmt.Fprintf(s.out, "%s %s\n", msg.Topic, msg.Payload)
		return err
	}

	info := topic.Classify(msg.Topic)
	body, err := json.MarshalIndent(msg.Value, "", "  ")
	if err != nil {
		body = msg.Payload
	}
	_, err = fmt.Fprintf(s.out, "[%s] %s %s\n%s\n", time.Now().Format("15:04:05"), info.Kind, msg.Topic, body)
	return err
}

// WatchCmd subscribes to live notifications and prints them.
type WatchCmd struct {
	Patterns []string `arg:"" optional:"" help:"Topic patterns (+ and # wildcards); defaults to everything of the profile hook or user"`
	Hook     string   `help:"Scope broker credentials to one hook (defaults to the profile hook)"`
	Raw      bool     `short:"r" help:"Output raw messages without formatting"`
	Archive  bool     `help:"Also archive received events in the local database"`
}

func (c *WatchCmd) Run(ctx *Context) error {
	hookID := c.Hook
	if hookID == "" {
		hookID = ctx.Config.HookID
	}
	patterns := c.Patterns
	if len(patterns) == 0 {
		patterns = ctx.defaultPatterns(hookID)
	}
	if len(patterns) == 0 {
		return errors.New("at least one pattern is required")
	}

	sinks := []relay.Sink{&printSink{out: ctx.Out, raw: c.Raw}}
	if c.Archive {
		db, err := store.New(ctx.Config.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, relay.NewArchiveSink(db, ctx.Logger.WithPrefix("archive")))
	}

	sigCtx, stop := interruptContext()
	defer stop()

	client := ctx.brokerClient(hookID)
	defer client.Close()

	r := relay.New(client, patterns, ctx.Logger.WithPrefix("watch"), sinks...)
	if err := r.Start(sigCtx); err != nil {
		return err
	}
	defer r.Stop()

	if err := client.Connect(sigCtx); err != nil {
		return err
	}

	if !c.Raw {
		ctx.printf("Watching '%s' (Ctrl+C to exit)\n", strings.Join(patterns, "', '"))
		ctx.printf("%s\n", strings.Repeat("-", 40))
	}

	<-sigCtx.Done()
	ctx.printf("\nDisconnecting...\n")
	return nil
}
