package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hooker/internal/queue"
	"hooker/internal/store"
	"hooker/pkg/password"
)

func (c *Context) openStore() (*store.Store, error) {
	db, err := store.New(c.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", c.Config.DBPath, err)
	}
	return db, nil
}

// Archive Commands
type ArchiveCmd struct {
	List  ArchiveListCmd  `cmd:"" help:"List archived events, newest first"`
	Show  ArchiveShowCmd  `cmd:"" help:"Show one archived event with its forwards"`
	Count ArchiveCountCmd `cmd:"" help:"Count archived events"`
}

type ArchiveListCmd struct {
	Hook   string `help:"Only events of this hook"`
	Limit  int    `short:"n" default:"50" help:"Maximum events to show"`
	Before int64  `help:"Only events older than this millisecond timestamp"`
}

func (c *ArchiveListCmd) Run(ctx *Context) error {
	db, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.ListEvents(context.Background(), store.EventFilter{HookID: c.Hook, Before: c.Before, Limit: c.Limit})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		ctx.printf("No archived events\n")
		return nil
	}
	for _, ev := range events {
		ctx.printf("  %s %s %s %-6s %s%s\n", ev.ID, ev.HookID, formatMillis(ev.Timestamp), ev.Method, ev.Path, query(ev.Querystring))
	}
	return nil
}

type ArchiveShowCmd struct {
	ID string `arg:"" help:"Event ID"`
}

func (c *ArchiveShowCmd) Run(ctx *Context) error {
	db, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ev, err := db.GetEvent(context.Background(), c.ID)
	if err != nil {
		return err
	}
	if ev == nil {
		return fmt.Errorf("event %s: %w", c.ID, store.ErrNotFound)
	}
	forwards, err := db.ListForwards(context.Background(), c.ID)
	if err != nil {
		return err
	}

	if err := ctx.printJSON(ev); err != nil {
		return err
	}
	for _, f := range forwards {
		ctx.printf("  forward %s -> %s: %s\n", f.ID, f.TargetURL, f.Status)
	}
	return nil
}

type ArchiveCountCmd struct {
	Hook string `arg:"" optional:"" help:"Only count events of this hook"`
}

func (c *ArchiveCountCmd) Run(ctx *Context) error {
	db, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.CountEvents(context.Background(), c.Hook)
	if err != nil {
		return err
	}
	ctx.printf("%d\n", n)
	return nil
}

// Consumer Commands
type ConsumersCmd struct {
	Create ConsumersCreateCmd `cmd:"" help:"Create a relay consumer"`
	List   ConsumersListCmd   `cmd:"" help:"List relay consumers"`
	Delete ConsumersDeleteCmd `cmd:"" help:"Delete a relay consumer"`
}

type ConsumersCreateCmd struct {
	Name     string `arg:"" help:"Name of the consumer"`
	Patterns string `help:"Comma separated list of patterns the consumer may subscribe to" required:""`
}

func (c *ConsumersCreateCmd) Run(ctx *Context) error {
	var patterns []string
	for _, p := range strings.Split(c.Patterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return errors.New("at least one pattern is required")
	}

	db, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	token, err := store.GenerateToken()
	if err != nil {
		return err
	}
	consumer, err := db.CreateConsumer(context.Background(), c.Name, token, patterns)
	if err != nil {
		return err
	}

	ctx.printf("Consumer created: %s (ID: %d)\n", consumer.Name, consumer.ID)
	ctx.printf("Token: %s\n", token)
	ctx.printf("SAVE THIS TOKEN! It will not be shown again.\n")
	return nil
}

type ConsumersListCmd struct{}

func (c *ConsumersListCmd) Run(ctx *Context) error {
	db, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	consumers, err := db.ListConsumers(context.Background())
	if err != nil {
		return err
	}

	ctx.printf("Consumers:\n")
	for _, cs := range consumers {
		ctx.printf("  %d: %s (Patterns: %s)\n", cs.ID, cs.Name, strings.Join(cs.Patterns, ","))
	}
	return nil
}

type ConsumersDeleteCmd struct {
	ID int64 `arg:"" help:"ID of the consumer to delete"`
}

func (c *ConsumersDeleteCmd) Run(ctx *Context) error {
	db, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteConsumer(context.Background(), c.ID); err != nil {
		return err
	}
	ctx.printf("Consumer %d deleted\n", c.ID)
	return nil
}

// Queue Commands
type QueueCmd struct {
	Tail QueueTailCmd `cmd:"" help:"Consume relayed messages from a durable queue"`
}

type QueueTailCmd struct {
	Consumer string   `arg:"" help:"Queue owner; the same name resumes the same queue"`
	Patterns []string `arg:"" help:"Topic patterns to bind"`
	Raw      bool     `short:"r" help:"Output raw payloads without formatting"`
}

func (c *QueueTailCmd) Run(ctx *Context) error {
	cfg := ctx.Config
	mq, err := queue.NewClient(cfg.AMQPURL(), queue.Config{Exchange: cfg.Exchange, MessageTTL: cfg.MessageTTL})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer mq.Close()

	msgs, err := mq.Subscribe(c.Consumer, c.Patterns)
	if err != nil {
		return err
	}

	sigCtx, stop := interruptContext()
	defer stop()

	if !c.Raw {
		ctx.printf("Consuming %s on %s (Ctrl+C to exit)\n", queue.QueueName(c.Consumer), mq.Exchange())
		ctx.printf("%s\n", strings.Repeat("-", 40))
	}

	for {
		select {
		case <-sigCtx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("queue channel closed")
			}
			if c.Raw {
				ctx.printf("%s\n", d.Body)
			} else {
				ctx.printf("[%s] %s %s\n", d.Timestamp.Format("15:04:05"), queue.DeliveryTopic(d), d.Body)
			}
			if err := d.Ack(false); err != nil {
				ctx.Logger.Warn("Failed to ack message", "error", err)
			}
		}
	}
}

// Password Commands
type PasswordCmd struct {
	Check PasswordCheckCmd `cmd:"" help:"Check a password against the service rules"`
}

type PasswordCheckCmd struct {
	Password string `arg:"" help:"Password to check"`
}

func (c *PasswordCheckCmd) Run(ctx *Context) error {
	res := password.Validate(c.Password)
	ctx.printf("Strength: %s\n", password.Strength(c.Password))
	if res.Valid {
		ctx.printf("Valid\n")
		return nil
	}
	for _, e := range res.Errors {
		ctx.printf("  - %s\n", e)
	}
	return res.Err()
}
