package pubsub

import (
	"context"

	"hooker/pkg/api"
)

// SubscribeEvents delivers captured requests, e.g. on topic.Hooks.Events(id).
func (c *Client) SubscribeEvents(ctx context.Context, pattern string, fn func(api.Event) error) (*Subscription, error) {
	return c.Subscribe(ctx, pattern, Decoded(func(_ string, ev api.Event) error {
		return fn(ev)
	}))
}

// SubscribeHooks delivers hook records from the created and updated topics.
func (c *Client) SubscribeHooks(ctx context.Context, pattern string, fn func(api.Hook) error) (*Subscription, error) {
	return c.Subscribe(ctx, pattern, Decoded(func(_ string, h api.Hook) error {
		return fn(h)
	}))
}

// SubscribeDeleted delivers the ids carried by deletion topics.
func (c *Client) SubscribeDeleted(ctx context.Context, pattern string, fn func(topic string, d api.Deleted) error) (*Subscription, error) {
	return c.Subscribe(ctx, pattern, Decoded(fn))
}

// SubscribeForwards delivers forwards from the queued and status-change topics.
func (c *Client) SubscribeForwards(ctx context.Context, pattern string, fn func(api.Forward) error) (*Subscription, error) {
	return c.Subscribe(ctx, pattern, Decoded(func(_ string, f api.Forward) error {
		return fn(f)
	}))
}

// SubscribeForwardAttempts delivers delivery attempts of forwards.
func (c *Client) SubscribeForwardAttempts(ctx context.Context, pattern string, fn func(api.ForwardAttempt) error) (*Subscription, error) {
	return c.Subscribe(ctx, pattern, Decoded(func(_ string, a api.ForwardAttempt) error {
		return fn(a)
	}))
}
