package pubsub

import "sync"

// Subscription is the cancellation handle for one (pattern, listener) pair.
type Subscription struct {
	client   *Client
	pattern  string
	listener *Listener
	once     sync.Once
}

func (c *Client) newSubscription(pattern string, l *Listener) *Subscription {
	return &Subscription{client: c, pattern: pattern, listener: l}
}

// Pattern returns the pattern the listener was registered under.
func (s *Subscription) Pattern() string { return s.pattern }

// Cancel removes the listener from the pattern. The last listener of a
// pattern also unsubscribes it at the broker, without waiting for the reply.
// Repeated calls do nothing.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.client.remove(s.pattern, s.listener)
	})
}
