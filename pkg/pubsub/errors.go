package pubsub

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect wraps every failure of Connect.
	ErrConnect = errors.New("failed to connect to broker")

	// ErrAlreadyConnected is returned by Connect unless the client is disconnected.
	ErrAlreadyConnected = errors.New("client is already connected or connecting")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client is closed")

	// ErrInvalidPattern is returned for patterns that cannot be subscribed to.
	ErrInvalidPattern = errors.New("invalid topic pattern")

	// ErrNilListener is returned when Subscribe gets a nil listener.
	ErrNilListener = errors.New("listener is nil")

	// ErrSubscribe wraps a broker refusal of a new pattern.
	ErrSubscribe = errors.New("failed to subscribe")
)

// DecodeError reports a payload that is not valid JSON.
type DecodeError struct {
	Topic   string
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode payload on %s: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ListenerError reports a listener that returned an error or panicked.
type ListenerError struct {
	Topic string
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener failed on %s: %v", e.Topic, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }
