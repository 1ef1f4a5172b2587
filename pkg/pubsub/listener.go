package pubsub

import "encoding/json"

// Message is one received notification.
type Message struct {
	Topic   string
	Payload json.RawMessage
	// Value is Payload decoded into generic JSON values
	// (map[string]any, []any, float64, string, bool or nil).
	Value any
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Listener is a registered callback. Its identity is its pointer.
//
// Over the MQTT transport each message is handled on its own goroutine, so
// a listener may run concurrently with itself and see messages out of
// order. Listeners that keep state must synchronize it.
type Listener struct {
	handle func(Message) error
}

// Listen wraps fn as a Listener.
func Listen(fn func(Message) error) *Listener {
	return &Listener{handle: fn}
}

// Decoded returns a Listener that unmarshals each payload into T first.
// A payload that does not fit T is reported as a *DecodeError.
func Decoded[T any](fn func(topic string, v T) error) *Listener {
	return Listen(func(m Message) error {
		var v T
		if err := m.Decode(&v); err != nil {
			return &DecodeError{Topic: m.Topic, Payload: m.Payload, Err: err}
		}
		return fn(m.Topic, v)
	})
}
