// Package pubsub delivers live Hooker notifications from the MQTT broker.
//
// A Client keeps a registry of subscription patterns, each with the set of
// listeners registered for it, and keeps the broker's subscriptions in step
// with that registry.
//
// # Patterns
//
// Patterns are slash-separated topics where "+" matches one level and a
// trailing "#" matches any number of levels, including none:
//
//	hooker/hooks/<hookId>/events
//	hooker/hooks/+/forwards/+/status-changes/#
//
// The topic package builds these for every notification the service sends.
//
// # Delivery
//
// Every payload is JSON. A message that does not decode is reported to the
// error handler and no listener sees it. A listener registered under several
// patterns that all match one message is called once for that message.
// Listeners are compared by pointer, so keep the *Listener to register it
// again.
//
// Listeners run synchronously inside the transport's delivery callback. The
// MQTT transport does not order its callbacks: each message is delivered on
// its own goroutine, so listeners can run concurrently and messages can
// arrive out of order. This lets a listener call Subscribe or Cancel without
// blocking delivery.
//
// # Connection lifecycle
//
// Patterns can be registered before Connect; they are subscribed once the
// broker accepts the connection. While connected, Subscribe for a new
// pattern waits for the broker to acknowledge it before returning. After a
// transport reconnect or a Disconnect/Connect cycle, every registered pattern
// is subscribed again without caller involvement. A Disconnect or Close
// that lands while Connect is still running makes Connect fail with
// ErrConnect and tears down whatever session it had opened.
//
// # Usage
//
//	rest := api.New(token)
//	client := pubsub.New(pubsub.APICredentials(rest, hookID), mqtt.NewTransport())
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sub, err := client.SubscribeEvents(ctx, topic.Hooks.Events(hookID),
//	    func(ev api.Event) error {
//	        fmt.Println(ev.Method, ev.Path)
//	        return nil
//	    })
//	if err != nil {
//	    return err
//	}
//	defer sub.Cancel()
package pubsub
