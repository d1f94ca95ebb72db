package interfaces

import "github.com/ternarybob/sitebatch/internal/models"

// Subscriber is one live observer connection attached to a topic. Send must
// be safe for use from the bus delivery goroutine; an error drops the
// subscriber from the topic.
type Subscriber interface {
	Send(envelope models.Envelope) error
}

// NotificationBus bridges status transitions produced in worker context
// into the delivery context of connected observers. The registry is
// process-local; multi-instance deployments need an external fan-out broker
// behind this same interface.
type NotificationBus interface {
	// Connect attaches a subscriber to a topic
	Connect(topic string, sub Subscriber)

	// Disconnect detaches a subscriber; absent subscribers are a no-op
	Disconnect(topic string, sub Subscriber)

	// Publish hands the event to the delivery context without blocking the
	// caller and never returns failures to it. Messages to topics with no
	// subscribers are dropped, not queued.
	Publish(topic, event string, data any)

	// Close stops the delivery loop
	Close() error
}
