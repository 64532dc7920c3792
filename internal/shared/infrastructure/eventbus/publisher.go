// Package eventbus moves domain events from the outbox to a message
// broker.
package eventbus

import "context"

// Publisher hands a serialised event to the broker under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close releases the broker connection.
	Close() error
}
