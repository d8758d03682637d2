// Package pubsub republishes derived session events on a message bus so that
// consumers other than in-process subscribers (the websocket stream, future
// exporters) can follow them.
package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// ID is a uuid assigned on publish when empty.
	ID string
	// Topic identifies the channel the message belongs to (e.g. "cooldown.on").
	Topic string
	// Payload is the JSON encoded event.
	Payload []byte
	// Metadata carries the event tag and timestamp.
	Metadata map[string]string
}

// Handler processes a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe starts delivering messages on topic to handler in the
	// background until ctx is canceled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
