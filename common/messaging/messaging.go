// Package messaging provides abstractions for message broker communication.
// It defines interfaces that allow services to publish messages without
// being coupled to a specific broker implementation.
package messaging

import (
	"context"
	"time"
)

// Message represents a message sent to a message broker.
type Message struct {
	// Subject is the topic/channel the message is published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was published.
	Timestamp time.Time
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends a message to the specified subject. Fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte, opts ...PublishOption) error

	// IsConnected returns true if the publisher can reach the broker.
	IsConnected() bool

	// Close flushes pending messages and releases the connection.
	Close() error
}

// PublishOption configures message publishing behavior.
type PublishOption func(*PublishOptions)

// PublishOptions is the resolved set of options for one publish.
type PublishOptions struct {
	Headers map[string]string
}

// WithHeader adds a header to the published message.
func WithHeader(key, value string) PublishOption {
	return func(o *PublishOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		o.Headers[key] = value
	}
}

// ApplyPublishOptions resolves opts in order; later headers win.
func ApplyPublishOptions(opts ...PublishOption) PublishOptions {
	var o PublishOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
