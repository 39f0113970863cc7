package messaging

import (
	"context"
)

// Broker fans events out to subscribers.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope written to a channel.
type Message struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// QueueChannel is the channel queue changes of one clinic are published on.
func QueueChannel(clinicID string) string {
	return "clinic:" + clinicID + ":queue"
}
