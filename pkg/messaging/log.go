package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// LogBroker writes published messages to the log. It stands in for redis
// when no broker is configured; Subscribe is unsupported.
type LogBroker struct {
	logger *logger.Logger
}

func NewLogBroker(log *logger.Logger) *LogBroker {
	return &LogBroker{logger: log}
}

func (b *LogBroker) Publish(_ context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	b.logger.Debug("message published", "channel", channel, "payload", string(payload))
	return nil
}

func (b *LogBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, fmt.Errorf("log broker does not support subscriptions")
}

func (b *LogBroker) Close() error {
	return nil
}
