// Package notify contains the restock notification sinks.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/restockd/restockd/internal/watch"
)

// LogSink emits structured logs for restock events. It is useful during
// development or where no delivery backend is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// EmitRestock logs the event using structured fields.
func (s *LogSink) EmitRestock(_ context.Context, event watch.RestockEvent) {
	s.logger.Info("restock detected",
		zap.String("product_id", event.ProductID),
		zap.String("name", event.Name),
		zap.String("brand", event.Brand),
		zap.String("url", event.URL),
	)
}
