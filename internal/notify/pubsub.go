package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/restockd/restockd/internal/watch"
)

const publishTimeout = 10 * time.Second

// PubSubSink publishes restock events to a Google Cloud Pub/Sub topic.
// Delivery is best-effort: publish failures are logged, never surfaced to
// the check pipeline.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubSink creates a client for the project and binds the topic.
func NewPubSubSink(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSubSink, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return NewPubSubSinkWithClient(client, topicID, logger)
}

// NewPubSubSinkWithClient binds the topic on an existing client (primarily
// for testing against a fake server).
func NewPubSubSinkWithClient(client *pubsub.Client, topicID string, logger *zap.Logger) (*PubSubSink, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if topicID == "" {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubSink{
		client: client,
		topic:  client.Topic(topicID),
		logger: logger,
	}, nil
}

// EmitRestock marshals the event to JSON and publishes it. The server ack is
// awaited on a separate goroutine so the check pipeline never waits on
// delivery.
func (s *PubSubSink) EmitRestock(ctx context.Context, event watch.RestockEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal restock event", zap.Error(err))
		return
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"product_id": event.ProductID},
	})
	go s.confirm(event.ProductID, result)
}

// confirm logs the publish outcome. It runs detached from the caller's
// context so a finished check does not abandon an in-flight confirmation.
func (s *PubSubSink) confirm(productID string, result *pubsub.PublishResult) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	id, err := result.Get(ctx)
	if err != nil {
		s.logger.Error("publish restock event",
			zap.String("product_id", productID),
			zap.Error(err))
		return
	}
	s.logger.Debug("restock event published",
		zap.String("product_id", productID),
		zap.String("message_id", id))
}

// Close stops the topic's publish goroutines and closes the client.
func (s *PubSubSink) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
