package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// PubSub publishes finished package results to a Google Cloud Pub/Sub
// topic. The channel builder subscribes to pick up new archives.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub creates a client with Application Default Credentials and
// verifies that the topic exists before accepting work.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project id and topic id are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after existence check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client for missing topic", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &PubSub{client: client, topic: topic, logger: logger}, nil
}

// Publish sends the result as a JSON message and waits for the server
// acknowledgement, so a lost notification surfaces as a diagnostic instead
// of disappearing.
func (p *PubSub) Publish(ctx context.Context, result pipeline.PackageResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal package result: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"source_id": result.SourceID,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish package result %s: %w", result.SourceID, err)
	}
	return nil
}

// Close stops the topic's publish goroutines and closes the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
