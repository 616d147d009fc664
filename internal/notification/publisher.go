package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Event is the envelope published for every domain event.
type Event struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// PubSubPublisher emits domain events (update.sent, agent.run.completed...)
// to a Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	log    *zap.Logger
	now    func() time.Time
}

func NewPubSubPublisher(ctx context.Context, projectID, topicID, credentialsFile string, log *zap.Logger) (*PubSubPublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	p, err := NewPubSubPublisherWithClient(ctx, client, topicID, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return p, nil
}

// NewPubSubPublisherWithClient uses an existing client, creating the topic
// when it does not exist yet.
func NewPubSubPublisherWithClient(ctx context.Context, client *pubsub.Client, topicID string, log *zap.Logger) (*PubSubPublisher, error) {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("create topic %s: %w", topicID, err)
		}
		log.Info("Created Pub/Sub topic", zap.String("topic", topicID))
	}

	return &PubSubPublisher{
		client: client,
		topic:  topic,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Publish blocks until the server acknowledges the message.
func (p *PubSubPublisher) Publish(ctx context.Context, eventType, tenantID string, payload any) error {
	data, err := json.Marshal(Event{
		Type:       eventType,
		TenantID:   tenantID,
		OccurredAt: p.now(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":      eventType,
			"tenant_id": tenantID,
		},
	})
	id, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.log.Debug("Event published",
		zap.String("event", eventType),
		zap.String("tenant_id", tenantID),
		zap.String("message_id", id),
	)
	return nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
