package status

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/notify"
)

// BaseRoutingKey is the routing key prefix for every status event.
// When the event carries a client id the key gets it as a suffix, so
// consumers can subscribe per client or to the whole stream.
const BaseRoutingKey = "status.updated"

// snsAPI is the subset of the SNS client the publisher uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher emits lifecycle status events (SUCCESS, FAILED,
// RETRY_EXHAUSTED) to an SNS topic so downstream services can track
// notification outcomes without polling.
type Publisher struct {
	client   snsAPI
	topicARN string
	logger   *zap.Logger
}

// NewPublisher creates an SNS status publisher for the given topic.
func NewPublisher(ctx context.Context, topicARN string, logger *zap.Logger, optFns ...func(*config.LoadOptions) error) (*Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Publisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		logger:   logger,
	}, nil
}

// NewPublisherWithClient creates a publisher over an existing client.
// Used by tests and by LocalStack setups that need a custom endpoint.
func NewPublisherWithClient(client snsAPI, topicARN string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
	}
}

// RoutingKey returns the routing key for an event: the base key, with
// the client id appended when present.
func RoutingKey(event notify.StatusEvent) string {
	if event.ClientID != nil && *event.ClientID != "" {
		return BaseRoutingKey + "." + *event.ClientID
	}
	return BaseRoutingKey
}

// Publish sends a status event to the topic. The trace id rides both
// in the JSON body and as a message attribute so brokers and consumers
// can filter without parsing the payload.
func (p *Publisher) Publish(ctx context.Context, event notify.StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"trace_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.TraceID),
			},
			"routing_key": {
				DataType:    aws.String("String"),
				StringValue: aws.String(RoutingKey(event)),
			},
		},
	}

	if _, err := p.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}

	return nil
}

// PublishSafely publishes an event and swallows any error after
// logging it. Status publication is best-effort: a broker outage must
// never change the outcome of the notification itself.
func (p *Publisher) PublishSafely(ctx context.Context, event notify.StatusEvent) {
	if err := p.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish status event",
			zap.String("trace_id", event.TraceID),
			zap.String("status", string(event.Status)),
			zap.Error(err),
		)
	}
}
