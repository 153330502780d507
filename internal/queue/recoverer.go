package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/metrics"
	"github.com/vibesoft/herald/internal/notify"
)

// EventPublisher is the status-event sink the recoverer notifies when
// a message burns through its retry budget.
type EventPublisher interface {
	PublishSafely(ctx context.Context, event notify.StatusEvent)
}

// Recoverer forwards undeliverable messages to the dead-letter queue
// with diagnostic attributes, so the original payload survives intact
// for replay.
type Recoverer struct {
	client    sqsAPI
	dlqURL    string
	queueName string
	publisher EventPublisher
	logger    *zap.Logger
}

// NewRecoverer creates a dead-letter recoverer.
func NewRecoverer(client sqsAPI, dlqURL, queueName string, publisher EventPublisher, logger *zap.Logger) *Recoverer {
	return &Recoverer{
		client:    client,
		dlqURL:    dlqURL,
		queueName: queueName,
		publisher: publisher,
		logger:    logger,
	}
}

// Reject forwards a message that failed before intake (malformed body,
// invalid request). No status event: there is no trustworthy trace id
// to publish under. A non-nil return means the forward itself failed
// and the caller should leave the original on the queue.
func (r *Recoverer) Reject(ctx context.Context, body string, cause error) error {
	return r.forward(ctx, body, cause)
}

// Exhausted forwards a message whose processing failed terminally and
// publishes a RETRY_EXHAUSTED event for the caller's trace id.
func (r *Recoverer) Exhausted(ctx context.Context, body string, msg *Message, cause error) error {
	if err := r.forward(ctx, body, cause); err != nil {
		return err
	}
	r.publisher.PublishSafely(ctx, notify.RetryExhaustedEvent(
		msg.TraceID, msg.Channel, cause.Error(), msg.ClientID,
	))
	return nil
}

func (r *Recoverer) forward(ctx context.Context, body string, cause error) error {
	_, err := r.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(r.dlqURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			AttrLastError: {
				DataType:    aws.String("String"),
				StringValue: aws.String(cause.Error()),
			},
			AttrLastErrorTimestamp: {
				DataType:    aws.String("String"),
				StringValue: aws.String(time.Now().UTC().Format(time.RFC3339)),
			},
			AttrOriginalQueue: {
				DataType:    aws.String("String"),
				StringValue: aws.String(r.queueName),
			},
		},
	})
	if err != nil {
		r.logger.Error("failed to forward message to dead-letter queue",
			zap.Error(err),
			zap.String("cause", cause.Error()),
		)
		return err
	}

	metrics.RecordDeadLettered()
	r.logger.Warn("message forwarded to dead-letter queue",
		zap.String("cause", cause.Error()),
		zap.String("original_queue", r.queueName),
	)
	return nil
}
