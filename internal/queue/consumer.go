package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/engine"
	"github.com/vibesoft/herald/internal/metrics"
	"github.com/vibesoft/herald/internal/notify"
)

// Consumer long-polls the request queue and drives each message
// through the processing pipeline: validate, deduplicate, pre-validate
// the template, then deliver under the retry policy. Messages that
// fail terminally go to the dead-letter queue with diagnostics.
type Consumer struct {
	client      sqsAPI
	queueURL    string
	processor   *engine.Processor
	ledger      engine.LedgerStore
	resolver    engine.TemplateResolver
	retry       RetryPolicy
	recoverer   *Recoverer
	concurrency int
	logger      *zap.Logger

	inFlight atomic.Int64
}

// ConsumerConfig groups the consumer's collaborators.
type ConsumerConfig struct {
	Client      sqsAPI
	QueueURL    string
	Processor   *engine.Processor
	Ledger      engine.LedgerStore
	Resolver    engine.TemplateResolver
	Retry       RetryPolicy
	Recoverer   *Recoverer
	Concurrency int
	Logger      *zap.Logger
}

// NewConsumer creates a queue consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Consumer{
		client:      cfg.Client,
		queueURL:    cfg.QueueURL,
		processor:   cfg.Processor,
		ledger:      cfg.Ledger,
		resolver:    cfg.Resolver,
		retry:       cfg.Retry,
		recoverer:   cfg.Recoverer,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Run starts the receive loops and blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("queue consumer starting",
		zap.String("queue_url", c.queueURL),
		zap.Int("concurrency", c.concurrency),
	)

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.receiveLoop(ctx, worker)
		}(i)
	}
	wg.Wait()
	c.logger.Info("queue consumer stopped")
}

func (c *Consumer) receiveLoop(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   60,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("queue receive failed",
				zap.Int("worker", worker),
				zap.Error(err),
			)
			continue
		}

		for _, raw := range result.Messages {
			metrics.SetQueueMessagesInFlight(int(c.inFlight.Add(1)))
			c.handle(ctx, *raw.Body, *raw.ReceiptHandle)
			metrics.SetQueueMessagesInFlight(int(c.inFlight.Add(-1)))
		}
	}
}

// handle processes one message. Deleting the message acknowledges it;
// returning without deleting lets the broker redeliver after the
// visibility timeout.
func (c *Consumer) handle(ctx context.Context, body, receiptHandle string) {
	msg, err := ParseMessage([]byte(body))
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		c.logger.Warn("rejecting invalid message", zap.Error(err))
		if c.recoverer.Reject(ctx, body, err) == nil {
			c.ack(ctx, receiptHandle)
		}
		return
	}

	seen, err := c.ledger.Seen(ctx, msg.TraceID)
	if err != nil {
		c.logger.Error("ledger lookup failed, leaving message for redelivery",
			zap.String("trace_id", msg.TraceID),
			zap.Error(err),
		)
		return
	}
	if seen {
		c.logger.Info("duplicate message acknowledged",
			zap.String("trace_id", msg.TraceID),
		)
		metrics.RecordIdempotencyHit()
		c.ack(ctx, receiptHandle)
		return
	}

	// Pre-flight the template before the ledger mark so a missing
	// template exhausts its retries without consuming the trace id.
	req := msg.Request()
	if err := c.retry.Execute(ctx, func(ctx context.Context) error {
		_, err := c.resolver.Resolve(ctx, req.Slug, req.Language, req.Channel)
		return err
	}); err != nil {
		c.logger.Error("template pre-validation failed",
			zap.String("trace_id", msg.TraceID),
			zap.String("slug", msg.Slug),
			zap.Error(err),
		)
		if c.recoverer.Exhausted(ctx, body, msg, err) == nil {
			c.ack(ctx, receiptHandle)
		}
		return
	}

	log, duplicate, err := c.processor.Intake(ctx, req)
	if duplicate {
		metrics.RecordIdempotencyHit()
		c.ack(ctx, receiptHandle)
		return
	}
	if err != nil {
		var vErr *notify.ValidationError
		if errors.As(err, &vErr) {
			if c.recoverer.Reject(ctx, body, err) == nil {
				c.ack(ctx, receiptHandle)
			}
			return
		}
		c.logger.Error("intake failed, leaving message for redelivery",
			zap.String("trace_id", msg.TraceID),
			zap.Error(err),
		)
		return
	}

	deliverErr := c.retry.Execute(ctx, func(ctx context.Context) error {
		return c.processor.Deliver(ctx, req)
	})
	c.processor.Finish(ctx, log, req, deliverErr)

	if deliverErr != nil {
		if c.recoverer.Exhausted(ctx, body, msg, deliverErr) != nil {
			// DLQ copy lost; the log row is terminal, so ack anyway to
			// avoid reprocessing a FAILED notification.
			c.logger.Error("exhausted message could not be dead-lettered",
				zap.String("trace_id", msg.TraceID),
			)
		}
	}
	c.ack(ctx, receiptHandle)
}

func (c *Consumer) ack(ctx context.Context, receiptHandle string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		c.logger.Error("failed to delete message", zap.Error(err))
	}
}
