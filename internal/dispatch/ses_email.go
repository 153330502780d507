package dispatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/notify"
)

// SESEmailSender delivers the EMAIL channel via AWS SES.
type SESEmailSender struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

// NewSESEmailSender creates an SES-backed email sender.
func NewSESEmailSender(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESEmailSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}

	return &SESEmailSender{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

// Send sends the rendered subject and body as an email.
func (s *SESEmailSender) Send(ctx context.Context, d *Delivery) error {
	if d.Channel != notify.ChannelEmail {
		return &notify.DispatchError{
			Provider: "ses",
			Err:      fmt.Errorf("ses sender only supports EMAIL, got %q", d.Channel),
		}
	}

	subject := ""
	if d.Subject != nil {
		subject = *d.Subject
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{d.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(d.Body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return &notify.DispatchError{Provider: "ses", Err: err}
	}

	s.logger.Info("email sent via SES",
		zap.String("recipient", d.Recipient),
		zap.String("slug", d.Template.Slug),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

// SupportsChannel reports whether this sender covers the channel.
func (s *SESEmailSender) SupportsChannel(channel notify.Channel) bool {
	return channel == notify.ChannelEmail
}
