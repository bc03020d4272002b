package mail

import (
	"context"
	"fmt"
	"strings"

	"crowdfund-server/internal/observability"

	"github.com/resendlabs/resend-go"
)

// ResendClient wraps the Resend API for transactional contribution and
// campaign emails. All messages go out from the configured sender address.
type ResendClient struct {
	client *resend.Client
	from   string
	logger *observability.Logger
}

func NewResendClient(apiKey, from string, logger *observability.Logger) (*ResendClient, error) {
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	client := resend.NewClient(apiKey)
	if client == nil {
		return nil, fmt.Errorf("failed to create Resend client")
	}

	return &ResendClient{
		client: client,
		from:   from,
		logger: logger,
	}, nil
}

// SendEmail sends one HTML email and returns the provider message id.
func (c *ResendClient) SendEmail(ctx context.Context, to, subject, htmlContent string) (string, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_to", Value: to},
		observability.Field{Key: "email_subject", Value: subject},
	)

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlContent,
	}

	res, err := c.client.Emails.Send(params)
	if err != nil {
		c.logger.Error(ctx, "failed to send email", err)
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Info(ctx, "email sent")
	return res.Id, nil
}
