package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"crowdfund-server/internal/clients/mail"
	"crowdfund-server/internal/observability"
)

var (
	ErrInvalidEmailAddress = errors.New("invalid email address")
	ErrSendingEmail        = errors.New("error sending email")
	ErrEmptyTemplate       = errors.New("email template is empty")
)

// EmailService handles sending contribution and campaign emails
type EmailService struct {
	mailClient *mail.ResendClient
	logger     *observability.Logger
	templates  map[string]string
}

// TemplateData represents the data that can be used in templates
type TemplateData struct {
	Name         string
	CampaignName string
	Amount       string
	RefundAmount string
	RaisedAmount string
	GoalAmount   string
	RetryLink    string
}

// New creates a new EmailService
func New(mailClient *mail.ResendClient, logger *observability.Logger) *EmailService {
	return &EmailService{
		mailClient: mailClient,
		logger:     logger,
		templates: map[string]string{
			"contribution_receipt": `
			<html>
				<body>
					<h1>Thank you, {{.Name}}!</h1>
					<p>Your contribution of {{.Amount}} to <strong>{{.CampaignName}}</strong> has been received.</p>
					<p>You are making this campaign happen.</p>
				</body>
			</html>
			`,
			"payment_failed": `
			<html>
				<body>
					<h1>Payment Failed</h1>
					<p>Hi {{.Name}},</p>
					<p>We couldn't process your payment of {{.Amount}} for <strong>{{.CampaignName}}</strong>.</p>
					{{if .RetryLink}}<p><a href="{{.RetryLink}}">Try again</a></p>{{end}}
					<p>No money was taken from your account.</p>
				</body>
			</html>
			`,
			"refund_issued": `
			<html>
				<body>
					<h1>Refund Issued</h1>
					<p>Hi {{.Name}},</p>
					<p>A refund of {{.RefundAmount}} for your contribution to <strong>{{.CampaignName}}</strong> is on its way.</p>
					<p>Depending on your payment method it can take a few business days to arrive.</p>
				</body>
			</html>
			`,
			"contribution_cancelled": `
			<html>
				<body>
					<h1>Contribution Cancelled</h1>
					<p>Hi {{.Name}},</p>
					<p>Your contribution of {{.Amount}} to <strong>{{.CampaignName}}</strong> has been cancelled.</p>
					<p>If a payment already went through, a refund will follow automatically.</p>
				</body>
			</html>
			`,
			"reward_delivered": `
			<html>
				<body>
					<h1>Your Reward Is on Its Way</h1>
					<p>Hi {{.Name}},</p>
					<p>The reward for your pledge to <strong>{{.CampaignName}}</strong> has been marked as delivered.</p>
					<p>Thank you for backing this campaign.</p>
				</body>
			</html>
			`,
			"goal_reached": `
			<html>
				<body>
					<h1>Goal Reached!</h1>
					<p>Hi {{.Name}},</p>
					<p><strong>{{.CampaignName}}</strong> has reached its goal of {{.GoalAmount}}.</p>
					<p>Congratulations!</p>
				</body>
			</html>
			`,
			"campaign_ended": `
			<html>
				<body>
					<h1>Campaign Ended</h1>
					<p>Hi {{.Name}},</p>
					<p><strong>{{.CampaignName}}</strong> has reached its deadline and is now complete.</p>
					<p>Total raised: <strong>{{.RaisedAmount}}</strong>.</p>
				</body>
			</html>
			`,
		},
	}
}

// renderTemplate renders a registered template. html/template escapes the
// data fields, so contributor- and campaign-supplied strings cannot inject
// markup into the message body.
func (s *EmailService) renderTemplate(templateName string, data TemplateData) (string, error) {
	templateContent, ok := s.templates[templateName]
	if !ok || templateContent == "" {
		return "", ErrEmptyTemplate
	}

	tmpl, err := template.New(templateName).Parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

// SendEmailWithTemplate renders a registered template and sends it
func (s *EmailService) SendEmailWithTemplate(ctx context.Context, to, subject, templateName string, data TemplateData) error {
	if to == "" {
		return ErrInvalidEmailAddress
	}

	html, err := s.renderTemplate(templateName, data)
	if err != nil {
		s.logger.Error(ctx, "failed to render email template", err)
		return err
	}

	if _, err := s.mailClient.SendEmail(ctx, to, subject, html); err != nil {
		return ErrSendingEmail
	}
	return nil
}

// SendContributionReceiptEmail thanks a contributor for a settled payment
func (s *EmailService) SendContributionReceiptEmail(ctx context.Context, to, name, campaignName, amount string) error {
	return s.SendEmailWithTemplate(ctx, to, "Thank you for your contribution", "contribution_receipt", TemplateData{
		Name:         name,
		CampaignName: campaignName,
		Amount:       amount,
	})
}

// SendPaymentFailedEmail tells a contributor their payment did not go through
func (s *EmailService) SendPaymentFailedEmail(ctx context.Context, to, name, campaignName, amount, retryLink string) error {
	return s.SendEmailWithTemplate(ctx, to, "Your payment could not be processed", "payment_failed", TemplateData{
		Name:         name,
		CampaignName: campaignName,
		Amount:       amount,
		RetryLink:    retryLink,
	})
}

// SendRefundIssuedEmail confirms a refund to a contributor
func (s *EmailService) SendRefundIssuedEmail(ctx context.Context, to, name, campaignName, refundAmount string) error {
	return s.SendEmailWithTemplate(ctx, to, "Your refund is on its way", "refund_issued", TemplateData{
		Name:         name,
		CampaignName: campaignName,
		RefundAmount: refundAmount,
	})
}

// SendContributionCancelledEmail confirms a cancellation to a contributor
func (s *EmailService) SendContributionCancelledEmail(ctx context.Context, to, name, campaignName, amount string) error {
	return s.SendEmailWithTemplate(ctx, to, "Your contribution was cancelled", "contribution_cancelled", TemplateData{
		Name:         name,
		CampaignName: campaignName,
		Amount:       amount,
	})
}

// SendRewardDeliveredEmail tells a backer their reward shipped
func (s *EmailService) SendRewardDeliveredEmail(ctx context.Context, to, name, campaignName string) error {
	return s.SendEmailWithTemplate(ctx, to, "Your reward is on its way", "reward_delivered", TemplateData{
		Name:         name,
		CampaignName: campaignName,
	})
}

// SendGoalReachedEmail congratulates a campaign creator
func (s *EmailService) SendGoalReachedEmail(ctx context.Context, to, name, campaignName, goalAmount string) error {
	return s.SendEmailWithTemplate(ctx, to, "Your campaign reached its goal", "goal_reached", TemplateData{
		Name:         name,
		CampaignName: campaignName,
		GoalAmount:   goalAmount,
	})
}

// SendCampaignEndedEmail tells a creator their campaign completed
func (s *EmailService) SendCampaignEndedEmail(ctx context.Context, to, name, campaignName, raisedAmount string) error {
	return s.SendEmailWithTemplate(ctx, to, "Your campaign has ended", "campaign_ended", TemplateData{
		Name:         name,
		CampaignName: campaignName,
		RaisedAmount: raisedAmount,
	})
}
