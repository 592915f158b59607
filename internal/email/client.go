package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// EmailClient represents an email client wrapper
type EmailClient struct {
	client      *resend.Client
	enabled     bool
	fromAddress string
}

// Config holds the email client configuration
type Config struct {
	Enabled     bool
	APIKey      string
	FromAddress string
}

// NewEmailClient creates a new email client
func NewEmailClient(cfg Config) *EmailClient {
	if !cfg.Enabled || cfg.APIKey == "" {
		return &EmailClient{
			enabled: false,
		}
	}

	return &EmailClient{
		client:      resend.NewClient(cfg.APIKey),
		enabled:     true,
		fromAddress: cfg.FromAddress,
	}
}

// IsEnabled returns whether the email client is enabled
func (c *EmailClient) IsEnabled() bool {
	return c.enabled
}

// GetFromAddress returns the default from address
func (c *EmailClient) GetFromAddress() string {
	return c.fromAddress
}

// SendEmail sends an email with optional attachments
func (c *EmailClient) SendEmail(ctx context.Context, req SendEmailRequest) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("email client is disabled")
	}

	params := &resend.SendEmailRequest{
		From:    req.FromAddress,
		To:      []string{req.ToAddress},
		Subject: req.Subject,
		Html:    req.HTML,
		Text:    req.Text,
	}

	for _, a := range req.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename: a.Filename,
			Content:  a.Content,
		})
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	return sent.Id, nil
}
