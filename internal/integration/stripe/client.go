package stripe

import (
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/billbridge/billbridge/internal/config"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/logger"
)

// Client handles Stripe API client setup and webhook verification
type Client struct {
	api           *stripe.Client
	webhookSecret string
	logger        *logger.Logger
}

// NewClient creates a new Stripe client from configuration
func NewClient(cfg *config.Configuration, logger *logger.Logger) *Client {
	return &Client{
		api:           stripe.NewClient(cfg.Stripe.SecretKey, nil),
		webhookSecret: cfg.Stripe.WebhookSecret,
		logger:        logger,
	}
}

// API returns the underlying Stripe API client
func (c *Client) API() *stripe.Client {
	return c.api
}

// VerifyWebhook checks the event signature and parses the payload
func (c *Client) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		c.logger.Errorw("webhook signature verification failed", "error", err)
		return nil, ierr.WithError(err).
			WithHint("Webhook signature verification failed").
			Mark(ierr.ErrValidation)
	}
	return &event, nil
}
