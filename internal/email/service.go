package email

import (
	"context"

	"github.com/billbridge/billbridge/internal/logger"
)

// Service sends customer lifecycle notifications. Failures are reported to
// the caller but callers are expected to treat them as non-fatal.
type Service interface {
	SendEmail(ctx context.Context, req SendEmailRequest) (*SendEmailResponse, error)
}

type emailService struct {
	client *EmailClient
	logger *logger.Logger
}

// NewService creates a new email service
func NewService(client *EmailClient, logger *logger.Logger) Service {
	return &emailService{
		client: client,
		logger: logger,
	}
}

func (s *emailService) SendEmail(ctx context.Context, req SendEmailRequest) (*SendEmailResponse, error) {
	if !s.client.IsEnabled() {
		s.logger.Warnw("email client is disabled, skipping email send",
			"to", req.ToAddress,
			"subject", req.Subject,
		)
		return &SendEmailResponse{
			Success: false,
			Error:   "email client is disabled",
		}, nil
	}

	if req.FromAddress == "" {
		req.FromAddress = s.client.GetFromAddress()
	}

	messageID, err := s.client.SendEmail(ctx, req)
	if err != nil {
		s.logger.Errorw("failed to send email",
			"error", err,
			"to", req.ToAddress,
			"subject", req.Subject,
		)
		return &SendEmailResponse{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	s.logger.Infow("email sent successfully",
		"message_id", messageID,
		"to", req.ToAddress,
		"subject", req.Subject,
	)

	return &SendEmailResponse{
		MessageID: messageID,
		Success:   true,
	}, nil
}
