package testutil

import (
	"context"
	"sync"

	"github.com/billbridge/billbridge/internal/email"
)

// FakeEmailService records every send instead of delivering anything
type FakeEmailService struct {
	mu    sync.Mutex
	sends []email.SendEmailRequest
}

// NewFakeEmailService creates a recording email service
func NewFakeEmailService() *FakeEmailService {
	return &FakeEmailService{}
}

func (s *FakeEmailService) SendEmail(ctx context.Context, req email.SendEmailRequest) (*email.SendEmailResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, req)
	return &email.SendEmailResponse{
		MessageID: "msg_fake",
		Success:   true,
	}, nil
}

// Sends returns every recorded request in order
func (s *FakeEmailService) Sends() []email.SendEmailRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]email.SendEmailRequest, len(s.sends))
	copy(out, s.sends)
	return out
}

// LastSend returns the most recent request, or nil when nothing was sent
func (s *FakeEmailService) LastSend() *email.SendEmailRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sends) == 0 {
		return nil
	}
	req := s.sends[len(s.sends)-1]
	return &req
}

// Clear drops all recorded sends
func (s *FakeEmailService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = nil
}
