package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/outbox"
	"github.com/and161185/cosmetics-shop/internal/validate"
)

// ContactInput is the public contact form.
type ContactInput struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject,omitempty" validate:"max=200"`
	Message string `json:"message" validate:"required,min=10,max=1000"`
}

// ContactService forwards contact form submissions.
type ContactService interface {
	Submit(ctx context.Context, in ContactInput) error
}

// ContactServiceImpl implements ContactService.
type ContactServiceImpl struct {
	mails *mailer.Renderer
	queue outbox.Enqueuer
	log   *zap.Logger
}

// NewContactService constructs ContactService.
func NewContactService(mails *mailer.Renderer, queue outbox.Enqueuer, log *zap.Logger) *ContactServiceImpl {
	return &ContactServiceImpl{mails: mails, queue: queue, log: log}
}

// Submit queues the business copy and an auto-reply. Unlike other mail, a queue failure is returned.
func (s *ContactServiceImpl) Submit(ctx context.Context, in ContactInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validate.Struct(in); err != nil {
		return err
	}
	msg := model.ContactMessage{Name: in.Name, Email: in.Email, Subject: in.Subject, Message: in.Message}

	business, err := s.mails.ContactBusiness(msg)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, business); err != nil {
		return fmt.Errorf("queue contact message: %w", err)
	}
	reply, err := s.mails.ContactAutoReply(msg)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, reply); err != nil {
		return fmt.Errorf("queue contact auto-reply: %w", err)
	}
	s.log.Info("contact message received", zap.String("from", in.Email))
	return nil
}
