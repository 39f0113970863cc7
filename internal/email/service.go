package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Service sends staff notifications.
type Service interface {
	SendWelcome(ctx context.Context, to, name, clinicName string) error
}

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	dialer sender
	from   string
}

func NewSMTPService(cfg config.MailConfig) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPService) SendWelcome(ctx context.Context, to, name, clinicName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Welcome to %s", clinicName))
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nAn account has been created for you at %s. Sign in with this email address.\n",
		name, clinicName))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

// LogService only logs; used when mail is disabled.
type LogService struct {
	logger *logger.Logger
}

func NewLogService(log *logger.Logger) *LogService {
	return &LogService{logger: log}
}

func (s *LogService) SendWelcome(_ context.Context, to, name, clinicName string) error {
	s.logger.Info("welcome email skipped, mail disabled", "to", to, "clinic", clinicName)
	return nil
}

// New picks the SMTP sender when mail is enabled.
func New(cfg config.MailConfig, log *logger.Logger) Service {
	if cfg.Enabled {
		return NewSMTPService(cfg)
	}
	return NewLogService(log)
}
