package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/melodiemoment/api/internal/logger"
)

var (
	ErrDisabled        = errors.New("notification channel disabled")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrRequestFailed   = errors.New("notification request failed")
	ErrRecipientDenied = errors.New("recipient rejected")
)

// Message a rendered email
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// OpsAlerter posts an internal notice.
type OpsAlerter interface {
	Alert(ctx context.Context, text string) error
	Name() string
}

// ConfirmationEmail data for the payment confirmation mail
type ConfirmationEmail struct {
	To            string
	CustomerName  string
	RecipientName string
	OrderNumber   string
	PackageLabel  string
	Total         int
	Rush          bool
}

// DeliveryEmail data for the song delivery mail
type DeliveryEmail struct {
	To            string
	CustomerName  string
	RecipientName string
	OrderNumber   string
	DeliveryURL   string
	ReferralCode  string
	ReferralURL   string
}

// Notifier is the single outbound notification surface.
type Notifier interface {
	EmailEnabled() bool
	SendOrderConfirmation(ctx context.Context, email ConfirmationEmail) error
	SendDelivery(ctx context.Context, email DeliveryEmail) error
	SendCampaignEmail(ctx context.Context, to, subject, body string) error
	NotifyOps(ctx context.Context, text string) error
}

// Service renders German templates and hands them to a mailer and an ops
// alerter. Either may be nil.
type Service struct {
	mailer Mailer
	ops    OpsAlerter
}

// New composes a notifier. With neither channel configured it returns Noop.
func New(mailer Mailer, ops OpsAlerter) Notifier {
	if mailer == nil && ops == nil {
		logger.Warnw("notify_disabled", "reason", "no_channel_configured")
		return Noop{}
	}
	fields := []interface{}{"mailer", "none", "ops", "none"}
	if mailer != nil {
		fields[1] = mailer.Name()
	}
	if ops != nil {
		fields[3] = ops.Name()
	}
	logger.Infow("notify_configured", fields...)
	return &Service{mailer: mailer, ops: ops}
}

func (s *Service) EmailEnabled() bool {
	return s.mailer != nil
}

func (s *Service) SendOrderConfirmation(ctx context.Context, email ConfirmationEmail) error {
	subject, text := renderConfirmation(email)
	return s.send(ctx, Message{To: email.To, Subject: subject, Text: text, HTML: textToHTML(text)})
}

func (s *Service) SendDelivery(ctx context.Context, email DeliveryEmail) error {
	subject, text := renderDelivery(email)
	return s.send(ctx, Message{To: email.To, Subject: subject, Text: text, HTML: textToHTML(text)})
}

func (s *Service) SendCampaignEmail(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, Message{To: to, Subject: subject, Text: body, HTML: textToHTML(body)})
}

func (s *Service) NotifyOps(ctx context.Context, text string) error {
	if s.ops == nil {
		return ErrDisabled
	}
	return s.ops.Alert(ctx, text)
}

func (s *Service) send(ctx context.Context, msg Message) error {
	if s.mailer == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(msg.To) == "" {
		return ErrInvalidEmail
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", s.mailer.Name(), err)
	}
	return nil
}

// Noop drops everything.
type Noop struct{}

func (Noop) EmailEnabled() bool { return false }

func (Noop) SendOrderConfirmation(context.Context, ConfirmationEmail) error { return ErrDisabled }

func (Noop) SendDelivery(context.Context, DeliveryEmail) error { return ErrDisabled }

func (Noop) SendCampaignEmail(context.Context, string, string, string) error { return ErrDisabled }

func (Noop) NotifyOps(context.Context, string) error { return ErrDisabled }
