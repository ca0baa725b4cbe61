package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

type SendGridSender struct {
	client sendgridAPI
	from   From
	logger *slog.Logger
}

func NewSendGridSender(apiKey string, from From, logger *slog.Logger) *SendGridSender {
	return newSendGridSender(sendgrid.NewSendClient(apiKey), from, logger)
}

func newSendGridSender(client sendgridAPI, from From, logger *slog.Logger) *SendGridSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridSender{client: client, from: from, logger: logger}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	html := msg.HTML
	if html == "" {
		html = msg.Text
	}
	email := sgmail.NewSingleEmail(
		sgmail.NewEmail(s.from.Name, s.from.Email),
		msg.Subject,
		sgmail.NewEmail(msg.ToName, msg.To),
		msg.Text,
		html,
	)
	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	s.logger.Info("mail sent via sendgrid", "to", msg.To, "status", resp.StatusCode)
	return nil
}
