// Package mail delivers outbound email through SMTP, SES, SendGrid or a logging stub.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type From struct {
	Email string
	Name  string
}

func (f From) String() string {
	if f.Name == "" {
		return f.Email
	}
	return fmt.Sprintf("%s <%s>", f.Name, f.Email)
}

func recipient(msg Message) string {
	if msg.ToName == "" {
		return msg.To
	}
	return fmt.Sprintf("%s <%s>", msg.ToName, msg.To)
}

// StubSender logs instead of sending.
type StubSender struct {
	logger *slog.Logger
}

func NewStubSender(logger *slog.Logger) *StubSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubSender{logger: logger}
}

func (s *StubSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("stub mail sender: would send", "to", msg.To, "subject", msg.Subject)
	return nil
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mail: recipient required")
	}
	if strings.ContainsAny(msg.To+msg.Subject, "\r\n") {
		return fmt.Errorf("mail: header values must not contain line breaks")
	}
	return nil
}
