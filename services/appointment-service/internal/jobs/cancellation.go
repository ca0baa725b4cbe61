package jobs

import (
	"bytes"
	"context"
	"embed"
	"errors"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/locale"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/mail"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/queue"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
)

var errNoRecipient = errors.New("cancellation mail: provider email missing")

type cancellationView struct {
	ProviderName string
	ClientName   string
	Date         string
}

// CancellationMail tells the provider that a client canceled.
type CancellationMail struct {
	sender mail.Sender
	locale locale.Locale
	logger *slog.Logger
}

func NewCancellationMail(sender mail.Sender, l locale.Locale, logger *slog.Logger) *CancellationMail {
	if logger == nil {
		logger = slog.Default()
	}
	return &CancellationMail{sender: sender, locale: l, logger: logger}
}

func (h *CancellationMail) Handle(ctx context.Context, job queue.Job) error {
	var p CancellationMailPayload
	if err := job.Decode(&p); err != nil {
		return err
	}
	if p.Provider.Email == "" {
		return errNoRecipient
	}

	msg, err := h.render(p)
	if err != nil {
		return err
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		return err
	}
	h.logger.Info("cancellation mail sent", "appointment_id", p.AppointmentID, "job_id", job.ID)
	return nil
}

func (h *CancellationMail) render(p CancellationMailPayload) (mail.Message, error) {
	view := cancellationView{
		ProviderName: p.Provider.Name,
		ClientName:   p.Client.Name,
		Date:         h.locale.FormatDate(p.ScheduledAt),
	}
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, "cancellation.txt.tmpl", view); err != nil {
		return mail.Message{}, err
	}
	if err := htmlTemplates.ExecuteTemplate(&html, "cancellation.html.tmpl", view); err != nil {
		return mail.Message{}, err
	}
	return mail.Message{
		To:      p.Provider.Email,
		ToName:  p.Provider.Name,
		Subject: "Appointment canceled",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// Register wires every job handler into the manager.
func Register(m *queue.Manager, sender mail.Sender, l locale.Locale, logger *slog.Logger) error {
	return m.Handle(CancellationMailKind, NewCancellationMail(sender, l, logger).Handle)
}
