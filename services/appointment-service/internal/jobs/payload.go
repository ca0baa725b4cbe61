package jobs

import (
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

const CancellationMailKind = "CancellationMail"

// Kinds lists every job kind the queue manager must know at startup.
func Kinds() []string {
	return []string{CancellationMailKind}
}

type Party struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// CancellationMailPayload carries the cancelled appointment as it was at cancellation time,
// so the worker never reads the database.
type CancellationMailPayload struct {
	AppointmentID int64     `json:"appointment_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	CanceledAt    time.Time `json:"canceled_at"`
	Provider      Party     `json:"provider"`
	Client        Party     `json:"client"`
}

func NewCancellationMailPayload(a model.Appointment) CancellationMailPayload {
	p := CancellationMailPayload{
		AppointmentID: a.ID,
		ScheduledAt:   a.ScheduledAt,
	}
	if a.CanceledAt != nil {
		p.CanceledAt = *a.CanceledAt
	}
	if a.Provider != nil {
		p.Provider = Party{ID: a.Provider.ID, Name: a.Provider.Name, Email: a.Provider.Email}
	}
	if a.Client != nil {
		p.Client = Party{ID: a.Client.ID, Name: a.Client.Name}
	}
	return p
}
