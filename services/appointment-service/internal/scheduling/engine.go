package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/jobs"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/locale"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

const PageSize = 20

type AppointmentStore interface {
	// Create returns model.ErrSlotTaken when the provider already has an active appointment in the slot.
	Create(ctx context.Context, a model.Appointment) (model.Appointment, error)
	ExistsActiveInSlot(ctx context.Context, providerID int64, slot time.Time) (bool, error)
	// GetByID loads provider and client summaries; model.ErrNotFound when missing.
	GetByID(ctx context.Context, id int64) (model.Appointment, error)
	// Cancel sets canceled_at only if it is still unset and reports whether it did.
	Cancel(ctx context.Context, id int64, at time.Time) (bool, error)
	ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]model.Appointment, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (model.User, error)
}

type NoticeStore interface {
	Create(ctx context.Context, n model.Notification) (model.Notification, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, kind string, payload any) (string, error)
}

type BookRequest struct {
	ProviderID int64
	Date       time.Time
}

// Engine owns the booking and cancellation rules.
type Engine struct {
	appointments AppointmentStore
	users        UserStore
	notices      NoticeStore
	queue        JobQueue

	logger  *slog.Logger
	metrics *metrics.Metrics
	locale  locale.Locale
	now     func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLocale(l locale.Locale) Option {
	return func(e *Engine) { e.locale = l }
}

func NewEngine(appointments AppointmentStore, users UserStore, notices NoticeStore, queue JobQueue, opts ...Option) *Engine {
	e := &Engine{
		appointments: appointments,
		users:        users,
		notices:      notices,
		queue:        queue,
		logger:       slog.Default(),
		locale:       locale.EnUS,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now exposes the engine clock so read models compute past/cancelable consistently.
func (e *Engine) Now() time.Time {
	return e.now()
}

// List returns the caller's active appointments as a client, oldest first.
func (e *Engine) List(ctx context.Context, callerID int64, page int) ([]model.Appointment, error) {
	if page < 1 {
		page = 1
	}
	if page > math.MaxInt/PageSize {
		// No client has that many appointments; the offset would overflow.
		return []model.Appointment{}, nil
	}
	out, err := e.appointments.ListByClient(ctx, callerID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

func (e *Engine) Book(ctx context.Context, callerID int64, req BookRequest) (model.Appointment, error) {
	appt, err := e.book(ctx, callerID, req)
	e.metrics.ObserveBooking(outcome(err))
	return appt, err
}

func (e *Engine) book(ctx context.Context, callerID int64, req BookRequest) (model.Appointment, error) {
	if req.ProviderID <= 0 || req.Date.IsZero() {
		return model.Appointment{}, ErrValidation
	}
	if req.ProviderID == callerID {
		return model.Appointment{}, ErrSelfScheduling
	}

	provider, err := e.users.GetByID(ctx, req.ProviderID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Appointment{}, ErrNotAProvider
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Provider {
		return model.Appointment{}, ErrNotAProvider
	}

	hourStart := model.SlotOf(req.Date)
	if hourStart.Before(e.now()) {
		return model.Appointment{}, ErrPastDate
	}

	taken, err := e.appointments.ExistsActiveInSlot(ctx, req.ProviderID, hourStart)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return model.Appointment{}, ErrSlotUnavailable
	}

	appt, err := e.appointments.Create(ctx, model.Appointment{
		ClientID:    callerID,
		ProviderID:  req.ProviderID,
		ScheduledAt: req.Date,
	})
	if errors.Is(err, model.ErrSlotTaken) {
		return model.Appointment{}, ErrSlotUnavailable
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	summary := provider.Summary()
	appt.Provider = &summary

	e.notifyProvider(ctx, callerID, appt.ProviderID, hourStart)
	return appt, nil
}

// notifyProvider writes the booking notice. The booking is already committed, so
// failures are logged and swallowed.
func (e *Engine) notifyProvider(ctx context.Context, clientID, providerID int64, slot time.Time) {
	client, err := e.users.GetByID(ctx, clientID)
	if err != nil {
		e.logger.Error("load client for notice failed", "client_id", clientID, "err", err)
		return
	}
	_, err = e.notices.Create(ctx, model.Notification{
		Content: e.locale.BookingNotice(client.Name, slot),
		UserID:  providerID,
	})
	if err != nil {
		e.logger.Error("create booking notice failed", "provider_id", providerID, "err", err)
	}
}

// Cancel soft-cancels the caller's appointment and queues the cancellation mail.
// When the mail cannot be queued the cancelled appointment is returned together
// with a queue-unavailable error; the cancellation stands.
func (e *Engine) Cancel(ctx context.Context, callerID, appointmentID int64) (model.Appointment, error) {
	appt, err := e.cancel(ctx, callerID, appointmentID)
	e.metrics.ObserveCancellation(outcome(err))
	return appt, err
}

func (e *Engine) cancel(ctx context.Context, callerID, appointmentID int64) (model.Appointment, error) {
	appt, err := e.appointments.GetByID(ctx, appointmentID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if appt.IsCanceled() {
		return model.Appointment{}, ErrAlreadyCanceled
	}
	if appt.ClientID != callerID {
		return model.Appointment{}, ErrForbidden
	}
	now := e.now()
	if !appt.IsCancelable(now) {
		return model.Appointment{}, ErrCancellationWindowExpired
	}

	updated, err := e.appointments.Cancel(ctx, appt.ID, now)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}
	if !updated {
		return model.Appointment{}, ErrAlreadyCanceled
	}
	appt.CanceledAt = &now

	jobID, err := e.queue.Enqueue(ctx, jobs.CancellationMailKind, jobs.NewCancellationMailPayload(appt))
	if err != nil {
		e.logger.Error("enqueue cancellation mail failed", "appointment_id", appt.ID, "err", err)
		return appt, queueUnavailable(err)
	}
	e.logger.Info("cancellation mail queued", "appointment_id", appt.ID, "job_id", jobID)
	return appt, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := KindOf(err); ok {
		return string(kind)
	}
	return "error"
}
