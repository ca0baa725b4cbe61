package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/scheduling"
)

// Scheduler is the subset of *scheduling.Engine the API calls.
type Scheduler interface {
	List(ctx context.Context, callerID int64, page int) ([]model.Appointment, error)
	Book(ctx context.Context, callerID int64, req scheduling.BookRequest) (model.Appointment, error)
	Cancel(ctx context.Context, callerID, appointmentID int64) (model.Appointment, error)
	Now() time.Time
}

type UserStore interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	ListProviders(ctx context.Context) ([]model.UserSummary, error)
}

type ProviderAppointments interface {
	ListByProviderBetween(ctx context.Context, providerID int64, from, to time.Time) ([]model.Appointment, error)
}

type NoticeReader interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error)
}

type Deps struct {
	Logger       *slog.Logger
	Engine       Scheduler
	Users        UserStore
	Appointments ProviderAppointments
	Notices      NoticeReader
	Tokens       *auth.Tokens
	// AppURL prefixes avatar URLs.
	AppURL     string
	WorkingDay availability.WorkingDay
	// Location is the zone YYYY-MM-DD query dates are read in. Defaults to UTC.
	Location *time.Location
}

type API struct {
	logger       *slog.Logger
	engine       Scheduler
	users        UserStore
	appointments ProviderAppointments
	notices      NoticeReader
	tokens       *auth.Tokens
	appURL       string
	workingDay   availability.WorkingDay
	loc          *time.Location
}

func NewRouter(d Deps) chi.Router {
	api := &API{
		logger:       d.Logger,
		engine:       d.Engine,
		users:        d.Users,
		appointments: d.Appointments,
		notices:      d.Notices,
		tokens:       d.Tokens,
		appURL:       d.AppURL,
		workingDay:   d.WorkingDay,
		loc:          d.Location,
	}
	if api.logger == nil {
		api.logger = slog.Default()
	}
	if api.loc == nil {
		api.loc = time.UTC
	}
	if api.workingDay == (availability.WorkingDay{}) {
		api.workingDay = availability.DefaultWorkingDay()
	}

	r := chi.NewRouter()
	r.Post("/users", api.Register)
	r.Post("/sessions", api.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(d.Tokens))

		r.Get("/appointments", api.ListAppointments)
		r.Post("/appointments", api.BookAppointment)
		r.Delete("/appointments/{id}", api.CancelAppointment)

		r.Get("/providers", api.ListProviders)
		r.Get("/providers/{providerID}/availability", api.Availability)

		r.Get("/schedule", api.Schedule)
		r.Get("/notifications", api.ListNotifications)
	})
	return r
}

// caller is set by auth.RequireUser on every protected route.
func caller(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
