package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/notifications"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/scheduling"
)

var (
	errInvalidDate      = scheduling.Validation("Invalid date")
	errProviderNotFound = &scheduling.Error{Kind: scheduling.KindNotFound, Message: "Provider not found"}
	errScheduleProvider = &scheduling.Error{Kind: scheduling.KindNotAProvider, Message: "User is not a provider"}
	errNoticesProvider  = &scheduling.Error{Kind: scheduling.KindNotAProvider, Message: "Only providers can load notifications"}
)

// day parses ?date=YYYY-MM-DD into the [start, end) bounds of that day.
func (a *API) day(r *http.Request) (time.Time, time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return time.Time{}, time.Time{}, errInvalidDate
	}
	start, err := time.ParseInLocation(time.DateOnly, raw, a.loc)
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidDate
	}
	return start, start.AddDate(0, 0, 1), nil
}

func (a *API) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := a.users.ListProviders(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make([]*userView, 0, len(providers))
	for i := range providers {
		out = append(out, a.summary(&providers[i]))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (a *API) Availability(w http.ResponseWriter, r *http.Request) {
	providerID, err := strconv.ParseInt(chi.URLParam(r, "providerID"), 10, 64)
	if err != nil || providerID <= 0 {
		a.writeError(w, r, errProviderNotFound)
		return
	}
	start, end, err := a.day(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	provider, err := a.users.GetByID(r.Context(), providerID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !provider.Provider) {
		a.writeError(w, r, errProviderNotFound)
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	booked, err := a.appointments.ListByProviderBetween(r.Context(), providerID, start, end)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	busy := make([]availability.Interval, 0, len(booked))
	for _, appt := range booked {
		busy = append(busy, availability.Interval{Start: appt.Slot(), End: appt.Slot().Add(model.SlotLength)})
	}

	slots := availability.DaySlots(start, a.workingDay, model.SlotLength, busy, a.engine.Now())
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotView{Time: s.Time, Value: s.Value, Available: s.Available})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// requireProvider loads the caller and rejects non-providers with denied.
func (a *API) requireProvider(w http.ResponseWriter, r *http.Request, denied error) bool {
	u, err := a.users.GetByID(r.Context(), caller(r))
	if errors.Is(err, model.ErrNotFound) || (err == nil && !u.Provider) {
		a.writeError(w, r, denied)
		return false
	}
	if err != nil {
		a.writeError(w, r, err)
		return false
	}
	return true
}

func (a *API) Schedule(w http.ResponseWriter, r *http.Request) {
	if !a.requireProvider(w, r, errScheduleProvider) {
		return
	}
	start, end, err := a.day(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, err := a.appointments.ListByProviderBetween(r.Context(), caller(r), start, end)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.appointments(list, a.engine.Now()))
}

func (a *API) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if !a.requireProvider(w, r, errNoticesProvider) {
		return
	}
	list, err := a.notices.ListByUser(r.Context(), caller(r), notifications.ListLimit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make([]notificationView, 0, len(list))
	for _, n := range list {
		out = append(out, notificationView{ID: n.ID, Content: n.Content, Read: n.Read, CreatedAt: n.CreatedAt})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
