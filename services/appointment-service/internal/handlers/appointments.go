package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/scheduling"
)

type bookRequest struct {
	ProviderID json.Number `json:"provider_id"`
	Date       string      `json:"date"`
}

// instantLayouts are the ISO 8601 forms accepted for a booking date. Layouts without
// an offset are read in the API location.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func (a *API) parseInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range instantLayouts {
		t, err := time.ParseInLocation(layout, raw, a.loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (a *API) ListAppointments(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			a.writeError(w, r, scheduling.Validation("Invalid page"))
			return
		}
		page = n
	}

	list, err := a.engine.List(r.Context(), caller(r), page)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.appointments(list, a.engine.Now()))
}

func (a *API) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		a.writeError(w, r, scheduling.ErrValidation)
		return
	}
	providerID, err := req.ProviderID.Int64()
	if err != nil {
		a.writeError(w, r, scheduling.ErrValidation)
		return
	}
	date, err := a.parseInstant(req.Date)
	if err != nil {
		a.writeError(w, r, scheduling.ErrValidation)
		return
	}

	appt, err := a.engine.Book(r.Context(), caller(r), scheduling.BookRequest{ProviderID: providerID, Date: date})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.appointment(appt, a.engine.Now()))
}

func (a *API) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		a.writeError(w, r, scheduling.ErrNotFound)
		return
	}

	appt, err := a.engine.Cancel(r.Context(), caller(r), id)
	if errors.Is(err, scheduling.ErrQueueUnavailable) {
		// The cancellation is committed; only the mail is missing.
		a.logger.Warn("appointment canceled without mail", "appointment_id", appt.ID, "err", err)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":       scheduling.ErrQueueUnavailable.Message,
			"appointment": a.appointment(appt, a.engine.Now()),
		})
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.appointment(appt, a.engine.Now()))
}
