package handlers

import (
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/scheduling"
)

func statusFor(err error) int {
	kind, ok := scheduling.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case scheduling.KindValidation, scheduling.KindPastDate, scheduling.KindSlotUnavailable, scheduling.KindAlreadyCanceled:
		return http.StatusBadRequest
	case scheduling.KindNotAProvider, scheduling.KindSelfScheduling, scheduling.KindCancellationWindowExpired, scheduling.KindUnauthenticated:
		return http.StatusUnauthorized
	case scheduling.KindForbidden:
		return http.StatusForbidden
	case scheduling.KindNotFound:
		return http.StatusNotFound
	case scheduling.KindQueueUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the rejection message of a scheduling error, or a generic
// message for anything else so internals never leak.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var se *scheduling.Error
	if status == http.StatusInternalServerError || !errors.As(err, &se) {
		a.logger.Error("request failed", "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if status == http.StatusServiceUnavailable {
		a.logger.Warn("dependency unavailable", "path", r.URL.Path, "err", err)
	}
	httpx.WriteError(w, status, se.Message)
}
