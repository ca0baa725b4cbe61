package scheduling

import "errors"

type Kind string

const (
	KindValidation                Kind = "validation"
	KindNotAProvider              Kind = "not_a_provider"
	KindSelfScheduling            Kind = "self_scheduling"
	KindPastDate                  Kind = "past_date"
	KindSlotUnavailable           Kind = "slot_unavailable"
	KindNotFound                  Kind = "not_found"
	KindAlreadyCanceled           Kind = "already_canceled"
	KindForbidden                 Kind = "forbidden"
	KindCancellationWindowExpired Kind = "cancellation_window_expired"
	KindQueueUnavailable          Kind = "queue_unavailable"
	KindUnauthenticated           Kind = "unauthenticated"
)

// Error is a user-facing rejection. Message is safe to return to the caller;
// Err, when set, carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrPastDate) works
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation                = &Error{Kind: KindValidation, Message: "Validation fails"}
	ErrNotAProvider              = &Error{Kind: KindNotAProvider, Message: "You can only create appointments with providers"}
	ErrSelfScheduling            = &Error{Kind: KindSelfScheduling, Message: "You can't schedule an appointment with yourself"}
	ErrPastDate                  = &Error{Kind: KindPastDate, Message: "Past dates are not permitted"}
	ErrSlotUnavailable           = &Error{Kind: KindSlotUnavailable, Message: "Appointment date is not available"}
	ErrNotFound                  = &Error{Kind: KindNotFound, Message: "Appointment not found"}
	ErrAlreadyCanceled           = &Error{Kind: KindAlreadyCanceled, Message: "This appointment is already canceled"}
	ErrForbidden                 = &Error{Kind: KindForbidden, Message: "You don't have permission to cancel this appointment"}
	ErrCancellationWindowExpired = &Error{Kind: KindCancellationWindowExpired, Message: "You can only cancel appointments more than 2 hours in advance"}
	ErrQueueUnavailable          = &Error{Kind: KindQueueUnavailable, Message: "Cancellation mail could not be queued"}
	ErrUnauthenticated           = &Error{Kind: KindUnauthenticated, Message: "Authentication required"}
)

// Validation returns a validation error with a specific message.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func queueUnavailable(cause error) *Error {
	return &Error{Kind: KindQueueUnavailable, Message: ErrQueueUnavailable.Message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
