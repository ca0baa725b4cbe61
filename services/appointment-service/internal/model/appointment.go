package model

import "time"

const (
	// SlotLength is the booking granularity; every appointment occupies one slot.
	SlotLength = time.Hour
	// CancelLeadTime is how far ahead of ScheduledAt a cancellation must happen.
	CancelLeadTime = 2 * time.Hour
)

type Appointment struct {
	ID          int64
	ClientID    int64
	ProviderID  int64
	ScheduledAt time.Time
	CanceledAt  *time.Time
	CreatedAt   time.Time

	// Provider and Client are populated only when the read path loads them.
	Provider *UserSummary
	Client   *UserSummary
}

// SlotOf truncates t to the start of its slot.
func SlotOf(t time.Time) time.Time {
	return t.Truncate(SlotLength)
}

func (a Appointment) Slot() time.Time {
	return SlotOf(a.ScheduledAt)
}

func (a Appointment) IsPast(now time.Time) bool {
	return a.ScheduledAt.Before(now)
}

// IsCancelable requires strictly more than CancelLeadTime between now and ScheduledAt.
func (a Appointment) IsCancelable(now time.Time) bool {
	return a.ScheduledAt.Sub(now) > CancelLeadTime
}

func (a Appointment) IsCanceled() bool {
	return a.CanceledAt != nil
}
