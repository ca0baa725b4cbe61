package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is one bookable hour of a provider's day.
type Slot struct {
	Time      string    // "15:00"
	Value     time.Time // slot start
	Available bool
}

// WorkingDay bounds the hours a provider takes appointments, as offsets from midnight.
type WorkingDay struct {
	Start time.Duration
	End   time.Duration
}

func DefaultWorkingDay() WorkingDay {
	return WorkingDay{Start: 8 * time.Hour, End: 20 * time.Hour}
}

// DaySlots lists every slot of the working day with its availability. A slot is available
// when it has not started yet and no busy interval overlaps it.
func DaySlots(day time.Time, wd WorkingDay, slot time.Duration, busy []Interval, now time.Time) []Slot {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	windowStart := midnight.Add(wd.Start)
	windowEnd := midnight.Add(wd.End)

	free := map[int64]bool{}
	for _, t := range AvailableSlots(windowStart, windowEnd, slot, slot, busy, now) {
		free[t.UnixNano()] = true
	}

	var out []Slot
	for t := windowStart; slot > 0 && !t.Add(slot).After(windowEnd); t = t.Add(slot) {
		out = append(out, Slot{
			Time:      t.Format("15:04"),
			Value:     t,
			Available: free[t.UnixNano()],
		})
	}
	return out
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
