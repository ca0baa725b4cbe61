// Package locale renders user-facing dates and notice texts in the configured language.
package locale

import (
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

type Locale string

const (
	EnUS Locale = "en_US"
	PtBR Locale = "pt_BR"
)

type texts struct {
	monday     monday.Locale
	dateLayout string
	newBooking string
}

var catalog = map[Locale]texts{
	EnUS: {
		monday:     monday.LocaleEnUS,
		dateLayout: "January 2, at 15:04",
		newBooking: "New appointment for %s on %s",
	},
	PtBR: {
		monday:     monday.LocalePtBR,
		dateLayout: "dia 02 de January, às 15:04h",
		newBooking: "Novo agendamento para %s para %s",
	},
}

func Parse(raw string) (Locale, error) {
	l := Locale(strings.TrimSpace(raw))
	if l == "" {
		return EnUS, nil
	}
	if _, ok := catalog[l]; !ok {
		return "", fmt.Errorf("unsupported locale %q", raw)
	}
	return l, nil
}

func (l Locale) texts() texts {
	if t, ok := catalog[l]; ok {
		return t
	}
	return catalog[EnUS]
}

// FormatDate renders day, month name and hour:minute, e.g. "March 10, at 14:00".
func (l Locale) FormatDate(t time.Time) string {
	tx := l.texts()
	return monday.Format(t, tx.dateLayout, tx.monday)
}

// BookingNotice is the in-app notice text a provider receives for a new booking.
func (l Locale) BookingNotice(clientName string, slot time.Time) string {
	return fmt.Sprintf(l.texts().newBooking, clientName, l.FormatDate(slot))
}
