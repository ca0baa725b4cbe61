package handlers

import (
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

type fileView struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

type userView struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	Provider *bool     `json:"provider,omitempty"`
	Avatar   *fileView `json:"avatar"`
}

type appointmentView struct {
	ID         int64      `json:"id"`
	Date       time.Time  `json:"date"`
	Past       bool       `json:"past"`
	Cancelable bool       `json:"cancelable"`
	CanceledAt *time.Time `json:"canceled_at"`
	CreatedAt  time.Time  `json:"created_at"`
	ProviderID int64      `json:"provider_id"`
	ClientID   int64      `json:"client_id"`
	Provider   *userView  `json:"provider,omitempty"`
	Client     *userView  `json:"client,omitempty"`
}

type notificationView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type slotView struct {
	Time      string    `json:"time"`
	Value     time.Time `json:"value"`
	Available bool      `json:"available"`
}

func (a *API) file(f *model.File) *fileView {
	if f == nil {
		return nil
	}
	return &fileView{ID: f.ID, Name: f.Name, Path: f.Path, URL: f.URL(a.appURL)}
}

// summary is the public view of another user; it never carries an email.
func (a *API) summary(s *model.UserSummary) *userView {
	if s == nil {
		return nil
	}
	return &userView{ID: s.ID, Name: s.Name, Avatar: a.file(s.Avatar)}
}

func (a *API) user(u model.User) userView {
	provider := u.Provider
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, Provider: &provider}
}

// appointment computes past and cancelable at read time against now.
func (a *API) appointment(appt model.Appointment, now time.Time) appointmentView {
	return appointmentView{
		ID:         appt.ID,
		Date:       appt.ScheduledAt,
		Past:       appt.IsPast(now),
		Cancelable: !appt.IsCanceled() && appt.IsCancelable(now),
		CanceledAt: appt.CanceledAt,
		CreatedAt:  appt.CreatedAt,
		ProviderID: appt.ProviderID,
		ClientID:   appt.ClientID,
		Provider:   a.summary(appt.Provider),
		Client:     a.summary(appt.Client),
	}
}

func (a *API) appointments(list []model.Appointment, now time.Time) []appointmentView {
	out := make([]appointmentView, 0, len(list))
	for _, appt := range list {
		out = append(out, a.appointment(appt, now))
	}
	return out
}
