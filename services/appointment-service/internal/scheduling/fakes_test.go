package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

// memAppointments mimics the partial unique index on (provider_id, slot_at) for active rows.
type memAppointments struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Appointment
	users  *memUsers

	// pretendFree makes ExistsActiveInSlot miss, so only the index guards the slot.
	pretendFree bool

	offsets []int
}

func newMemAppointments(users *memUsers) *memAppointments {
	return &memAppointments{rows: map[int64]model.Appointment{}, users: users}
}

func (s *memAppointments) Create(_ context.Context, a model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ProviderID == a.ProviderID && row.CanceledAt == nil && row.Slot().Equal(a.Slot()) {
			return model.Appointment{}, model.ErrSlotTaken
		}
	}
	s.nextID++
	a.ID = s.nextID
	a.CreatedAt = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s.rows[a.ID] = a
	return a, nil
}

func (s *memAppointments) ExistsActiveInSlot(_ context.Context, providerID int64, slot time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pretendFree {
		return false, nil
	}
	for _, row := range s.rows {
		if row.ProviderID == providerID && row.CanceledAt == nil && row.Slot().Equal(slot) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memAppointments) GetByID(ctx context.Context, id int64) (model.Appointment, error) {
	s.mu.Lock()
	row, ok := s.rows[id]
	s.mu.Unlock()
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	if p, err := s.users.GetByID(ctx, row.ProviderID); err == nil {
		sum := p.Summary()
		row.Provider = &sum
	}
	if c, err := s.users.GetByID(ctx, row.ClientID); err == nil {
		sum := c.Summary()
		row.Client = &sum
	}
	return row, nil
}

func (s *memAppointments) Cancel(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.CanceledAt != nil {
		return false, nil
	}
	row.CanceledAt = &at
	s.rows[id] = row
	return true, nil
}

func (s *memAppointments) ListByClient(_ context.Context, clientID int64, limit, offset int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}
	var out []model.Appointment
	for _, row := range s.rows {
		if row.ClientID == clientID && row.CanceledAt == nil {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memAppointments) active() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, row := range s.rows {
		if row.CanceledAt == nil {
			out = append(out, row)
		}
	}
	return out
}

type memUsers struct {
	users map[int64]model.User
}

func (s *memUsers) GetByID(_ context.Context, id int64) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

type memNotices struct {
	mu      sync.Mutex
	notices []model.Notification
	err     error
}

func (s *memNotices) Create(_ context.Context, n model.Notification) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.Notification{}, s.err
	}
	n.ID = "n" + strconv.Itoa(len(s.notices)+1)
	s.notices = append(s.notices, n)
	return n, nil
}

type enqueued struct {
	kind    string
	payload any
}

type memQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (q *memQueue) Enqueue(_ context.Context, kind string, payload any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, enqueued{kind: kind, payload: payload})
	return "job-1", nil
}

var errBackendDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
