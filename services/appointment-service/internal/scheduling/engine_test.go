package scheduling

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/jobs"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clientC   int64 = 1
	providerP int64 = 2
	clientD   int64 = 3
	providerQ int64 = 4
)

type fixture struct {
	engine       *Engine
	appointments *memAppointments
	notices      *memNotices
	queue        *memQueue
	now          time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	users := &memUsers{users: map[int64]model.User{
		clientC:   {ID: clientC, Name: "Carla", Email: "carla@example.com"},
		providerP: {ID: providerP, Name: "Paulo", Email: "paulo@example.com", Provider: true},
		clientD:   {ID: clientD, Name: "Diego", Email: "diego@example.com"},
		providerQ: {ID: providerQ, Name: "Quinn", Email: "quinn@example.com", Provider: true},
	}}
	f := &fixture{
		appointments: newMemAppointments(users),
		notices:      &memNotices{},
		queue:        &memQueue{},
		now:          now,
	}
	f.engine = NewEngine(f.appointments, users, f.notices, f.queue, WithClock(func() time.Time { return f.now }))
	return f
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))

	_, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: 0, Date: at("2025-06-01T10:00:00Z")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBookSameHourConflicts(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))

	first, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T14:07:00Z")})
	require.NoError(t, err)
	assert.Equal(t, at("2025-06-01T14:07:00Z"), first.ScheduledAt, "requested instant is stored untruncated")

	_, err = f.engine.Book(context.Background(), clientD, BookRequest{ProviderID: providerP, Date: at("2025-06-01T14:52:00Z")})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = f.engine.Book(context.Background(), clientD, BookRequest{ProviderID: providerQ, Date: at("2025-06-01T14:52:00Z")})
	assert.NoError(t, err, "other providers are unaffected")
}

func TestBookUniqueViolationIsSlotUnavailable(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))
	_, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:00:00Z")})
	require.NoError(t, err)

	f.appointments.pretendFree = true
	_, err = f.engine.Book(context.Background(), clientD, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:15:00Z")})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestConcurrentBookingsLeaveOneActive(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))
	f.appointments.pretendFree = true

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := clientC
			if i%2 == 1 {
				caller = clientD
			}
			_, err := f.engine.Book(context.Background(), caller, BookRequest{
				ProviderID: providerP,
				Date:       at("2025-06-01T10:00:00Z").Add(time.Duration(i) * time.Minute),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.appointments.active(), 1)
}

func TestBookSelfAlwaysFails(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))

	for _, date := range []time.Time{at("2025-06-01T10:00:00Z"), at("2024-01-01T10:00:00Z")} {
		_, err := f.engine.Book(context.Background(), providerP, BookRequest{ProviderID: providerP, Date: date})
		assert.ErrorIs(t, err, ErrSelfScheduling)
	}
	// Also when the caller is not a provider.
	_, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: clientC, Date: at("2025-06-01T10:00:00Z")})
	assert.ErrorIs(t, err, ErrSelfScheduling)
}

func TestBookSelfCheckPrecedesProviderLookup(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))

	// clientC exists but is not a provider; 404 does not exist at all.
	for _, id := range []int64{clientC, 404} {
		_, err := f.engine.Book(context.Background(), id, BookRequest{ProviderID: id, Date: at("2025-06-01T10:00:00Z")})
		assert.ErrorIs(t, err, ErrSelfScheduling, id)
		assert.NotErrorIs(t, err, ErrNotAProvider, id)
	}
	assert.Empty(t, f.appointments.active())
}

func TestBookNotAProviderHalts(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))

	_, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: clientD, Date: at("2025-06-01T10:00:00Z")})
	assert.ErrorIs(t, err, ErrNotAProvider)

	_, err = f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: 999, Date: at("2025-06-01T10:00:00Z")})
	assert.ErrorIs(t, err, ErrNotAProvider)

	assert.Empty(t, f.appointments.active())
	assert.Empty(t, f.notices.notices)
}

func TestBookPastDate(t *testing.T) {
	f := newFixture(t, at("2025-06-01T10:30:00Z"))

	_, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T09:59:00Z")})
	assert.ErrorIs(t, err, ErrPastDate)

	// 10:45 truncates to 10:00, which has already started.
	_, err = f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:45:00Z")})
	assert.ErrorIs(t, err, ErrPastDate)

	_, err = f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T11:00:00Z")})
	assert.NoError(t, err)
}

func TestBookNoticeFailureKeepsBooking(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))
	f.notices.err = errors.New("mongo down")

	appt, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:00:00Z")})
	require.NoError(t, err)
	assert.NotZero(t, appt.ID)
	assert.Len(t, f.appointments.active(), 1)
}

func TestBookDoesNotEnqueue(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))
	_, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:00:00Z")})
	require.NoError(t, err)
	assert.Empty(t, f.queue.jobs)
}

func TestCancelWindowBoundary(t *testing.T) {
	scheduled := at("2025-06-01T10:00:00Z")

	cases := []struct {
		name    string
		before  time.Duration
		wantErr error
	}{
		{"two hours one minute before", 2*time.Hour + time.Minute, nil},
		{"one hour fifty-nine before", time.Hour + 59*time.Minute, ErrCancellationWindowExpired},
		{"exactly two hours before", 2 * time.Hour, ErrCancellationWindowExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, at("2025-06-01T06:00:00Z"))
			appt, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: scheduled})
			require.NoError(t, err)

			f.now = scheduled.Add(-tc.before)
			_, err = f.engine.Cancel(context.Background(), clientC, appt.ID)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				assert.Len(t, f.queue.jobs, 1)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, f.queue.jobs)
		})
	}
}

func TestCancelOrdering(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))

	_, err := f.engine.Cancel(context.Background(), clientC, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	appt, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:00:00Z")})
	require.NoError(t, err)

	// Forbidden wins over the window check.
	f.now = at("2025-06-01T09:30:00Z")
	_, err = f.engine.Cancel(context.Background(), clientD, appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	f.now = at("2025-06-01T07:00:00Z")
	_, err = f.engine.Cancel(context.Background(), clientC, appt.ID)
	require.NoError(t, err)

	// Already-canceled wins over forbidden.
	_, err = f.engine.Cancel(context.Background(), clientD, appt.ID)
	assert.ErrorIs(t, err, ErrAlreadyCanceled)
}

func TestCancelQueueUnavailableKeepsCancellation(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))
	appt, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:00:00Z")})
	require.NoError(t, err)

	f.queue.err = errBackendDown
	got, err := f.engine.Cancel(context.Background(), clientC, appt.ID)
	assert.ErrorIs(t, err, ErrQueueUnavailable)
	assert.ErrorIs(t, err, errBackendDown)
	require.NotNil(t, got.CanceledAt)

	stored, err := f.appointments.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.CanceledAt)
}

func TestList(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))
	for h := 0; h < 25; h++ {
		_, err := f.engine.Book(context.Background(), clientC, BookRequest{
			ProviderID: providerP,
			Date:       at("2025-06-02T00:00:00Z").Add(time.Duration(h) * time.Hour),
		})
		require.NoError(t, err)
	}

	page1, err := f.engine.List(context.Background(), clientC, 0)
	require.NoError(t, err)
	require.Len(t, page1, PageSize)
	assert.Equal(t, at("2025-06-02T00:00:00Z"), page1[0].ScheduledAt)

	page2, err := f.engine.List(context.Background(), clientC, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 5)

	others, err := f.engine.List(context.Background(), clientD, 1)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestListPageBeyondAnyOffset(t *testing.T) {
	f := newFixture(t, at("2025-06-01T06:00:00Z"))
	_, err := f.engine.Book(context.Background(), clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-02T10:00:00Z")})
	require.NoError(t, err)

	for _, page := range []int{math.MaxInt, math.MaxInt/PageSize + 1} {
		got, err := f.engine.List(context.Background(), clientC, page)
		require.NoError(t, err, page)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}

	got, err := f.engine.List(context.Background(), clientC, math.MaxInt/PageSize)
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, offset := range f.appointments.offsets {
		assert.GreaterOrEqual(t, offset, 0)
	}
}

func TestScenario(t *testing.T) {
	f := newFixture(t, at("2025-05-31T12:00:00Z"))
	ctx := context.Background()

	appt, err := f.engine.Book(ctx, clientC, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:00:00Z")})
	require.NoError(t, err)
	assert.Nil(t, appt.CanceledAt)

	require.Len(t, f.notices.notices, 1)
	notice := f.notices.notices[0]
	assert.Equal(t, providerP, notice.UserID)
	assert.Equal(t, "New appointment for Carla on June 1, at 10:00", notice.Content)

	_, err = f.engine.Book(ctx, clientD, BookRequest{ProviderID: providerP, Date: at("2025-06-01T10:30:00Z")})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	f.now = at("2025-06-01T07:00:00Z")
	canceled, err := f.engine.Cancel(ctx, clientC, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, canceled.CanceledAt)
	assert.Equal(t, f.now, *canceled.CanceledAt)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, jobs.CancellationMailKind, job.kind)
	payload, ok := job.payload.(jobs.CancellationMailPayload)
	require.True(t, ok)
	assert.Equal(t, "paulo@example.com", payload.Provider.Email)
	assert.Equal(t, "Paulo", payload.Provider.Name)
	assert.Equal(t, "Carla", payload.Client.Name)

	_, err = f.engine.Cancel(ctx, clientC, appt.ID)
	assert.ErrorIs(t, err, ErrAlreadyCanceled)
	assert.Len(t, f.queue.jobs, 1)
	assert.Len(t, f.notices.notices, 1, "cancellation writes no notice")
}
