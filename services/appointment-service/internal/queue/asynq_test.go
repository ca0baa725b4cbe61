package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAsynqManager(t *testing.T, mr *miniredis.Miniredis) *Manager {
	t.Helper()
	backend := NewAsynqBackend(AsynqConfig{Addr: mr.Addr(), Concurrency: 1})
	m := NewManager(backend, nil, nil, kindMail)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// runAsynq processes until cleanup; the asynq server needs longer than the memory
// backend to drain on shutdown.
func runAsynq(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Process(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("Process did not stop")
		}
	})
}

func TestAsynqEnqueueThenProcess(t *testing.T) {
	mr := miniredis.RunT(t)
	m := newAsynqManager(t, mr)

	got := make(chan Job, 1)
	require.NoError(t, m.Handle(kindMail, func(_ context.Context, job Job) error {
		got <- job
		return nil
	}))

	id, err := m.Enqueue(context.Background(), kindMail, map[string]int{"appointment_id": 10})
	require.NoError(t, err)

	runAsynq(t, m)

	select {
	case job := <-got:
		assert.Equal(t, id, job.ID)
		assert.Equal(t, kindMail, job.Kind)
		var payload struct {
			AppointmentID int `json:"appointment_id"`
		}
		require.NoError(t, job.Decode(&payload))
		assert.Equal(t, 10, payload.AppointmentID)
	case <-time.After(10 * time.Second):
		t.Fatal("job was not delivered")
	}
}

func TestAsynqFailedJobIsArchivedWithoutRetry(t *testing.T) {
	mr := miniredis.RunT(t)
	m := newAsynqManager(t, mr)

	var calls atomic.Int32
	require.NoError(t, m.Handle(kindMail, func(context.Context, Job) error {
		calls.Add(1)
		return errors.New("smtp down")
	}))

	id, err := m.Enqueue(context.Background(), kindMail, map[string]int{"appointment_id": 10})
	require.NoError(t, err)
	runAsynq(t, m)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })

	require.Eventually(t, func() bool {
		archived, err := inspector.ListArchivedTasks(kindMail)
		return err == nil && len(archived) == 1 && archived[0].ID == id
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "attempted exactly once")

	retry, err := inspector.ListRetryTasks(kindMail)
	require.NoError(t, err)
	assert.Empty(t, retry)
}

func TestAsynqPublishUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	m := newAsynqManager(t, mr)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := m.Enqueue(ctx, kindMail, map[string]int{"appointment_id": 10})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAsynqReadyCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	backend := NewAsynqBackend(AsynqConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = backend.Close() })

	require.NoError(t, backend.ReadyCheck()(context.Background()))
	mr.Close()
	assert.Error(t, backend.ReadyCheck()(context.Background()))
}
