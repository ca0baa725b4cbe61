// Package queue moves jobs from the request path to a worker through a pluggable backend.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnavailable wraps every enqueue failure: unknown kind or backend error.
var ErrUnavailable = errors.New("queue unavailable")

// Job is the envelope stored in the backend.
type Job struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	Traceparent string          `json:"traceparent,omitempty"`
	Tracestate  string          `json:"tracestate,omitempty"`
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return nil
}

type HandlerFunc func(ctx context.Context, job Job) error

// Backend stores and delivers raw job envelopes. The queue name is the job kind.
type Backend interface {
	Publish(ctx context.Context, queue, jobID string, body []byte) error
	// Consume delivers bodies from the given queues until ctx is done.
	Consume(ctx context.Context, queues []string, deliver func(ctx context.Context, body []byte) error) error
	Close() error
}

// Manager owns the set of job kinds and their handlers. Build one per process.
type Manager struct {
	backend Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	kinds map[string]struct{}

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewManager(backend Backend, logger *slog.Logger, m *metrics.Metrics, kinds ...string) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	known := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		known[k] = struct{}{}
	}
	return &Manager{
		backend:  backend,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		kinds:    known,
		handlers: map[string]HandlerFunc{},
	}
}

// Enqueue records the job and returns its id without waiting for execution.
func (m *Manager) Enqueue(ctx context.Context, kind string, payload any) (string, error) {
	if _, ok := m.kinds[kind]; !ok {
		return "", fmt.Errorf("%w: unknown job kind %q", ErrUnavailable, kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", kind, err)
	}

	job := Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: m.now().UTC(),
	}
	job.Traceparent, job.Tracestate = otelx.TraceContextStrings(ctx)

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	if err := m.backend.Publish(ctx, kind, job.ID, body); err != nil {
		m.metrics.ObserveJob(kind, "enqueue_failed")
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	m.metrics.ObserveJob(kind, "enqueued")
	return job.ID, nil
}

// Handle registers the single handler for kind.
func (m *Manager) Handle(kind string, h HandlerFunc) error {
	if _, ok := m.kinds[kind]; !ok {
		return fmt.Errorf("unknown job kind %q", kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.handlers[kind]; dup {
		return fmt.Errorf("handler for %q already registered", kind)
	}
	m.handlers[kind] = h
	return nil
}

// Process consumes every kind that has a handler until ctx is done. A failing job is
// logged and counted; it never stops the loop.
func (m *Manager) Process(ctx context.Context) error {
	m.mu.RLock()
	queues := make([]string, 0, len(m.handlers))
	for kind := range m.handlers {
		queues = append(queues, kind)
	}
	m.mu.RUnlock()
	if len(queues) == 0 {
		return errors.New("no job handlers registered")
	}
	sort.Strings(queues)

	m.logger.Info("queue processing started", "queues", queues)
	err := m.backend.Consume(ctx, queues, m.dispatch)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume: %w", err)
	}
	m.logger.Info("queue processing stopped")
	return nil
}

func (m *Manager) dispatch(ctx context.Context, body []byte) (err error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		m.logger.Error("job envelope invalid", "err", err)
		return err
	}

	m.mu.RLock()
	h, ok := m.handlers[job.Kind]
	m.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("no handler for kind %q", job.Kind)
		m.logger.Error("job failed", "kind", job.Kind, "job_id", job.ID, "err", err)
		m.metrics.ObserveJob(job.Kind, "failed")
		return err
	}

	ctx = otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)
	ctx, span := otel.Tracer("queue").Start(ctx, "queue.process",
		trace.WithAttributes(
			attribute.String("job.kind", job.Kind),
			attribute.String("job.id", job.ID),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		m.metrics.ObserveJobDuration(job.Kind, time.Since(start))
		if err != nil {
			span.RecordError(err)
			m.metrics.ObserveJob(job.Kind, "failed")
			m.logger.Error("job failed", "kind", job.Kind, "job_id", job.ID, "err", err)
			return
		}
		m.metrics.ObserveJob(job.Kind, "processed")
		m.logger.Info("job processed", "kind", job.Kind, "job_id", job.ID)
	}()

	return h(ctx, job)
}

func (m *Manager) Close() error {
	return m.backend.Close()
}
