package queue

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)

// MemoryBackend keeps one buffered channel per queue inside the process.
type MemoryBackend struct {
	buffer int

	mu     sync.Mutex
	queues map[string]chan []byte
	closed bool
}

func NewMemoryBackend(buffer int) *MemoryBackend {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryBackend{buffer: buffer, queues: map[string]chan []byte{}}
}

func (b *MemoryBackend) queue(name string) (chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ch, ok := b.queues[name]
	if !ok {
		ch = make(chan []byte, b.buffer)
		b.queues[name] = ch
	}
	return ch, nil
}

// Publish never blocks; a full buffer is reported as ErrFull.
func (b *MemoryBackend) Publish(ctx context.Context, queue, _ string, body []byte) error {
	ch, err := b.queue(queue)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case ch <- body:
		return nil
	default:
		return ErrFull
	}
}

func (b *MemoryBackend) Consume(ctx context.Context, queues []string, deliver func(context.Context, []byte) error) error {
	var wg sync.WaitGroup
	for _, name := range queues {
		ch, err := b.queue(name)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(ch chan []byte) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case body := <-ch:
					// Job contexts are detached from whoever enqueued them.
					_ = deliver(context.WithoutCancel(ctx), body)
				}
			}
		}(ch)
	}
	wg.Wait()
	return nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Len reports the number of pending jobs in queue.
func (b *MemoryBackend) Len(queue string) int {
	ch, err := b.queue(queue)
	if err != nil {
		return 0
	}
	return len(ch)
}
