package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type AsynqConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetry    int // 0 means a job is attempted once
	Concurrency int
}

// AsynqBackend stores jobs in Redis; each kind is its own asynq queue and task type.
type AsynqBackend struct {
	cfg    AsynqConfig
	opt    asynq.RedisClientOpt
	client *asynq.Client
	rdb    *redis.Client
}

func NewAsynqBackend(cfg AsynqConfig) *AsynqBackend {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.MaxRetry < 0 {
		cfg.MaxRetry = 0
	}
	opt := asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	return &AsynqBackend{
		cfg:    cfg,
		opt:    opt,
		client: asynq.NewClient(opt),
		rdb:    redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
	}
}

func (b *AsynqBackend) Publish(ctx context.Context, queue, jobID string, body []byte) error {
	task := asynq.NewTask(queue, body)
	_, err := b.client.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.MaxRetry(b.cfg.MaxRetry),
		asynq.TaskID(jobID),
	)
	if err != nil {
		return fmt.Errorf("asynq enqueue: %w", err)
	}
	return nil
}

func (b *AsynqBackend) Consume(ctx context.Context, queues []string, deliver func(context.Context, []byte) error) error {
	weights := make(map[string]int, len(queues))
	mux := asynq.NewServeMux()
	for _, q := range queues {
		weights[q] = 1
		mux.HandleFunc(q, func(ctx context.Context, t *asynq.Task) error {
			return deliver(ctx, t.Payload())
		})
	}

	srv := asynq.NewServer(b.opt, asynq.Config{
		Concurrency: b.cfg.Concurrency,
		Queues:      weights,
	})
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("asynq server start: %w", err)
	}
	<-ctx.Done()
	srv.Shutdown()
	return nil
}

func (b *AsynqBackend) Close() error {
	return errors.Join(b.client.Close(), b.rdb.Close())
}

// ReadyCheck pings the Redis instance backing the queues.
func (b *AsynqBackend) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		return b.rdb.Ping(ctx).Err()
	}
}
