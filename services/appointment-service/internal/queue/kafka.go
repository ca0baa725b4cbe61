package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers string
	GroupID string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBackend publishes each kind to a topic of the same name and consumes with a group.
type KafkaBackend struct {
	cfg       KafkaConfig
	logger    *slog.Logger
	writer    messageWriter
	newReader func(brokers []string, topic string) messageReader
	retryWait time.Duration
}

func NewKafkaBackend(cfg KafkaConfig, logger *slog.Logger) *KafkaBackend {
	if cfg.GroupID == "" {
		cfg.GroupID = "mail-worker"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaBackend{
		cfg:    cfg,
		logger: logger,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(kafkax.SplitBrokers(cfg.Brokers)...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		newReader: func(brokers []string, topic string) messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:  brokers,
				GroupID:  cfg.GroupID,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6,
			})
		},
		retryWait: time.Second,
	}
}

func (b *KafkaBackend) Publish(ctx context.Context, queue, jobID string, body []byte) error {
	headers := kafkax.JobHeaders(kafkax.JobMeta{JobID: jobID, Kind: queue})
	return b.writer.WriteMessages(ctx, kafka.Message{
		Topic:   queue,
		Key:     []byte(jobID),
		Value:   body,
		Headers: kafkax.InjectTraceHeaders(ctx, headers),
	})
}

// Consume commits every message after delivery, failed or not.
func (b *KafkaBackend) Consume(ctx context.Context, queues []string, deliver func(context.Context, []byte) error) error {
	brokers := kafkax.SplitBrokers(b.cfg.Brokers)
	if len(brokers) == 0 {
		return errors.New("kafka brokers not configured")
	}

	var wg sync.WaitGroup
	for _, topic := range queues {
		reader := b.newReader(brokers, topic)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()
			b.consumeTopic(ctx, reader, deliver)
		}()
	}
	wg.Wait()
	return nil
}

func (b *KafkaBackend) consumeTopic(ctx context.Context, reader messageReader, deliver func(context.Context, []byte) error) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("kafka fetch error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.retryWait):
			}
			continue
		}

		meta := kafkax.ExtractJobMeta(msg)
		_ = deliver(kafkax.ExtractTraceContext(context.WithoutCancel(ctx), msg), msg.Value)

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			b.logger.Error("kafka commit error", "err", err, "kind", meta.Kind, "job_id", meta.JobID)
		}
	}
}

func (b *KafkaBackend) Close() error {
	return b.writer.Close()
}

func (b *KafkaBackend) ReadyCheck() func(context.Context) error {
	return kafkax.ReadyCheck(b.cfg.Brokers)
}
