package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/mail"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/notifications"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/queue"
)

// NewQueueBackend builds the configured backend and the readiness check for its broker.
func NewQueueBackend(cfg Config, logger *slog.Logger) (queue.Backend, []runtime.ReadyCheck) {
	switch cfg.QueueBackend {
	case QueueKafka:
		b := queue.NewKafkaBackend(queue.KafkaConfig{Brokers: cfg.KafkaBrokers, GroupID: cfg.KafkaGroupID}, logger)
		return b, []runtime.ReadyCheck{{Name: "kafka", Check: b.ReadyCheck()}}
	case QueueMemory:
		return queue.NewMemoryBackend(256), nil
	default:
		b := queue.NewAsynqBackend(queue.AsynqConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			MaxRetry:    cfg.QueueMaxRetry,
			Concurrency: cfg.QueueConcurrency,
		})
		return b, []runtime.ReadyCheck{{Name: "redis", Check: b.ReadyCheck()}}
	}
}

func NewMailSender(ctx context.Context, cfg Config, logger *slog.Logger) (mail.Sender, error) {
	from := mail.From{Email: cfg.MailFrom, Name: cfg.MailFromName}
	switch cfg.MailProvider {
	case MailSES:
		s, err := mail.NewSESSender(ctx, cfg.AWSRegion, from, logger)
		if err != nil {
			return nil, fmt.Errorf("ses sender: %w", err)
		}
		return s, nil
	case MailSendGrid:
		return mail.NewSendGridSender(cfg.SendGridAPIKey, from, logger), nil
	case MailStub:
		return mail.NewStubSender(logger), nil
	default:
		return mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, from), nil
	}
}

// NoticeStore is the configured notice store with its readiness check and cleanup.
type NoticeStore struct {
	Store notifications.Store
	Ready []runtime.ReadyCheck
	Close func(context.Context) error
}

func NewNoticeStore(ctx context.Context, cfg Config, pool *db.Pool) (NoticeStore, error) {
	if cfg.NotificationStore != NoticesMongo {
		return NoticeStore{
			Store: notifications.NewPostgresStore(pool),
			Close: func(context.Context) error { return nil },
		}, nil
	}

	client, err := notifications.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return NoticeStore{}, fmt.Errorf("connect mongo: %w", err)
	}
	store := notifications.NewMongoStore(client.Database(cfg.MongoDatabase))
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return NoticeStore{}, fmt.Errorf("mongo indexes: %w", err)
	}
	return NoticeStore{
		Store: store,
		Ready: []runtime.ReadyCheck{{Name: "mongo", Check: notifications.MongoReadyCheck(client)}},
		Close: client.Disconnect,
	}, nil
}
