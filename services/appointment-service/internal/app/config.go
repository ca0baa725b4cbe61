// Package app loads process configuration and builds the pluggable backends
// (queue, mail, notice store) shared by the API and the worker.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/locale"
)

const (
	QueueAsynq  = "asynq"
	QueueKafka  = "kafka"
	QueueMemory = "memory"

	NoticesPostgres = "postgres"
	NoticesMongo    = "mongo"

	MailSMTP     = "smtp"
	MailSES      = "ses"
	MailSendGrid = "sendgrid"
	MailStub     = "stub"

	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

type Config struct {
	Service  string
	Port     string
	LogLevel string

	DatabaseURL string
	AppURL      string
	JWTSecret   string
	JWTTTL      time.Duration

	NotificationStore string
	MongoURI          string
	MongoDatabase     string
	Locale            locale.Locale

	QueueBackend     string
	QueueMaxRetry    int
	QueueConcurrency int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	KafkaBrokers     string
	KafkaGroupID     string

	MailProvider   string
	SMTPHost       string
	SMTPPort       string
	MailFrom       string
	MailFromName   string
	SendGridAPIKey string
	AWSRegion      string

	WorkingDay         availability.WorkingDay
	RateLimitPerMinute int
	RateLimitStore     string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

// Load reads the environment (after an optional .env) for the named service.
func Load(service, defaultPort string) (Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return Config{}, err
	}

	port, err := config.Port("PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	loc, err := locale.Parse(config.String("DATE_LOCALE", string(locale.EnUS)))
	if err != nil {
		return Config{}, fmt.Errorf("DATE_LOCALE: %w", err)
	}
	workStart, err := clock("WORKDAY_START", "08:00")
	if err != nil {
		return Config{}, err
	}
	workEnd, err := clock("WORKDAY_END", "20:00")
	if err != nil {
		return Config{}, err
	}
	if workEnd <= workStart {
		return Config{}, fmt.Errorf("WORKDAY_END must be after WORKDAY_START")
	}

	cfg := Config{
		Service:  config.String("SERVICE_NAME", service),
		Port:     port,
		LogLevel: config.String("LOG_LEVEL", "info"),

		DatabaseURL: config.String("DATABASE_URL", ""),
		AppURL:      config.String("APP_URL", "http://localhost:"+port),
		JWTSecret:   config.String("JWT_SECRET", ""),
		JWTTTL:      config.Duration("JWT_TTL", 7*24*time.Hour),

		NotificationStore: lower(config.String("NOTIFICATION_STORE", NoticesPostgres)),
		MongoURI:          config.String("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     config.String("MONGO_DATABASE", "apptbook"),
		Locale:            loc,

		QueueBackend:     lower(config.String("QUEUE_BACKEND", QueueAsynq)),
		QueueMaxRetry:    config.Int("QUEUE_MAX_RETRY", 0),
		QueueConcurrency: config.Int("QUEUE_CONCURRENCY", 5),
		RedisAddr:        config.String("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    config.String("REDIS_PASSWORD", ""),
		RedisDB:          config.Int("REDIS_DB", 0),
		KafkaBrokers:     config.String("KAFKA_BROKERS", "localhost:9092"),
		KafkaGroupID:     config.String("KAFKA_GROUP_ID", "mail-worker"),

		MailProvider:   lower(config.String("MAIL_PROVIDER", MailSMTP)),
		SMTPHost:       config.String("SMTP_HOST", "localhost"),
		SMTPPort:       config.String("SMTP_PORT", "1025"),
		MailFrom:       config.String("MAIL_FROM", "noreply@apptbook.local"),
		MailFromName:   config.String("MAIL_FROM_NAME", "apptbook"),
		SendGridAPIKey: config.String("SENDGRID_API_KEY", ""),
		AWSRegion:      config.String("AWS_REGION", "us-east-1"),

		WorkingDay:         availability.WorkingDay{Start: workStart, End: workEnd},
		RateLimitPerMinute: config.Int("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitStore:     lower(config.String("RATE_LIMIT_STORE", RateLimitMemory)),
		CORSAllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", nil),
		RequestTimeout:     config.Duration("REQUEST_TIMEOUT", 15*time.Second),
	}

	if err := oneOf("QUEUE_BACKEND", cfg.QueueBackend, QueueAsynq, QueueKafka, QueueMemory); err != nil {
		return Config{}, err
	}
	if err := oneOf("NOTIFICATION_STORE", cfg.NotificationStore, NoticesPostgres, NoticesMongo); err != nil {
		return Config{}, err
	}
	if err := oneOf("MAIL_PROVIDER", cfg.MailProvider, MailSMTP, MailSES, MailSendGrid, MailStub); err != nil {
		return Config{}, err
	}
	if err := oneOf("RATE_LIMIT_STORE", cfg.RateLimitStore, RateLimitMemory, RateLimitRedis); err != nil {
		return Config{}, err
	}
	if cfg.MailProvider == MailSendGrid && cfg.SendGridAPIKey == "" {
		return Config{}, fmt.Errorf("SENDGRID_API_KEY is required when MAIL_PROVIDER=sendgrid")
	}
	return cfg, nil
}

// ValidateAPI checks the settings only the HTTP API needs.
func (c Config) ValidateAPI() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s (got %q)", key, strings.Join(allowed, ", "), value)
}

// clock parses an "HH:MM" time of day into an offset from midnight.
func clock(key, fallback string) (time.Duration, error) {
	raw := config.String(key, fallback)
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be HH:MM (got %q)", key, raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
