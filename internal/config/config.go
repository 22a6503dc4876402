package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"

	TransportSMTP = "smtp"
	TransportAMQP = "amqp"
)

type Config struct {
	Env         string        `env:"APP_ENV" env-default:"local"`
	TargetsPath string        `env:"SCRAPE_TARGETS_PATH" env-default:"data/products_to_scrape.json"`
	Port        string        `env:"PORT" env-default:"8080"`
	RunTimeout  time.Duration `env:"RUN_TIMEOUT" env-default:"4m"`

	StorageDriver string `env:"STORAGE_DRIVER" env-default:"sqlite"`
	DatabaseDSN   string `env:"DATABASE_DSN" env-default:"pricewatch.db"`
	ProjectID     string `env:"GOOGLE_CLOUD_PROJECT"`

	Fetch Fetch
	Mail  Mail
	Redis Redis
	AMQP  AMQP

	DiscordWebhookURL string `env:"DISCORD_WEBHOOK_URL"`
	CurrencySymbol    string `env:"CURRENCY_SYMBOL" env-default:"₹"`
}

type Fetch struct {
	Timeout        time.Duration `env:"FETCH_TIMEOUT" env-default:"30s"`
	MaxHeaderBytes int64         `env:"FETCH_MAX_HEADER_BYTES" env-default:"1048576"`
	UserAgent      string        `env:"FETCH_USER_AGENT" env-default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"`
	Concurrency    int           `env:"FETCH_CONCURRENCY" env-default:"4"`
	RatePerSecond  float64       `env:"FETCH_RATE_PER_SECOND" env-default:"2"`
	BrowserEnabled bool          `env:"BROWSER_ENABLED" env-default:"false"`
	ChromePath     string        `env:"CHROME_PATH"`
	BrowserHosts   []string      `env:"BROWSER_HOSTS" env-separator:","`
}

type Mail struct {
	Transport string `env:"MAIL_TRANSPORT" env-default:"smtp"`
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT" env-default:"587"`
	Username  string `env:"SMTP_USERNAME"`
	Password  string `env:"SMTP_PASSWORD"`
	From      string `env:"MAIL_FROM" env-default:"noreply@dailyglam.local"`
	Retries   int    `env:"MAIL_RETRIES" env-default:"2"`
}

type Redis struct {
	Addr    string        `env:"REDIS_ADDR"`
	DB      int           `env:"REDIS_DB" env-default:"0"`
	LockTTL time.Duration `env:"LOCK_TTL" env-default:"15m"`
}

type AMQP struct {
	URL            string `env:"AMQP_URL"`
	Queue          string `env:"MAIL_QUEUE" env-default:"email_queue"`
	WorkerPoolSize int    `env:"MAILER_WORKERS" env-default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	switch cfg.StorageDriver {
	case DriverSQLite, DriverPostgres:
	case DriverFirestore:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required for the firestore driver")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	switch cfg.Mail.Transport {
	case TransportSMTP:
		if cfg.Mail.Host == "" {
			slog.Warn("SMTP_HOST not set, price alert emails will fail and alerts stay active")
		}
	case TransportAMQP:
		if cfg.AMQP.URL == "" {
			return nil, fmt.Errorf("AMQP_URL environment variable is required for the amqp mail transport")
		}
	default:
		return nil, fmt.Errorf("unknown MAIL_TRANSPORT %q", cfg.Mail.Transport)
	}

	if cfg.Fetch.Concurrency < 1 {
		return nil, fmt.Errorf("invalid FETCH_CONCURRENCY %d: must be at least 1", cfg.Fetch.Concurrency)
	}
	if cfg.Fetch.RatePerSecond <= 0 {
		return nil, fmt.Errorf("invalid FETCH_RATE_PER_SECOND %v: must be positive", cfg.Fetch.RatePerSecond)
	}

	if cfg.DiscordWebhookURL == "" {
		slog.Debug("DISCORD_WEBHOOK_URL not set, ops summaries will be skipped")
	}

	return &cfg, nil
}
