package config

import (
	"fmt"
	"strings"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	// MailTransport selects how emails leave the system: "smtp" or "api".
	MailTransport string `env:"MAIL_TRANSPORT,default=smtp"`

	SMTPHost     string `env:"SMTP_HOST,default=localhost"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	MailAPIEndpoint string `env:"MAIL_API_ENDPOINT"`
	MailAPIKey      string `env:"MAIL_API_KEY"`

	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=16"`
	APIPort           int    `env:"API_PORT,default=8080"`
	OpsPort           int    `env:"OPS_PORT,default=9090"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.MailTransport)) {
	case "smtp":
		cfg.MailTransport = "smtp"
		if strings.TrimSpace(cfg.SMTPFrom) == "" {
			return nil, fmt.Errorf("SMTP_FROM is required when MAIL_TRANSPORT=smtp")
		}
	case "api":
		cfg.MailTransport = "api"
		if strings.TrimSpace(cfg.MailAPIEndpoint) == "" {
			return nil, fmt.Errorf("MAIL_API_ENDPOINT is required when MAIL_TRANSPORT=api")
		}
	default:
		return nil, fmt.Errorf("invalid MAIL_TRANSPORT %q: must be smtp or api", cfg.MailTransport)
	}

	return &cfg, nil
}
