package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/attempts"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/mail"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
)

const redisPingTimeout = 5 * time.Second

func openStore(c *config.Config) (repomanager.RepositoryManager, error) {
	switch c.StoreBackend {
	case "postgres":
		m, err := repomanager.OpenPostgres(c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		return m, nil
	case "memory":
		return repomanager.NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
}

// openCounter returns the counter and, for the redis backend, the client
// to close on shutdown.
func openCounter(ctx context.Context, c *config.Config) (attempts.Counter, io.Closer, error) {
	cfg := attempts.Config{MaxFailedAttempts: c.MaxFailedAttempts, LockoutTime: c.LockoutTime}

	switch c.CounterBackend {
	case "memory":
		return attempts.NewMemory(cfg), nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis init error: %w", err)
		}
		return attempts.NewRedis(cfg, client), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown counter backend %q", c.CounterBackend)
	}
}

func openMailer(ctx context.Context, c *config.Config, console io.Writer) (mail.Mailer, error) {
	switch c.MailBackend {
	case "smtp":
		return mail.NewSMTP(mail.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
		}), nil
	case "console":
		return mail.NewConsole(console), nil
	case "memory":
		return mail.NewOutbox(), nil
	case "s3":
		m, err := mail.NewS3(ctx, mail.S3Config{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 mail init error: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown mail backend %q", c.MailBackend)
	}
}

func openEvents(c *config.Config, l logging.Logger) (events.Publisher, error) {
	switch c.EventsBackend {
	case "nats":
		p, err := events.NewNATS(c.NatsURL, c.NatsSubject)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "log":
		return events.NewLog(l), nil
	case "none", "":
		return events.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", c.EventsBackend)
	}
}
