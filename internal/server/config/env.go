package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/accounts/internal/flagx"
)

// loadDotEnv reads ./.env when present and then the file named by
// -env-file. Variables already set in the process environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	return nil
}

// parseEnv overlays values from the environment. Unparsable values panic,
// as with a malformed JSON file.
//
//	LOCKOUT_TIME                minutes
//	ACTIVATION_TOKEN_VALIDITY   seconds or a Go duration ("72h")
//	PASSWORD_RESET_TIMEOUT      seconds or a Go duration ("1h")
//	SESSION_VALIDITY            seconds or a Go duration
func parseEnv(config *Config) {
	if err := loadDotEnv(); err != nil {
		panic(err)
	}

	envString("HTTP_ADDRESS", &config.EndpointAddrHTTP)
	envString("GRPC_ADDRESS", &config.EndpointAddrGRPC)
	envString("LOG_LEVEL", &config.LogLevel)
	envString("STORE_BACKEND", &config.StoreBackend)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envDuration("SESSION_VALIDITY", &config.SessionValidityDuration)
	envInt("BCRYPT_COST", &config.BcryptCost)

	envInt("MAX_FAILED_ATTEMPTS", &config.MaxFailedAttempts)
	envMinutes("LOCKOUT_TIME", &config.LockoutTime)
	envString("COUNTER_BACKEND", &config.CounterBackend)
	envString("REDIS_ADDR", &config.RedisAddr)
	envString("REDIS_PASSWORD", &config.RedisPassword)
	envInt("REDIS_DB", &config.RedisDB)

	envDuration("ACTIVATION_TOKEN_VALIDITY", &config.ActivationTokenValidity)
	envDuration("PASSWORD_RESET_TIMEOUT", &config.PasswordResetTimeout)

	envString("MAIL_BACKEND", &config.MailBackend)
	envString("DEFAULT_FROM_EMAIL", &config.MailFrom)
	envString("SMTP_HOST", &config.SMTPHost)
	envInt("SMTP_PORT", &config.SMTPPort)
	envString("SMTP_USER", &config.SMTPUser)
	envString("SMTP_PASSWORD", &config.SMTPPassword)

	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)

	envString("EVENTS_BACKEND", &config.EventsBackend)
	envString("NATS_URL", &config.NatsURL)
	envString("NATS_SUBJECT", &config.NatsSubject)

	envString("BASE_URL", &config.BaseURL)
	envString("SITE_NAME", &config.SiteName)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = n
}

func envMinutes(key string, dst *time.Duration) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = time.Duration(n) * time.Minute
}

func envDuration(key string, dst *time.Duration) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = d
}
