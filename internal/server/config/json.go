package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/dmitrijs2005/accounts/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// strings such as "15m" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	LogLevel         string `json:"log_level"`

	StoreBackend string `json:"store_backend"`
	DatabaseDSN  string `json:"database_dsn"`

	SecretKey               string         `json:"secret_key"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	BcryptCost              int            `json:"bcrypt_cost"`

	MaxFailedAttempts int            `json:"max_failed_attempts"`
	LockoutTime       timex.Duration `json:"lockout_time"`
	CounterBackend    string         `json:"counter_backend"`
	RedisAddr         string         `json:"redis_addr"`
	RedisPassword     string         `json:"redis_password"`
	RedisDB           int            `json:"redis_db"`

	ActivationTokenValidity timex.Duration `json:"activation_token_validity"`
	PasswordResetTimeout    timex.Duration `json:"password_reset_timeout"`

	MailBackend  string `json:"mail_backend"`
	MailFrom     string `json:"default_from_email"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	EventsBackend string `json:"events_backend"`
	NatsURL       string `json:"nats_url"`
	NatsSubject   string `json:"nats_subject"`

	BaseURL  string `json:"base_url"`
	SiteName string `json:"site_name"`
}

// parseJson overlays values from the file named by -c or -config. Keys that
// are absent (zero) in the file leave the current value untouched. A
// missing or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.SessionValidityDuration, c.SessionValidityDuration)
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.MaxFailedAttempts, c.MaxFailedAttempts)
	setDuration(&config.LockoutTime, c.LockoutTime)
	setString(&config.CounterBackend, c.CounterBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setDuration(&config.ActivationTokenValidity, c.ActivationTokenValidity)
	setDuration(&config.PasswordResetTimeout, c.PasswordResetTimeout)
	setString(&config.MailBackend, c.MailBackend)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.EventsBackend, c.EventsBackend)
	setString(&config.NatsURL, c.NatsURL)
	setString(&config.NatsSubject, c.NatsSubject)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.SiteName, c.SiteName)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
