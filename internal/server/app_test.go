package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/attempts"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/mail"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.StoreBackend = "memory"
	c.CounterBackend = "memory"
	c.MailBackend = "memory"
	c.EventsBackend = "none"
	c.BcryptCost = bcrypt.MinCost
	return c
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOpenStore(t *testing.T) {
	c := testConfig()
	m, err := openStore(c)
	require.NoError(t, err)
	assert.IsType(t, &repomanager.MemoryRepositoryManager{}, m)

	c.StoreBackend = "postgres"
	pg, err := openStore(c)
	require.NoError(t, err)
	assert.IsType(t, &repomanager.PostgresRepositoryManager{}, pg)
	require.NoError(t, pg.Close())

	c.StoreBackend = "mongo"
	_, err = openStore(c)
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestOpenCounter(t *testing.T) {
	ctx := context.Background()
	c := testConfig()

	counter, closer, err := openCounter(ctx, c)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &attempts.Memory{}, counter)

	mr := miniredis.RunT(t)
	c.CounterBackend = "redis"
	c.RedisAddr = mr.Addr()
	counter, closer, err = openCounter(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()
	assert.IsType(t, &attempts.Redis{}, counter)

	n, err := counter.RecordFailure(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mr.Close()
	_, _, err = openCounter(ctx, c)
	assert.ErrorContains(t, err, "redis init error")

	c.CounterBackend = "memcached"
	_, _, err = openCounter(ctx, c)
	assert.ErrorContains(t, err, "unknown counter backend")
}

func TestOpenMailer(t *testing.T) {
	ctx := context.Background()
	c := testConfig()
	var console bytes.Buffer

	tests := []struct {
		backend string
		want    interface{}
	}{
		{"memory", &mail.Outbox{}},
		{"console", &mail.Console{}},
		{"smtp", &mail.SMTP{}},
		{"s3", &mail.S3{}},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			c.MailBackend = tt.backend
			m, err := openMailer(ctx, c, &console)
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}

	c.MailBackend = "pigeon"
	_, err := openMailer(ctx, c, &console)
	assert.ErrorContains(t, err, "unknown mail backend")
}

func TestOpenEvents(t *testing.T) {
	c := testConfig()

	p, err := openEvents(c, testLogger())
	require.NoError(t, err)
	assert.IsType(t, events.Nop{}, p)

	c.EventsBackend = "log"
	p, err = openEvents(c, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &events.Log{}, p)

	c.EventsBackend = "kafka"
	_, err = openEvents(c, testLogger())
	assert.ErrorContains(t, err, "unknown events backend")
}

func TestNewApp_Memory(t *testing.T) {
	ctx := context.Background()

	app, err := NewApp(ctx, testConfig(), testLogger())
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Migrate(ctx))

	u, err := app.Accounts().CreateSuperuser(ctx, "root", "root@example.com", "S3cure-horse-battery")
	require.NoError(t, err)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.IsActive)

	app.Close()
	app.Close()
}

func TestNewApp_UnknownBackend(t *testing.T) {
	c := testConfig()
	c.MailBackend = "pigeon"

	_, err := NewApp(context.Background(), c, testLogger())
	assert.Error(t, err)
}
