package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8000", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "postgres", c.StoreBackend)
	assert.Equal(t, 5, c.MaxFailedAttempts)
	assert.Equal(t, 15*time.Minute, c.LockoutTime)
	assert.Equal(t, 72*time.Hour, c.ActivationTokenValidity)
	assert.Equal(t, time.Hour, c.PasswordResetTimeout)
	assert.Equal(t, "from@example.com", c.MailFrom)
	assert.Equal(t, "console", c.MailBackend)
	assert.Equal(t, "memory", c.CounterBackend)
	assert.Equal(t, "log", c.EventsBackend)
	assert.Equal(t, 10, c.BcryptCost)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c := LoadConfig()
	require.NotNil(t, c, "LoadConfig must not return nil")

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want.MaxFailedAttempts, c.MaxFailedAttempts)
	assert.Equal(t, want.LockoutTime, c.LockoutTime)
	assert.Equal(t, want.EndpointAddrHTTP, c.EndpointAddrHTTP)
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"max_failed_attempts": 7,
		"site_name":           "json.example",
		"lockout_time":        "20m",
	})
	t.Setenv("MAX_FAILED_ATTEMPTS", "9")
	os.Args = []string{"testbin", "-c", path, "-l", "30"}

	c := LoadConfig()

	assert.Equal(t, 9, c.MaxFailedAttempts, "env overrides json")
	assert.Equal(t, "json.example", c.SiteName, "json overrides defaults")
	assert.Equal(t, 30*time.Minute, c.LockoutTime, "flags override json")
}
