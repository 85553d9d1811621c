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

	assert.Equal(t, "http://127.0.0.1:8080/notifications", c.NotificationsURL)
	assert.Equal(t, "ws://127.0.0.1:8080/notifications/hub", c.HubURL)
	assert.Empty(t, c.PushRedisAddr)
	assert.Equal(t, "vaultcore.db", c.StatePath)
	assert.Empty(t, c.AppID)
	assert.Equal(t, 10*time.Second, c.IdleCheckInterval)
	assert.Equal(t, 2*time.Minute, c.ReconnectMin)
	assert.Equal(t, 5*time.Minute, c.ReconnectMax)
	assert.False(t, c.MultiUser)
	assert.False(t, c.PushWhileLocked)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "ws://127.0.0.1:8080/notifications/hub", cfg.HubURL)
	assert.Equal(t, 10*time.Second, cfg.IdleCheckInterval)
}
