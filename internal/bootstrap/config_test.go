package bootstrap

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/notify-dispatch/config"
)

func TestGetEnabledServices(t *testing.T) {
	tests := []struct {
		name     string
		services string
		want     []string
	}{
		{name: "http only", services: "http", want: []string{"http"}},
		{name: "ordered", services: "reaper, http,dispatcher", want: []string{"http", "dispatcher", "reaper"}},
		{name: "invalid", services: "http,scheduler", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetEnabledServices(&config.AppConfig{Services: tt.services}))
		})
	}
	assert.Empty(t, GetEnabledServices(nil))
}

func TestValidateServiceConfig(t *testing.T) {
	require.NoError(t, ValidateServiceConfig(&config.AppConfig{Services: "dispatcher"}))
	require.Error(t, ValidateServiceConfig(&config.AppConfig{Services: ""}))
	require.Error(t, ValidateServiceConfig(&config.AppConfig{Services: "rules-engine"}))
	require.Error(t, ValidateServiceConfig(nil))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SERVICES", "http,dispatcher")
	t.Setenv("TRIGGER_STATIC_TOKENS", " a , ,b ")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Dispatcher.BatchSize)
	assert.Equal(t, 60*time.Second, cfg.Dispatcher.VisibilityTimeout)
	assert.Equal(t, 55*time.Second, cfg.Trigger.Timeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Trigger.StaticTokens)
	assert.True(t, cfg.IsHTTPServerEnabled())
	assert.True(t, cfg.IsDispatcherEnabled())
	assert.False(t, cfg.IsReaperEnabled())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.LogConfig{Level: "debug", Format: "text"})
	logger.Debug("leased", "count", 3)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "service=notify-dispatch")
	assert.Contains(t, buf.String(), "count=3")

	buf.Reset()
	logger = NewLogger(&buf, config.LogConfig{Level: "bogus"})
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestLogConfigSanitize(t *testing.T) {
	cfg := config.LogConfig{Level: " WARN "}
	cfg.Sanitize(true)
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "text", cfg.Format)

	cfg = config.LogConfig{Format: "JSON"}
	cfg.Sanitize(true)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}
