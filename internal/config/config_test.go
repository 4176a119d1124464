package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creel.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
instance: warehouse-1
redis:
  url: redis://localhost:6379/0
correlator:
  quiet_period_ms: 2000
notify:
  policy:
    managers: by_client
    include_client: false
`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warehouse-1", config.Instance)
	assert.Equal(t, "redis://localhost:6379/0", config.Redis.URL)
	assert.Equal(t, 2*time.Second, config.Correlator.QuietPeriod())
	assert.Equal(t, "by_client", config.Notify.Policy.Managers)
	assert.False(t, config.Notify.Policy.IncludeClientOrDefault())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
instance: warehouse-1
redis:
  url: redis://localhost:6379/0
`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, config.Correlator.QuietPeriod())
	assert.Equal(t, 5*time.Minute, config.Correlator.BindingTTL())
	assert.Equal(t, 10*time.Minute, config.Prompts.TTL())
	assert.Equal(t, 10, config.Notify.MaxAlbum)
	assert.Equal(t, 5*time.Second, config.Notify.SendTimeout())
	assert.Equal(t, "all", config.Notify.Policy.Managers)
	assert.True(t, config.Notify.Policy.IncludeClientOrDefault())
	assert.True(t, config.Notify.Policy.ExcludeAuthorOrDefault())
	assert.Equal(t, "info", config.LogLevel)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/creel.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "version: [unclosed")

	config, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreelConfig)
		wantErr string
	}{
		{"bad version", func(c *CreelConfig) { c.Version = "2.0" }, "unsupported version"},
		{"missing instance", func(c *CreelConfig) { c.Instance = "" }, "instance name is required"},
		{"missing redis url", func(c *CreelConfig) { c.Redis.URL = "" }, "redis.url is required"},
		{"quiet period exceeds binding ttl", func(c *CreelConfig) {
			c.Correlator.QuietPeriodMs = 400000
		}, "cannot exceed"},
		{"album too large", func(c *CreelConfig) { c.Notify.MaxAlbum = 11 }, "max_album"},
		{"bad manager scope", func(c *CreelConfig) { c.Notify.Policy.Managers = "some" }, "managers must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &CreelConfig{
				Version:  "1.0",
				Instance: "warehouse-1",
				Redis:    RedisConfig{URL: "redis://localhost:6379"},
			}
			c.ApplyDefaults()
			tt.mutate(c)

			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
