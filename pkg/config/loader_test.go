package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/crewnotify/pkg/config"
)

type sampleConfig struct {
	Name     string        `env:"CONFIG_TEST_NAME" envDefault:"default_value"`
	Count    int           `env:"CONFIG_TEST_COUNT" envDefault:"42"`
	Interval time.Duration `env:"CONFIG_TEST_INTERVAL" envDefault:"5s"`
	Tags     []string      `env:"CONFIG_TEST_TAGS" envSeparator:","`
}

type requiredConfig struct {
	Required string `env:"CONFIG_TEST_REQUIRED,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg sampleConfig
		require.NoError(t, config.Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))
		assert.Equal(t, sampleConfig{Name: "default_value", Count: 42, Interval: 5 * time.Second}, cfg)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_NAME", "from_env")
		t.Setenv("CONFIG_TEST_TAGS", "a,b")

		var cfg sampleConfig
		require.NoError(t, config.Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))
		assert.Equal(t, "from_env", cfg.Name)
		assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	})

	t.Run("env file does not override environment", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(file, []byte("CONFIG_TEST_NAME=from_file\nCONFIG_TEST_COUNT=7\n"), 0o600))
		t.Setenv("CONFIG_TEST_NAME", "from_env")
		// Registers cleanup for the variable the file sets.
		t.Setenv("CONFIG_TEST_COUNT", "")
		require.NoError(t, os.Unsetenv("CONFIG_TEST_COUNT"))

		var cfg sampleConfig
		require.NoError(t, config.Load(&cfg, file))
		assert.Equal(t, "from_env", cfg.Name)
		assert.Equal(t, 7, cfg.Count)
	})

	t.Run("missing required", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Load(&cfg, filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *sampleConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})

	t.Run("must load panics", func(t *testing.T) {
		var cfg requiredConfig
		assert.Panics(t, func() { config.MustLoad(&cfg, filepath.Join(t.TempDir(), "missing.env")) })
	})
}

func TestApp(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		var cfg config.App
		require.NoError(t, config.Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))
		require.NoError(t, cfg.Validate())

		assert.Equal(t, config.BackendMemory, cfg.StorageBackend)
		assert.Equal(t, config.BackendMemory, cfg.AuditBackend)
		assert.Equal(t, 5, cfg.Delivery.MaxAttempts)
		assert.Equal(t, 10*time.Second, cfg.Delivery.SendTimeout)
		assert.Equal(t, []int{30, 14, 7}, cfg.Jobs.CertificateThresholds)
		assert.Equal(t, ":8080", cfg.HTTP.Addr)
		assert.Equal(t, 15*time.Second, cfg.API.CheckTimeout)
		assert.Equal(t, 500, cfg.API.MaxListLimit)
		assert.False(t, cfg.UsesMongo())
	})

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"mongo storage without url", map[string]string{"STORAGE_BACKEND": "mongo"}, true},
		{"mongo storage with url", map[string]string{"STORAGE_BACKEND": "mongo", "MONGODB_URL": "mongodb://localhost:27017"}, false},
		{"postgres audit without url", map[string]string{"AUDIT_BACKEND": "postgres"}, true},
		{"postgres audit with url", map[string]string{"AUDIT_BACKEND": "postgres", "PG_CONN_URL": "postgres://localhost/crew"}, false},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "dynamo"}, true},
		{"unknown audit", map[string]string{"AUDIT_BACKEND": "s3"}, true},
		{"zero attempts", map[string]string{"DELIVERY_MAX_ATTEMPTS": "0"}, true},
		{"bad timezone", map[string]string{"SCHEDULER_TIMEZONE": "Mars/Olympus"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var cfg config.App
			require.NoError(t, config.Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}
