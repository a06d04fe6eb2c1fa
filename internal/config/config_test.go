package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "123456")
	t.Setenv("DB_NAME", "pharmacy")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestNewConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, "last", cfg.Pricing.RemainderPolicy)
	assert.Equal(t, int32(0), cfg.Pricing.CurrencyScale)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "host=localhost port=5432 user=postgres password=123456 dbname=pharmacy sslmode=disable", cfg.Postgres.ConnString())
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("DB_MAX_CONN_LIFETIME", "1h")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("CURRENCY_SCALE", "2")
	t.Setenv("REMAINDER_POLICY", "largest")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, int32(20), cfg.Postgres.MaxConns)
	assert.Equal(t, time.Hour, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "order.created", cfg.Kafka.Topic)
	assert.Equal(t, int32(2), cfg.Pricing.CurrencyScale)
	assert.Equal(t, "largest", cfg.Pricing.RemainderPolicy)
}

func TestNewConfig_YAMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  port: "9090"
postgres:
  host: db.internal
  port: "5433"
  user: pos
  password: secret
  dbname: pharmacy
  max_conn_lifetime: 10m
auth:
  secret: yaml-secret
pricing:
  currency_scale: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DB_HOST", "override.internal")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "override.internal", cfg.Postgres.Host)
	assert.Equal(t, "5433", cfg.Postgres.Port)
	assert.Equal(t, 10*time.Minute, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, "yaml-secret", cfg.Auth.Secret)
	assert.Equal(t, int32(2), cfg.Pricing.CurrencyScale)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns, "unset YAML keys keep their defaults")
}

func TestNewConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "missing_host", env: map[string]string{"DB_HOST": ""}, wantErr: "DB_HOST is required"},
		{name: "missing_secret", env: map[string]string{"JWT_SECRET": ""}, wantErr: "JWT_SECRET is required"},
		{name: "bad_max_conns", env: map[string]string{"DB_MAX_CONNS": "many"}, wantErr: `invalid DB_MAX_CONNS "many"`},
		{name: "min_above_max", env: map[string]string{"DB_MIN_CONNS": "50"}, wantErr: "DB_MIN_CONNS (50) cannot exceed DB_MAX_CONNS (10)"},
		{name: "negative_scale", env: map[string]string{"CURRENCY_SCALE": "-1"}, wantErr: "CURRENCY_SCALE cannot be negative, got -1"},
		{name: "missing_config_file", env: map[string]string{"CONFIG_PATH": "/nonexistent/config.yaml"}, wantErr: "failed to open config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.NewConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
