package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://vj:vj@localhost:5432/vj?sslmode=disable")
	t.Setenv("GATEWAY_BASE_URL", "https://gateway.example.com")
}

func TestFromViper_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 4001, cfg.Port)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, GatewayLive, cfg.Gateway.Mode)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Flow.PollInterval)
	assert.Equal(t, 30, cfg.Flow.MaxAttempts)
	assert.False(t, cfg.Flow.CountTransientErrors)
	assert.Equal(t, 5*time.Minute, cfg.Flow.Timeout)
	assert.Equal(t, "+256", cfg.Flow.CountryCode)
	assert.Equal(t, "37", cfg.Flow.MobilePrefixes)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestFromViper_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("GATEWAY_MODE", "mock")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_MAX_ATTEMPTS", "10")
	t.Setenv("POLL_COUNT_TRANSIENT_ERRORS", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, GatewayMock, cfg.Gateway.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Flow.PollInterval)
	assert.Equal(t, 10, cfg.Flow.MaxAttempts)
	assert.True(t, cfg.Flow.CountTransientErrors)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestFromViper_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing jwt secret",
			env:  map[string]string{"JWT_SECRET": ""},
			want: "JWT_SECRET",
		},
		{
			name: "redis without address",
			env:  map[string]string{"STORE_BACKEND": "redis"},
			want: "REDIS_ADDR",
		},
		{
			name: "unknown store",
			env:  map[string]string{"STORE_BACKEND": "firebase"},
			want: "STORE_BACKEND",
		},
		{
			name: "live gateway without url",
			env:  map[string]string{"GATEWAY_BASE_URL": ""},
			want: "GATEWAY_BASE_URL",
		},
		{
			name: "zero attempts",
			env:  map[string]string{"POLL_MAX_ATTEMPTS": "0"},
			want: "POLL_MAX_ATTEMPTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromViper(newViper())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
