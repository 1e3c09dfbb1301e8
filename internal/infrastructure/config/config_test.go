package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pharmadesk")
	t.Setenv("JWT_SECRET", secret)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, int32(20), cfg.DBMaxConns)
	assert.Equal(t, 30*time.Second, cfg.BatchCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.True(t, cfg.IdempotencyEnabled)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.CacheEnabled())
	assert.Empty(t, cfg.PaymentRoles)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pharmadesk")
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("BATCH_CACHE_TTL", "5s")
	t.Setenv("PAYMENT_ROLES", "accounts,owner")

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, 5*time.Second, cfg.BatchCacheTTL)
	assert.Equal(t, []string{"accounts", "owner"}, cfg.PaymentRoles)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing database", map[string]string{"JWT_SECRET": secret}, "DATABASE_URL"},
		{"short secret", map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": "short"}, "at least 32"},
		{"pool bounds", map[string]string{
			"DATABASE_URL": "postgres://x", "JWT_SECRET": secret, "DB_MIN_CONNS": "30",
		}, "DB_MIN_CONNS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()

			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}
