package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"STOCK_APP_NAME",
	"STOCK_APP_ENV",
	"STOCK_APP_PORT",
	"STOCK_DATABASE_HOST",
	"STOCK_DATABASE_PORT",
	"STOCK_DATABASE_PASSWORD",
	"STOCK_DATABASE_SSLMODE",
	"STOCK_DATABASE_MAX_OPEN_CONNS",
	"STOCK_DATABASE_MAX_IDLE_CONNS",
	"STOCK_JWT_SECRET",
	"STOCK_AVAILABILITY_SAME_DAY_EXPIRY",
	"STOCK_AVAILABILITY_TIMEZONE",
	"STOCK_RESERVATION_TTL",
	"STOCK_IDEMPOTENCY_BACKEND",
	"STOCK_MESSAGING_ENABLED",
	"STOCK_MESSAGING_NAME_SERVERS",
	"STOCK_STORAGE_ENABLED",
	"STOCK_STORAGE_BUCKET",
}

// clearEnv unsets every key for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "stock-engine", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "stock", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "reject", cfg.Availability.SameDayExpiry)
		assert.Equal(t, "UTC", cfg.Availability.Timezone)
		assert.Equal(t, time.Duration(0), cfg.Reservation.TTL)
		assert.Equal(t, "memory", cfg.Idempotency.Backend)
		assert.Equal(t, "5 0 * * *", cfg.Scheduler.SweepCronSchedule)
		assert.Equal(t, "order-status", cfg.Messaging.OrderTopic)
	})

	t.Run("loads values from environment variables with STOCK prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_APP_NAME", "stock-test")
		t.Setenv("STOCK_DATABASE_HOST", "testdb.local")
		t.Setenv("STOCK_DATABASE_PORT", "5433")
		t.Setenv("STOCK_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("STOCK_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("STOCK_AVAILABILITY_SAME_DAY_EXPIRY", "allow")
		t.Setenv("STOCK_AVAILABILITY_TIMEZONE", "Asia/Shanghai")
		t.Setenv("STOCK_RESERVATION_TTL", "30m")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "stock-test", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "allow", cfg.Availability.SameDayExpiry)
		assert.Equal(t, 30*time.Minute, cfg.Reservation.TTL)

		loc, err := cfg.Availability.Location()
		require.NoError(t, err)
		assert.Equal(t, "Asia/Shanghai", loc.String())
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("STOCK_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown same-day policy", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_AVAILABILITY_SAME_DAY_EXPIRY", "sometimes")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "availability.same_day_expiry")
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_AVAILABILITY_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "availability.timezone")
	})

	t.Run("rejects negative reservation ttl", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_RESERVATION_TTL", "-1m")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reservation.ttl")
	})

	t.Run("rejects unknown idempotency backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_IDEMPOTENCY_BACKEND", "etcd")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idempotency.backend")
	})

	t.Run("messaging requires name servers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_MESSAGING_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "messaging.name_servers")
	})

	t.Run("storage requires bucket", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_STORAGE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOCK_APP_ENV", "production")
		t.Setenv("STOCK_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("STOCK_DATABASE_PASSWORD", "secure-password")
		t.Setenv("STOCK_DATABASE_SSLMODE", "require")
	}

	t.Run("requires jwt.secret in production", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("STOCK_JWT_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOCK_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret must be at least 32 characters")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("STOCK_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOCK_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
