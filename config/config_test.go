package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "Europe/Lisbon", cfg.Booking.Timezone)
	assert.Equal(t, 3, cfg.Booking.MinDescriptionLength)
	assert.Equal(t, 5, cfg.Booking.DailyLimit)
	assert.True(t, *cfg.Booking.RejectWeekends)
	assert.True(t, *cfg.Booking.ExclusiveSlots)
	assert.Equal(t, "https://json.geoapi.pt/municipios", cfg.Municipalities.SourceURL)
	assert.Equal(t, time.Hour, cfg.Municipalities.CacheTTL())
	assert.Equal(t, 5*time.Second, cfg.Booking.SlotLockTTL())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
http:
  address: ":9090"
  allow_origins: ["http://localhost:3000"]
database:
  driver: postgres
  host: db
  user: zeromonos
  password: secret
  name: bookings
redis:
  addr: "redis:6379"
kafka:
  brokers: ["kafka:9092"]
  notifications_topic: notifications
booking:
  reject_weekends: false
  daily_limit: -1
  min_lead_days: 3
municipalities:
  fallback: ["Lisboa", "Porto"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, "host=db port=5432 user=zeromonos password=secret dbname=bookings sslmode=disable", cfg.Database.DSN())
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "booking-events", cfg.Kafka.BookingEventsTopic)
	assert.False(t, *cfg.Booking.RejectWeekends)
	assert.Equal(t, -1, cfg.Booking.DailyLimit)
	assert.Equal(t, 3, cfg.Booking.MinLeadDays)
	assert.Empty(t, cfg.Municipalities.SourceURL)
	assert.Equal(t, []string{"Lisboa", "Porto"}, cfg.Municipalities.Fallback)
}

func TestParse_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "from-env")

	cfg, err := Parse([]byte("database:\n  password: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Password)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: sqlite\n"))
	assert.ErrorContains(t, err, "unknown database driver")

	_, err = Parse([]byte("booking:\n  timezone: Mars/Olympus\n"))
	assert.ErrorContains(t, err, "load timezone")

	_, err = Parse([]byte("booking:\n  min_lead_days: -2\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("worker:\n  municipality_refresh_minutes: -5\n"))
	assert.ErrorContains(t, err, "worker.municipality_refresh_minutes must be positive")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}
