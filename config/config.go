package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTP           HTTPConfig           `yaml:"http"`
	Log            LogConfig            `yaml:"log"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	Booking        BookingConfig        `yaml:"booking"`
	Municipalities MunicipalitiesConfig `yaml:"municipalities"`
	Worker         WorkerConfig         `yaml:"worker"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address"`
	SwaggerEnabled bool     `yaml:"swagger_enabled"`
	AllowOrigins   []string `yaml:"allow_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	// PublicURL prefixes the lookup link encoded in receipt QR codes.
	PublicURL string `yaml:"public_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	Migrate  bool   `yaml:"migrate"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type BookingConfig struct {
	Timezone             string `yaml:"timezone"`
	MinDescriptionLength int    `yaml:"min_description_length"`
	MinLeadDays          int    `yaml:"min_lead_days"`
	RejectWeekends       *bool  `yaml:"reject_weekends"`
	// DailyLimit caps active bookings per municipality and day; negative disables it.
	DailyLimit         int   `yaml:"daily_limit"`
	ExclusiveSlots     *bool `yaml:"exclusive_slots"`
	SlotLockTTLSeconds int   `yaml:"slot_lock_ttl_seconds"`
}

func (b BookingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}

func (b BookingConfig) SlotLockTTL() time.Duration {
	return time.Duration(b.SlotLockTTLSeconds) * time.Second
}

type MunicipalitiesConfig struct {
	SourceURL             string   `yaml:"source_url"`
	CacheTTLSeconds       int      `yaml:"cache_ttl_seconds"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
	Fallback              []string `yaml:"fallback"`
}

func (m MunicipalitiesConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

func (m MunicipalitiesConfig) RequestTimeout() time.Duration {
	return time.Duration(m.RequestTimeoutSeconds) * time.Second
}

type WorkerConfig struct {
	MunicipalityRefreshMinutes int `yaml:"municipality_refresh_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.RateLimitRPS == 0 {
		c.HTTP.RateLimitRPS = 5
	}
	if c.HTTP.RateLimitBurst == 0 {
		c.HTTP.RateLimitBurst = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.BookingEventsTopic == "" {
		c.Kafka.BookingEventsTopic = "booking-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "booking-notifier"
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Europe/Lisbon"
	}
	if c.Booking.MinDescriptionLength == 0 {
		c.Booking.MinDescriptionLength = 3
	}
	if c.Booking.RejectWeekends == nil {
		c.Booking.RejectWeekends = boolPtr(true)
	}
	if c.Booking.DailyLimit == 0 {
		c.Booking.DailyLimit = 5
	}
	if c.Booking.ExclusiveSlots == nil {
		c.Booking.ExclusiveSlots = boolPtr(true)
	}
	if c.Booking.SlotLockTTLSeconds == 0 {
		c.Booking.SlotLockTTLSeconds = 5
	}
	if c.Municipalities.SourceURL == "" && len(c.Municipalities.Fallback) == 0 {
		c.Municipalities.SourceURL = "https://json.geoapi.pt/municipios"
	}
	if c.Municipalities.CacheTTLSeconds == 0 {
		c.Municipalities.CacheTTLSeconds = 3600
	}
	if c.Municipalities.RequestTimeoutSeconds == 0 {
		c.Municipalities.RequestTimeoutSeconds = 5
	}
	if c.Worker.MunicipalityRefreshMinutes == 0 {
		c.Worker.MunicipalityRefreshMinutes = 30
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Booking.MinLeadDays < 0 {
		return fmt.Errorf("booking.min_lead_days must not be negative")
	}
	if _, err := c.Booking.Location(); err != nil {
		return err
	}
	if c.Worker.MunicipalityRefreshMinutes <= 0 {
		return fmt.Errorf("worker.municipality_refresh_minutes must be positive, got %d", c.Worker.MunicipalityRefreshMinutes)
	}
	return nil
}

func boolPtr(v bool) *bool {
	return &v
}
