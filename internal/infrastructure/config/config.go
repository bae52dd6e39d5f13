// Package config loads ledger settings from config.toml, an optional .env
// file and PHARMA_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "PHARMA"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Sales     SalesConfig     `mapstructure:"sales"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig selects postgres (the default) or a local sqlite file.
// Connection lifetimes are in minutes.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int           `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int           `mapstructure:"conn_max_idle_time"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

// RedisConfig points at the idempotency store. An empty Host keeps it in
// process memory.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Required refuses to start on the in-memory idempotency store when
	// Redis is configured but unreachable.
	Required bool `mapstructure:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
}

// SalesConfig is the posting policy. TaxRate is a percentage of the
// discounted subtotal; MaxRetries bounds automatic retries on allocation
// conflicts.
type SalesConfig struct {
	TaxRate            decimal.Decimal `mapstructure:"-"`
	MaxRetries         int             `mapstructure:"max_retries"`
	AllocationStrategy string          `mapstructure:"allocation_strategy"`
	IdempotencyTTL     time.Duration   `mapstructure:"idempotency_ttl"`
}

type AlertsConfig struct {
	ExpiryWindowDays int           `mapstructure:"expiry_window_days"`
	CriticalDays     int           `mapstructure:"critical_days"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	SweepEnabled     bool          `mapstructure:"sweep_enabled"`
}

// ForecastConfig also carries the UTC time of the daily forecast run.
type ForecastConfig struct {
	WindowDays     int    `mapstructure:"window_days"`
	MinDataPoints  int    `mapstructure:"min_data_points"`
	DefaultModel   string `mapstructure:"default_model"`
	DefaultHorizon int    `mapstructure:"default_horizon"`
	DailyEnabled   bool   `mapstructure:"daily_enabled"`
	DailyHour      int    `mapstructure:"daily_hour"`
	DailyMinute    int    `mapstructure:"daily_minute"`
}

// TelemetryConfig drives OTLP export and Pyroscope. Insecure disables TLS
// towards the collector.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	ProfilingServer   string        `mapstructure:"profiling_server"`
}

// defaults lists every key. Registering a key is what lets AutomaticEnv
// override it during Unmarshal.
var defaults = map[string]any{
	"app.name": "pharmaos",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             "postgres",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "pharmacy",
	"database.sslmode":            "disable",
	"database.sqlite_path":        "pharmacy.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.slow_threshold":     200 * time.Millisecond,

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,
	"redis.required": false,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        time.Minute,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       1 << 20,
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 120,
	"http.rate_limit_window":   time.Minute,
	"http.trusted_proxies":     []string{},

	"sales.tax_rate":            "0",
	"sales.max_retries":         3,
	"sales.allocation_strategy": "fefo",
	"sales.idempotency_ttl":     24 * time.Hour,

	"alerts.expiry_window_days": 30,
	"alerts.critical_days":      7,
	"alerts.sweep_interval":     time.Hour,
	"alerts.sweep_enabled":      true,

	"forecast.window_days":     30,
	"forecast.min_data_points": 7,
	"forecast.default_model":   "moving_average",
	"forecast.default_horizon": 30,
	"forecast.daily_enabled":   true,
	"forecast.daily_hour":      2,
	"forecast.daily_minute":    0,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "pharmaos",
	"telemetry.insecure":                true,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.profiling_enabled":       false,
	"telemetry.profiling_server":        "",
}

// Load reads configuration. A missing config.toml is not an error; a .env
// file never overrides variables that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(v.GetString("sales.tax_rate")))
	if err != nil {
		return nil, fmt.Errorf("sales.tax_rate: %w", err)
	}
	cfg.Sales.TaxRate = rate

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.Driver != "postgres" && db.Driver != "sqlite":
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", db.Driver)
	case db.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	}

	hundred := decimal.NewFromInt(100)
	switch {
	case c.Sales.TaxRate.IsNegative() || c.Sales.TaxRate.GreaterThan(hundred):
		return fmt.Errorf("sales.tax_rate must be between 0 and 100, got %s", c.Sales.TaxRate)
	case c.Sales.MaxRetries < 1 || c.Sales.MaxRetries > 3:
		return fmt.Errorf("sales.max_retries must be between 1 and 3, got %d", c.Sales.MaxRetries)
	case c.Alerts.ExpiryWindowDays < 1:
		return errors.New("alerts.expiry_window_days must be positive")
	case c.Alerts.CriticalDays < 0 || c.Alerts.CriticalDays > c.Alerts.ExpiryWindowDays:
		return errors.New("alerts.critical_days must be between 0 and alerts.expiry_window_days")
	case c.Forecast.MinDataPoints < 1 || c.Forecast.MinDataPoints > c.Forecast.WindowDays:
		return errors.New("forecast.min_data_points must be between 1 and forecast.window_days")
	case c.Forecast.DailyHour < 0 || c.Forecast.DailyHour > 23 || c.Forecast.DailyMinute < 0 || c.Forecast.DailyMinute > 59:
		return fmt.Errorf("forecast daily run time is invalid: %02d:%02d", c.Forecast.DailyHour, c.Forecast.DailyMinute)
	case c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1:
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)
	}

	if c.App.Env != "production" {
		return nil
	}
	switch {
	case db.Driver == "postgres" && db.Password == "":
		return errors.New("database.password is required in production")
	case db.Driver == "postgres" && db.SSLMode == "disable":
		return errors.New("database.sslmode cannot be 'disable' in production")
	case c.Telemetry.DBLogFullSQL:
		return errors.New("telemetry.db_log_full_sql must be false in production")
	}
	return nil
}

// DSN is the sqlite file path or a URL-escaped postgres connection string.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr is host:port, or "" when Redis is not configured.
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + strconv.Itoa(r.Port)
}
