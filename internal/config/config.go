// Package config loads curator configuration from YAML, .env files and
// environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const (
	defaultAddress         = ":8095"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 30 * time.Second

	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute

	defaultRefreshSchedule = "@every 1m"
	defaultRefreshLease    = 10 * time.Minute

	defaultPublishSchedule = "@every 10s"
	defaultBatchSize       = 20
	defaultLeaseWindow     = time.Minute
	defaultBackendTimeout  = 30 * time.Second
	defaultListingCacheTTL = 5 * time.Minute
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = time.Minute

	defaultFetchTimeout      = 60 * time.Second
	defaultFetchAttempts     = 3
	defaultFetchInitialDelay = time.Second
	defaultFetchMaxDelay     = 30 * time.Second
	defaultFetchRate         = 2.0
	defaultFetchBurst        = 4

	defaultContentBucket = "curator-content"
	defaultArchiveBucket = "curator-archive"
	defaultCatalogIndex  = "curator_catalogue"
	defaultNotifyChannel = "curator:events"
)

// Config is the full curator configuration.
type Config struct {
	Debug         bool                `env:"APP_DEBUG" yaml:"debug"`
	Logging       logger.Config       `yaml:"logging"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Publish       PublishConfig       `yaml:"publish"`
	ObjectStore   ObjectStoreConfig   `yaml:"object_store"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Fetch         FetchConfig         `yaml:"fetch"`
}

type ServerConfig struct {
	Address         string        `env:"CURATOR_ADDRESS" yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            string        `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"` //nolint:gosec // DB connection config
	DBName          string        `env:"POSTGRES_DB"       yaml:"dbname"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns a lib/pq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// URL returns the postgres:// form used by migrations.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     d.DBName,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// RedisConfig configures the notification channel. Notifications are
// disabled when Enabled is false.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"` //nolint:gosec // connection config
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type SchedulerConfig struct {
	// RefreshSchedule is a robfig/cron spec for the refresh driver.
	RefreshSchedule string        `env:"REFRESH_SCHEDULE" yaml:"refresh_schedule"`
	TimeZone        string        `env:"CURATOR_TZ"       yaml:"time_zone"`
	RefreshLease    time.Duration `yaml:"refresh_lease"`
}

// Location loads the configured time zone. Empty means UTC.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", s.TimeZone, err)
	}
	return loc, nil
}

type PublishConfig struct {
	Schedule           string        `env:"PUBLISH_SCHEDULE" yaml:"schedule"`
	BatchSize          int           `yaml:"batch_size"`
	LeaseWindow        time.Duration `yaml:"lease_window"`
	BackendTimeout     time.Duration `yaml:"backend_timeout"`
	ListingCacheTTL    time.Duration `yaml:"listing_cache_ttl"`
	BreakerMaxFailures int           `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
}

type ObjectStoreConfig struct {
	Endpoint      string `env:"MINIO_ENDPOINT"   yaml:"endpoint"`
	AccessKey     string `env:"MINIO_ACCESS_KEY" yaml:"access_key"`
	SecretKey     string `env:"MINIO_SECRET_KEY" yaml:"secret_key"` //nolint:gosec // connection config
	UseSSL        bool   `env:"MINIO_USE_SSL"    yaml:"use_ssl"`
	Region        string `yaml:"region"`
	ContentBucket string `yaml:"content_bucket"`
	ArchiveBucket string `yaml:"archive_bucket"`
}

type ElasticsearchConfig struct {
	Addresses []string `env:"ES_ADDRESSES" yaml:"addresses"`
	Username  string   `env:"ES_USERNAME"  yaml:"username"`
	Password  string   `env:"ES_PASSWORD"  yaml:"password"` //nolint:gosec // connection config
	Index     string   `yaml:"index"`
}

type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	// RateLimit is the number of fetch attempts allowed per second.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

func setDefaults(cfg *Config) {
	setDefault(&cfg.Server.Address, defaultAddress)
	setDefault(&cfg.Server.ReadTimeout, defaultReadTimeout)
	setDefault(&cfg.Server.WriteTimeout, defaultWriteTimeout)
	setDefault(&cfg.Server.ShutdownTimeout, defaultShutdownTimeout)

	setDefault(&cfg.Database.Host, "localhost")
	setDefault(&cfg.Database.Port, "5432")
	setDefault(&cfg.Database.DBName, "curator")
	setDefault(&cfg.Database.SSLMode, "disable")
	setDefault(&cfg.Database.MaxOpenConns, defaultMaxOpenConns)
	setDefault(&cfg.Database.MaxIdleConns, defaultMaxIdleConns)
	setDefault(&cfg.Database.ConnMaxLifetime, defaultConnMaxLifetime)

	setDefault(&cfg.Redis.Address, "localhost:6379")
	setDefault(&cfg.Redis.Channel, defaultNotifyChannel)

	setDefault(&cfg.Scheduler.RefreshSchedule, defaultRefreshSchedule)
	setDefault(&cfg.Scheduler.RefreshLease, defaultRefreshLease)

	setDefault(&cfg.Publish.Schedule, defaultPublishSchedule)
	setDefault(&cfg.Publish.BatchSize, defaultBatchSize)
	setDefault(&cfg.Publish.LeaseWindow, defaultLeaseWindow)
	setDefault(&cfg.Publish.BackendTimeout, defaultBackendTimeout)
	setDefault(&cfg.Publish.ListingCacheTTL, defaultListingCacheTTL)
	setDefault(&cfg.Publish.BreakerMaxFailures, defaultBreakerFailures)
	setDefault(&cfg.Publish.BreakerTimeout, defaultBreakerTimeout)

	setDefault(&cfg.ObjectStore.ContentBucket, defaultContentBucket)
	setDefault(&cfg.ObjectStore.ArchiveBucket, defaultArchiveBucket)
	setDefault(&cfg.Elasticsearch.Index, defaultCatalogIndex)

	setDefault(&cfg.Fetch.Timeout, defaultFetchTimeout)
	setDefault(&cfg.Fetch.MaxAttempts, defaultFetchAttempts)
	setDefault(&cfg.Fetch.InitialDelay, defaultFetchInitialDelay)
	setDefault(&cfg.Fetch.MaxDelay, defaultFetchMaxDelay)
	setDefault(&cfg.Fetch.RateLimit, defaultFetchRate)
	setDefault(&cfg.Fetch.Burst, defaultFetchBurst)
}

// applyDebug forces debug logging. It runs after env overrides so APP_DEBUG counts.
func applyDebug(cfg *Config) {
	if cfg.Debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return &ValidationError{Field: "database.user", Message: "is required"}
	}
	if c.Publish.BatchSize < 1 {
		return &ValidationError{Field: "publish.batch_size", Message: "must be positive"}
	}
	if c.Publish.LeaseWindow <= 0 {
		return &ValidationError{Field: "publish.lease_window", Message: "must be positive"}
	}
	// The executor renews the lease between backend calls, so one call must fit inside it.
	if c.Publish.BackendTimeout >= c.Publish.LeaseWindow {
		return &ValidationError{Field: "publish.backend_timeout", Message: "must be shorter than publish.lease_window"}
	}
	if c.Fetch.MaxAttempts < 1 {
		return &ValidationError{Field: "fetch.max_attempts", Message: "must be at least 1"}
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return &ValidationError{Field: "redis.address", Message: "is required when redis is enabled"}
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return &ValidationError{Field: "scheduler.time_zone", Message: err.Error()}
	}
	return nil
}

// ValidationError names the offending setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
