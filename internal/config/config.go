package config

import (
	"errors"
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName  = "sherlock-center"
	defaultServicePort  = 8000
	defaultVersion      = "1.0.0"
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"

	defaultDBHost    = "localhost"
	defaultDBPort    = 5432
	defaultDBName    = "security_center"
	defaultDBUser    = "postgres"
	defaultDBSSLMode = "disable"

	defaultRedisAddress = "localhost:6379"

	defaultRateLimitRequests = 100
	defaultRateLimitWindowS  = 900

	defaultMaxConcurrentScans = 5
	defaultSherlockTimeoutS   = 30
	defaultProbeWorkers       = 20
	defaultSitesFile          = "sites.json"

	defaultJWTExpiry = 30 * time.Minute
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	JWT       JWTConfig       `yaml:"jwt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Port        int      `env:"SHERLOCK_CENTER_PORT" yaml:"port"`
	Debug       bool     `env:"APP_DEBUG"            yaml:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS"         yaml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_USER"     yaml:"user"`
	Password string `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds Redis connection configuration. Redis backs the per-user
// rate limiter; when Address is empty the service falls back to an in-process
// limiter (single-instance deployments only).
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// RateLimitConfig holds per-user scan admission limits.
type RateLimitConfig struct {
	Requests      int `env:"RATE_LIMIT_REQUESTS" yaml:"rate_limit_requests"`
	WindowSeconds int `env:"RATE_LIMIT_WINDOW"   yaml:"rate_limit_window"`
}

// Window returns the rate limit window as a duration.
func (r *RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// ScannerConfig holds scan orchestration configuration.
type ScannerConfig struct {
	// MaxConcurrentScans caps the number of scans executing at once.
	MaxConcurrentScans int `env:"MAX_CONCURRENT_SCANS" yaml:"max_concurrent_scans"`
	// QueueScans controls behavior at the concurrency cap: wait in FIFO order
	// when true, reject the scan when false.
	QueueScans bool `env:"QUEUE_SCANS" yaml:"queue_scans"`
	// SherlockTimeoutSeconds is the per-site probe timeout passed to the engine.
	SherlockTimeoutSeconds int `env:"SHERLOCK_TIMEOUT" yaml:"sherlock_timeout"`
	// ProbeWorkers bounds the probing engine's fan-out across sites.
	ProbeWorkers int `yaml:"probe_workers"`
	// SitesFile is the path to the site catalog consumed by the probing engine.
	SitesFile string `env:"SHERLOCK_SITES_FILE" yaml:"sites_file"`
}

// SherlockTimeout returns the per-probe timeout as a duration.
func (s *ScannerConfig) SherlockTimeout() time.Duration {
	return time.Duration(s.SherlockTimeoutSeconds) * time.Second
}

// JWTConfig holds token signing configuration.
type JWTConfig struct {
	Secret string        `env:"JWT_SECRET" yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setRateLimitDefaults(&cfg.RateLimit)
	setScannerDefaults(&cfg.Scanner)
	setJWTDefaults(&cfg.JWT)
	setLoggingDefaults(&cfg.Logging)
}

// setServiceDefaults applies default values to ServiceConfig.
func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if len(svc.CORSOrigins) == 0 {
		svc.CORSOrigins = []string{"http://localhost:3000"}
	}
}

// setDatabaseDefaults applies default values to DatabaseConfig.
func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

// setRedisDefaults applies default values to RedisConfig.
func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
}

// setRateLimitDefaults applies default values to RateLimitConfig.
func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.Requests == 0 {
		rl.Requests = defaultRateLimitRequests
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultRateLimitWindowS
	}
}

// setScannerDefaults applies default values to ScannerConfig.
func setScannerDefaults(sc *ScannerConfig) {
	if sc.MaxConcurrentScans == 0 {
		sc.MaxConcurrentScans = defaultMaxConcurrentScans
	}
	if sc.SherlockTimeoutSeconds == 0 {
		sc.SherlockTimeoutSeconds = defaultSherlockTimeoutS
	}
	if sc.ProbeWorkers == 0 {
		sc.ProbeWorkers = defaultProbeWorkers
	}
	if sc.SitesFile == "" {
		sc.SitesFile = defaultSitesFile
	}
}

// setJWTDefaults applies default values to JWTConfig.
func setJWTDefaults(j *JWTConfig) {
	if j.Expiry == 0 {
		j.Expiry = defaultJWTExpiry
	}
}

// setLoggingDefaults applies default values to LoggingConfig.
func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port: %d is not a valid port", c.Service.Port)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.RateLimit.Requests < 1 {
		return fmt.Errorf("rate_limit.rate_limit_requests: must be at least 1, got %d", c.RateLimit.Requests)
	}
	if c.Scanner.MaxConcurrentScans < 1 {
		return fmt.Errorf("scanner.max_concurrent_scans: must be at least 1, got %d", c.Scanner.MaxConcurrentScans)
	}
	return nil
}
