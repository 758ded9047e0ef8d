// Package config loads and validates the registry configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the PLR_ prefix (e.g., PLR_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Session   SessionConfig   `mapstructure:"session"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	PublicURL    string        `mapstructure:"public_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GetAddress returns the listen address in host:port form
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetPublicURL returns the public-facing URL used for OAuth callbacks and
// redirects. When server.public_url is set it is returned as-is; otherwise it
// falls back to server.base_url. The distinction matters in reverse-proxied
// deployments where the internal listen address differs from the URL registered
// with the OAuth provider.
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	return s.BaseURL
}

// DatabaseConfig holds database connection configuration.
// ReadHost/ReadPort optionally point at a read replica; search and metadata
// reads go to the replica pool so browsing traffic cannot starve publishes.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
	ReadHost           string `mapstructure:"read_host"`
	ReadPort           int    `mapstructure:"read_port"`
}

// GetDSN returns the PostgreSQL connection string for the primary
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// GetReadDSN returns the connection string for the read pool; it falls back to
// the primary when no replica is configured.
func (d *DatabaseConfig) GetReadDSN() string {
	host, port := d.ReadHost, d.ReadPort
	if host == "" {
		host = d.Host
	}
	if port == 0 {
		port = d.Port
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, d.User, d.Password, d.Name, d.SSLMode)
}

// StorageConfig holds artifact storage backend configuration
type StorageConfig struct {
	DefaultBackend string             `mapstructure:"default_backend"`
	S3             S3StorageConfig    `mapstructure:"s3"`
	GCS            GCSStorageConfig   `mapstructure:"gcs"`
	Local          LocalStorageConfig `mapstructure:"local"`
}

// S3StorageConfig holds S3-compatible storage configuration. The registry is
// routinely deployed against Cloudflare R2 and MinIO via a custom endpoint.
type S3StorageConfig struct {
	// Endpoint is the S3-compatible endpoint URL (optional, for R2, MinIO, etc.)
	Endpoint string `mapstructure:"endpoint"`
	// Region is the AWS region ("auto" for R2)
	Region string `mapstructure:"region"`
	// Bucket is the bucket name
	Bucket string `mapstructure:"bucket"`

	// Authentication method: "default" or "static"
	// - "default": AWS default credential chain (env vars, shared config, IAM role)
	// - "static": explicit access key and secret key
	AuthMethod      string `mapstructure:"auth_method"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// GCSStorageConfig holds Google Cloud Storage configuration
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	// Endpoint overrides the GCS API endpoint (emulators)
	Endpoint string `mapstructure:"endpoint"`
	// AuthMethod: "default" (ADC) or "service_account"
	AuthMethod      string `mapstructure:"auth_method"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// GitHubConfig holds GitHub OAuth application credentials
type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// APIBaseURL overrides https://api.github.com (GitHub Enterprise, tests)
	APIBaseURL string `mapstructure:"api_base_url"`
	// AuthURL and TokenURL override the public endpoints (tests)
	AuthURL  string `mapstructure:"auth_url"`
	TokenURL string `mapstructure:"token_url"`
}

// SessionConfig holds server-side session store configuration
type SessionConfig struct {
	// Backend selects the session store: "memory" or "redis"
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	// CookieSecure marks the session cookie Secure (disable for local dev)
	CookieSecure bool        `mapstructure:"cookie_secure"`
	Redis        RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings for the session store
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PublishConfig holds publish pipeline limits
type PublishConfig struct {
	// MaxArchiveSize bounds the uploaded archive in bytes
	MaxArchiveSize int64 `mapstructure:"max_archive_size"`
	// DownloadURLTTL is the lifetime of presigned download URLs
	DownloadURLTTL time.Duration `mapstructure:"download_url_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// Load reads configuration from defaults, an optional YAML file, and the
// environment, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/plugin-registry")
	}

	v.SetEnvPrefix("PLR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside a request.
func (c *Config) Validate() error {
	switch c.Storage.DefaultBackend {
	case "local", "s3", "gcs":
	default:
		return fmt.Errorf("storage.default_backend must be 'local', 's3', or 'gcs', got %q", c.Storage.DefaultBackend)
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.backend must be 'memory' or 'redis', got %q", c.Session.Backend)
	}
	if c.Session.Backend == "redis" && c.Session.Redis.Addr == "" {
		return fmt.Errorf("session.redis.addr is required when session.backend is 'redis'")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Publish.MaxArchiveSize <= 0 {
		return fmt.Errorf("publish.max_archive_size must be positive")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("server.read_timeout", "120s")
	v.SetDefault("server.write_timeout", "120s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "plugin_registry")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Storage
	v.SetDefault("storage.default_backend", "local")
	v.SetDefault("storage.local.base_path", "./data/artifacts")
	v.SetDefault("storage.s3.region", "auto")

	// Session
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.redis.db", 0)

	// Publish
	v.SetDefault("publish.max_archive_size", int64(100*1024*1024))
	v.SetDefault("publish.download_url_ttl", "1m")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
}
