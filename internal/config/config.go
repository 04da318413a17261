package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultBaseURL      = "https://afs.cn-sh-01.sensecoreapi.cn"
	DefaultAccessKeyEnv = "AFS_ACCESS_KEY"
	DefaultSecretKeyEnv = "AFS_SECRET_KEY"

	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8080
	DefaultRequestTimeout = 30
	DefaultLogLevel       = "info"

	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 2
	DefaultTimeout       = 25
	DefaultCacheDuration = 30
)

// Config is the top-level configuration for the exporter. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	AFS        AFSConfig        `yaml:"afs"`
	Server     ServerConfig     `yaml:"server"`
	Collection CollectionConfig `yaml:"collection"`
}

// AFSConfig holds API endpoint, credentials and the volumes to collect.
type AFSConfig struct {
	// AccessKeyEnv is the name of the environment variable that holds the
	// API access key. Credentials never live in the file itself.
	AccessKeyEnv string `yaml:"access_key_env"`

	// SecretKeyEnv is the name of the environment variable that holds the
	// API secret key used for request signing.
	SecretKeyEnv string `yaml:"secret_key_env"`

	// BaseURL is the root of the AFS API.
	BaseURL string `yaml:"base_url"`

	// Volumes lists every volume/zone pair to collect quotas for.
	Volumes []Volume `yaml:"volumes"`
}

// Volume identifies one collected volume.
type Volume struct {
	VolumeID string `yaml:"volume_id"`
	Zone     string `yaml:"zone"`
}

// AccessKey returns the API access key resolved from the environment.
// Returns empty string if the variable is unset.
func (a AFSConfig) AccessKey() string {
	if a.AccessKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.AccessKeyEnv)
}

// SecretKey returns the API secret key resolved from the environment.
func (a AFSConfig) SecretKey() string {
	if a.SecretKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.SecretKeyEnv)
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// RequestTimeout bounds each inbound request, in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Timeout returns the request timeout as a duration.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// Level returns the slog level for the configured log level string.
func (s ServerConfig) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CollectionConfig controls retry behavior, per-volume timeouts and result
// caching. Durations are plain seconds in the file.
type CollectionConfig struct {
	// MaxRetries is the number of attempts per volume fetch.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base backoff between attempts, in seconds.
	RetryDelay int `yaml:"retry_delay"`

	// TimeoutSeconds bounds one volume fetch. Must stay below the server
	// request timeout so a slow upstream cannot stall the scrape.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// CacheDuration is how long a collection result is served from cache,
	// in seconds. Zero disables caching.
	CacheDuration int `yaml:"cache_duration"`
}

// RetryBaseDelay returns the base retry backoff as a duration.
func (c CollectionConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

// Timeout returns the per-volume fetch timeout as a duration.
func (c CollectionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long collected results stay fresh.
func (c CollectionConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheDuration) * time.Second
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		AFS: AFSConfig{
			AccessKeyEnv: DefaultAccessKeyEnv,
			SecretKeyEnv: DefaultSecretKeyEnv,
			BaseURL:      DefaultBaseURL,
		},
		Server: ServerConfig{
			Host:           DefaultHost,
			Port:           DefaultPort,
			RequestTimeout: DefaultRequestTimeout,
			LogLevel:       DefaultLogLevel,
		},
		Collection: CollectionConfig{
			MaxRetries:     DefaultMaxRetries,
			RetryDelay:     DefaultRetryDelay,
			TimeoutSeconds: DefaultTimeout,
			CacheDuration:  DefaultCacheDuration,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.AFS.AccessKeyEnv == "" {
		return fmt.Errorf("afs.access_key_env is required")
	}
	if cfg.AFS.SecretKeyEnv == "" {
		return fmt.Errorf("afs.secret_key_env is required")
	}
	if cfg.AFS.BaseURL == "" {
		return fmt.Errorf("afs.base_url is required")
	}
	if !strings.HasPrefix(cfg.AFS.BaseURL, "http://") && !strings.HasPrefix(cfg.AFS.BaseURL, "https://") {
		return fmt.Errorf("afs.base_url must start with http:// or https://")
	}
	if len(cfg.AFS.Volumes) == 0 {
		return fmt.Errorf("at least one afs volume must be configured")
	}
	for i, vol := range cfg.AFS.Volumes {
		if strings.TrimSpace(vol.VolumeID) == "" {
			return fmt.Errorf("volumes[%d]: volume_id is required", i)
		}
		if strings.TrimSpace(vol.Zone) == "" {
			return fmt.Errorf("volumes[%d] %q: zone is required", i, vol.VolumeID)
		}
	}

	if strings.TrimSpace(cfg.Server.Host) == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("server.log_level %q is not one of debug, info, warn, error", cfg.Server.LogLevel)
	}

	if cfg.Collection.MaxRetries < 0 {
		return fmt.Errorf("collection.max_retries must not be negative")
	}
	if cfg.Collection.RetryDelay <= 0 {
		return fmt.Errorf("collection.retry_delay must be positive")
	}
	if cfg.Collection.TimeoutSeconds <= 0 {
		return fmt.Errorf("collection.timeout_seconds must be positive")
	}
	if cfg.Collection.CacheDuration < 0 {
		return fmt.Errorf("collection.cache_duration must not be negative")
	}
	if cfg.Collection.TimeoutSeconds >= cfg.Server.RequestTimeout {
		return fmt.Errorf("collection.timeout_seconds must be less than server.request_timeout")
	}

	return nil
}

// ValidateCredentials checks that the resolved credentials look usable. It
// runs at startup, after the environment is in place, so an exporter with
// placeholder keys fails fast instead of emitting auth errors forever.
func (cfg *Config) ValidateCredentials() error {
	access := strings.TrimSpace(cfg.AFS.AccessKey())
	secret := strings.TrimSpace(cfg.AFS.SecretKey())

	if access == "" {
		return fmt.Errorf("config: access key env %s is unset or empty", cfg.AFS.AccessKeyEnv)
	}
	if secret == "" {
		return fmt.Errorf("config: secret key env %s is unset or empty", cfg.AFS.SecretKeyEnv)
	}
	if len(access) < 8 {
		return fmt.Errorf("config: access key is too short (minimum 8 characters)")
	}
	if len(secret) < 16 {
		return fmt.Errorf("config: secret key is too short (minimum 16 characters)")
	}
	if isPlaceholder(access) {
		return fmt.Errorf("config: access key looks like a placeholder value")
	}
	if isPlaceholder(secret) {
		return fmt.Errorf("config: secret key looks like a placeholder value")
	}
	return nil
}

func isPlaceholder(key string) bool {
	switch strings.ToLower(key) {
	case "your_access_key", "your_secret_key", "changeme", "placeholder":
		return true
	}
	return false
}
