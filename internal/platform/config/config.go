// Package config builds the single Config value the process runs with.
// Everything the bot reads from the environment is resolved here so main and
// the services never touch os.Getenv directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvBotToken           = "BOT_TOKEN"
	EnvClientID           = "CLIENT_ID"
	EnvStorageURI         = "STORAGE_URI"
	EnvCacheURL           = "CACHE_URL"
	EnvAPIBaseURL         = "API_BASE_URL"
	EnvAPIKey             = "API_KEY"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
	EnvHTTPAddr           = "HTTP_ADDR"
	EnvSentryDSN          = "SENTRY_DSN"
	EnvEnvironment        = "ENVIRONMENT"
	EnvAuditKafkaBrokers  = "AUDIT_KAFKA_BROKERS"
	EnvAuditKafkaTopic    = "AUDIT_KAFKA_TOPIC"
	EnvAuditRetentionDays = "AUDIT_RETENTION_DAYS"
	EnvTrustedProxyHeader = "TRUSTED_PROXY_HEADER"
	EnvDevGuildID         = "DEV_GUILD_ID"
	EnvPublicKey          = "PUBLIC_KEY"
)

// ErrMissingEnv is returned when one or more required variables are unset.
var ErrMissingEnv = errors.New("missing required environment")

// Config is the fully resolved process configuration.
type Config struct {
	Discord  DiscordConfig
	Storage  StorageConfig
	Redis    RedisConfig
	API      APIConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Security SecurityConfig
	Audit    AuditConfig
	Sentry   SentryConfig
}

type DiscordConfig struct {
	Token      string
	ClientID   string
	DevGuildID string
	// PublicKey is the hex application key. When set, interactions are also
	// accepted over HTTP at /interactions.
	PublicKey string
}

type StorageConfig struct {
	URI          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the cache transport. An empty URL runs the cache in
// degraded mode.
type RedisConfig struct {
	URL                  string
	PoolSize             int
	MinIdleConns         int
	DialTimeout          time.Duration
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	OperationTimeout     time.Duration
	ReconnectBackoff     time.Duration
	MaxReconnectAttempts int
}

type APIConfig struct {
	BaseURL           string
	Key               string
	Timeout           time.Duration
	HealthTimeout     time.Duration
	RequestsPerSecond float64
	Burst             int
}

type LogConfig struct {
	Level  string
	Format string
}

type HTTPConfig struct {
	Addr string
}

type SecurityConfig struct {
	// TrustedProxyHeader names the front-proxy header carrying the source
	// address. Empty disables the coordinated traffic rule.
	TrustedProxyHeader  string
	AlertQueueHighWater int
	AlertFlushInterval  time.Duration
}

type AuditConfig struct {
	RetentionDays int
	BufferSize    int
	KafkaBrokers  []string
	KafkaTopic    string
}

type SentryConfig struct {
	DSN         string
	Environment string
}

// Default returns a Config with every optional value populated.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			PoolSize:             10,
			MinIdleConns:         2,
			DialTimeout:          5 * time.Second,
			ReadTimeout:          3 * time.Second,
			WriteTimeout:         3 * time.Second,
			OperationTimeout:     2 * time.Second,
			ReconnectBackoff:     time.Second,
			MaxReconnectAttempts: 5,
		},
		API: APIConfig{
			Timeout:           10 * time.Second,
			HealthTimeout:     5 * time.Second,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTPConfig{
			Addr: ":9090",
		},
		Security: SecurityConfig{
			AlertQueueHighWater: 1000,
			AlertFlushInterval:  30 * time.Second,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
			BufferSize:    256,
			KafkaTopic:    "communitybot.audit",
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
	}
}

// FromEnv loads the configuration from the process environment and checks that
// every variable the bot needs to serve traffic is present.
func FromEnv() (*Config, error) {
	cfg, err := Load(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load resolves configuration through lookup without checking required values.
// Administrative commands use it and then call Require for the subset they need.
func Load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	get := func(name string) string {
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}

	cfg.Discord.Token = get(EnvBotToken)
	cfg.Discord.ClientID = get(EnvClientID)
	cfg.Discord.DevGuildID = get(EnvDevGuildID)
	cfg.Discord.PublicKey = get(EnvPublicKey)
	cfg.Storage.URI = get(EnvStorageURI)
	cfg.Redis.URL = get(EnvCacheURL)
	cfg.API.BaseURL = strings.TrimRight(get(EnvAPIBaseURL), "/")
	cfg.API.Key = get(EnvAPIKey)
	cfg.Security.TrustedProxyHeader = get(EnvTrustedProxyHeader)
	cfg.Sentry.DSN = get(EnvSentryDSN)

	if v := get(EnvLogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := get(EnvLogFormat); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := get(EnvHTTPAddr); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := get(EnvEnvironment); v != "" {
		cfg.Sentry.Environment = v
	}
	if v := get(EnvAuditKafkaTopic); v != "" {
		cfg.Audit.KafkaTopic = v
	}
	if v := get(EnvAuditKafkaBrokers); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Audit.KafkaBrokers = append(cfg.Audit.KafkaBrokers, b)
			}
		}
	}
	if v := get(EnvAuditRetentionDays); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a positive integer", EnvAuditRetentionDays, v)
		}
		cfg.Audit.RetentionDays = days
	}

	return cfg, nil
}

// Validate reports every required variable that is missing.
func (c *Config) Validate() error {
	return c.Require(EnvBotToken, EnvClientID, EnvStorageURI, EnvAPIBaseURL, EnvAPIKey)
}

// Require checks the named variables only.
func (c *Config) Require(names ...string) error {
	values := map[string]string{
		EnvBotToken:   c.Discord.Token,
		EnvClientID:   c.Discord.ClientID,
		EnvStorageURI: c.Storage.URI,
		EnvAPIBaseURL: c.API.BaseURL,
		EnvAPIKey:     c.API.Key,
		EnvCacheURL:   c.Redis.URL,
	}
	var missing []string
	for _, name := range names {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return nil
}
