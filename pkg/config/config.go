package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	API        APIConfig
	Store      StoreConfig
	Redis      RedisConfig
	Network    NetworkConfig
	Chat       ChatConfig
	Resilience ResilienceConfig
	Sentry     SentryConfig
	Tracing    TracingConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	ServiceName string
	Environment string
	LogLevel    string
	LogFile     string
	MetricsAddr string // empty disables the /metrics listener
}

// APIConfig points the client at the support backend
type APIConfig struct {
	BaseURL        string
	WebSocketURL   string
	Token          string
	TimeoutSeconds int
}

// StoreConfig selects the local persistence backend
type StoreConfig struct {
	Driver    string // memory, pebble or redis
	Path      string
	KeyPrefix string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host       string
	Port       string
	Password   string
	DB         int
	TTLSeconds int
}

// NetworkConfig tunes the reachability prober
type NetworkConfig struct {
	ProbeURL        string
	IntervalSeconds int
	TimeoutSeconds  int
}

// ChatConfig holds the session controller timings and offline retry policy
type ChatConfig struct {
	TypingIdleMillis     int
	DraftDebounceMillis  int
	OfflineMaxRetries    int
	OfflineBackoffMillis int
	OfflineBackoffMaxSec int
	ReorderBufferSize    int
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-endpoint breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// SentryConfig holds error reporting settings
type SentryConfig struct {
	DSN        string
	Release    string
	SampleRate float64
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			ServiceName: serviceName,
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFile:     getEnv("LOG_FILE", ""),
			MetricsAddr: getEnv("METRICS_ADDR", ""),
		},
		API: APIConfig{
			BaseURL:        getEnv("SUPPORT_API_URL", "http://localhost:8080/api/v1"),
			WebSocketURL:   getEnv("SUPPORT_WS_URL", "ws://localhost:8086/api/v1/ws"),
			Token:          getEnv("SUPPORT_API_TOKEN", ""),
			TimeoutSeconds: getEnvAsInt("SUPPORT_HTTP_TIMEOUT", 15),
		},
		Store: StoreConfig{
			Driver:    getEnv("STORE_DRIVER", "pebble"),
			Path:      getEnv("STORE_PATH", defaultStorePath()),
			KeyPrefix: getEnv("STORE_KEY_PREFIX", ""),
		},
		Redis: RedisConfig{
			Host:       getEnv("REDIS_HOST", "localhost"),
			Port:       getEnv("REDIS_PORT", "6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			TTLSeconds: getEnvAsInt("REDIS_TTL_SECONDS", 0),
		},
		Network: NetworkConfig{
			ProbeURL:        getEnv("NETMON_URL", ""),
			IntervalSeconds: getEnvAsInt("NETMON_INTERVAL_SECONDS", 5),
			TimeoutSeconds:  getEnvAsInt("NETMON_TIMEOUT_SECONDS", 3),
		},
		Chat: ChatConfig{
			TypingIdleMillis:     getEnvAsInt("TYPING_IDLE_MS", 3000),
			DraftDebounceMillis:  getEnvAsInt("DRAFT_DEBOUNCE_MS", 1000),
			OfflineMaxRetries:    getEnvAsInt("OFFLINE_MAX_RETRIES", 5),
			OfflineBackoffMillis: getEnvAsInt("OFFLINE_BACKOFF_MS", 2000),
			OfflineBackoffMaxSec: getEnvAsInt("OFFLINE_BACKOFF_MAX_SECONDS", 300),
			ReorderBufferSize:    getEnvAsInt("REORDER_BUFFER_SIZE", 64),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Sentry: SentryConfig{
			DSN:        getEnv("SENTRY_DSN", ""),
			Release:    getEnv("SENTRY_RELEASE", ""),
			SampleRate: getEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0),
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 15
	}
	if cfg.Network.IntervalSeconds <= 0 {
		cfg.Network.IntervalSeconds = 5
	}
	if cfg.Chat.TypingIdleMillis <= 0 {
		cfg.Chat.TypingIdleMillis = 3000
	}
	if cfg.Chat.DraftDebounceMillis <= 0 {
		cfg.Chat.DraftDebounceMillis = 1000
	}
	if cfg.Chat.ReorderBufferSize <= 0 {
		cfg.Chat.ReorderBufferSize = 64
	}
	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}
	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}
	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "pebble", "redis":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want memory, pebble or redis", c.Store.Driver)
	}
	if c.Store.Driver == "pebble" && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required for the pebble store")
	}
	if c.Chat.OfflineMaxRetries < 0 {
		return fmt.Errorf("OFFLINE_MAX_RETRIES must not be negative")
	}
	return nil
}

// SettingsFor returns effective breaker settings for a specific upstream name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// TTL returns the key expiry, zero meaning keys never expire
func (c *RedisConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// Timeout returns the HTTP request timeout
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the reachability probe interval
func (c NetworkConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// TypingIdle returns the idle window after which typing stops
func (c ChatConfig) TypingIdle() time.Duration {
	return time.Duration(c.TypingIdleMillis) * time.Millisecond
}

// DraftDebounce returns the delay before a draft is persisted
func (c ChatConfig) DraftDebounce() time.Duration {
	return time.Duration(c.DraftDebounceMillis) * time.Millisecond
}

// OfflineBackoff returns the initial and maximum offline retry delays
func (c ChatConfig) OfflineBackoff() (initial, max time.Duration) {
	initial = time.Duration(c.OfflineBackoffMillis) * time.Millisecond
	max = time.Duration(c.OfflineBackoffMaxSec) * time.Second
	return initial, max
}

func defaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".supportchat"
	}
	return dir + "/supportchat"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
