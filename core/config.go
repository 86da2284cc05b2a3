package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the reactorpipe runtime.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// The configuration automatically detects the execution environment (Kubernetes vs local)
// and adjusts defaults accordingly.
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithName("order-pipeline"),
//	    WithPort(8080),
//	    WithCacheRedisURL("redis://localhost:6379"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Core configuration
	Name      string `json:"name" yaml:"name" env:"PIPELINE_NAME"`
	ID        string `json:"id" yaml:"id" env:"PIPELINE_ID"`
	Port      int    `json:"port" yaml:"port" env:"PIPELINE_PORT" default:"8080"`
	Address   string `json:"address" yaml:"address" env:"PIPELINE_ADDRESS"`
	Namespace string `json:"namespace" yaml:"namespace" env:"PIPELINE_NAMESPACE" default:"default"`

	// HTTP Server configuration, used by the readiness probe endpoint
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Cache configuration for the Cache Policy Engine's backend
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Persistence configuration for side-effect steps with a Persistence Provider
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Resilience configuration
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`

	// Parallelism configuration for the Parallelism Policy
	Parallelism ParallelismConfig `json:"parallelism" yaml:"parallelism"`

	// Health configuration for startup dependency polling
	Health HealthConfig `json:"health" yaml:"health"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Development configuration
	Development DevelopmentConfig `json:"development" yaml:"development"`

	// Kubernetes specific configuration
	Kubernetes KubernetesConfig `json:"kubernetes" yaml:"kubernetes"`

	// Logger instance for configuration operations (excluded from JSON)
	logger Logger `json:"-"`
}

// HTTPConfig contains HTTP server configuration including timeouts, limits, and CORS settings.
// All timeout values use time.Duration for flexibility.
type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"PIPELINE_HTTP_READ_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"PIPELINE_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"PIPELINE_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"PIPELINE_HTTP_IDLE_TIMEOUT" default:"120s"`
	MaxHeaderBytes    int           `json:"max_header_bytes" yaml:"max_header_bytes" env:"PIPELINE_HTTP_MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"PIPELINE_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	EnableHealthCheck bool          `json:"enable_health_check" yaml:"enable_health_check" env:"PIPELINE_HTTP_HEALTH_CHECK" default:"true"`
	HealthCheckPath   string        `json:"health_check_path" yaml:"health_check_path" env:"PIPELINE_HTTP_HEALTH_PATH" default:"/readyz"`
	CORS              CORSConfig    `json:"cors" yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing (CORS) configuration.
// Supports wildcard domains (e.g., *.example.com) and wildcard ports (e.g., http://localhost:*).
//
// Security note: Be cautious with AllowCredentials=true and ensure AllowedOrigins
// is properly restricted in production environments.
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" env:"PIPELINE_CORS_ENABLED" default:"false"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" env:"PIPELINE_CORS_ORIGINS"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" env:"PIPELINE_CORS_METHODS" default:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" env:"PIPELINE_CORS_HEADERS" default:"Content-Type,Authorization"`
	ExposedHeaders   []string `json:"exposed_headers" yaml:"exposed_headers" env:"PIPELINE_CORS_EXPOSED_HEADERS"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" env:"PIPELINE_CORS_CREDENTIALS" default:"false"`
	MaxAge           int      `json:"max_age" yaml:"max_age" env:"PIPELINE_CORS_MAX_AGE" default:"86400"`
}

// CacheConfig contains Cache Policy Engine backend configuration (§4.4).
// Currently supports Redis as the cache backend.
type CacheConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" env:"PIPELINE_CACHE_ENABLED" default:"false"`
	Provider string        `json:"provider" yaml:"provider" env:"PIPELINE_CACHE_PROVIDER" default:"redis"`
	RedisURL string        `json:"redis_url" yaml:"redis_url" env:"PIPELINE_CACHE_REDIS_URL,REDIS_URL"`
	Prefix   string        `json:"prefix" yaml:"prefix" env:"PIPELINE_CACHE_PREFIX" default:"reactorpipe:cache:"`
	TTL      time.Duration `json:"ttl" yaml:"ttl" env:"PIPELINE_CACHE_TTL" default:"15m"`
}

// PersistenceConfig contains Persistence Provider configuration (§6.3) used by
// side-effect steps that record results outside the pipeline.
type PersistenceConfig struct {
	Enabled           bool   `json:"enabled" yaml:"enabled" env:"PIPELINE_PERSISTENCE_ENABLED" default:"false"`
	Provider          string `json:"provider" yaml:"provider" env:"PIPELINE_PERSISTENCE_PROVIDER" default:"redis"`
	RedisURL          string `json:"redis_url" yaml:"redis_url" env:"PIPELINE_PERSISTENCE_REDIS_URL,REDIS_URL"`
	DuplicateKeyPolicy string `json:"duplicate_key_policy" yaml:"duplicate_key_policy" env:"PIPELINE_PERSISTENCE_DUPLICATE_KEY_POLICY" default:"fail"`
}

// TelemetryConfig contains observability configuration for metrics and distributed tracing.
// This is an optional module - telemetry is only initialized when Enabled=true.
// Supports OpenTelemetry (OTEL) protocol. The endpoint should be the OTLP receiver address.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" env:"PIPELINE_TELEMETRY_ENABLED" default:"false"`
	Provider       string  `json:"provider" yaml:"provider" env:"PIPELINE_TELEMETRY_PROVIDER" default:"otel"`
	Endpoint       string  `json:"endpoint" yaml:"endpoint" env:"PIPELINE_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string  `json:"service_name" yaml:"service_name" env:"PIPELINE_TELEMETRY_SERVICE_NAME,OTEL_SERVICE_NAME"`
	MetricsEnabled bool    `json:"metrics_enabled" yaml:"metrics_enabled" env:"PIPELINE_TELEMETRY_METRICS" default:"true"`
	TracingEnabled bool    `json:"tracing_enabled" yaml:"tracing_enabled" env:"PIPELINE_TELEMETRY_TRACING" default:"true"`
	SamplingRate   float64 `json:"sampling_rate" yaml:"sampling_rate" env:"PIPELINE_TELEMETRY_SAMPLING_RATE" default:"1.0"`
	Insecure       bool    `json:"insecure" yaml:"insecure" env:"PIPELINE_TELEMETRY_INSECURE" default:"true"`
}

// ResilienceConfig contains fault tolerance and resilience patterns configuration.
// These patterns help protect the system from cascading failures and improve reliability.
type ResilienceConfig struct {
	Retry   RetryConfig   `json:"retry" yaml:"retry"`
	Timeout TimeoutConfig `json:"timeout" yaml:"timeout"`
}

// RetryConfig defines the step retry protocol (§4.2, §4.3).
// Formula: wait = min(maxBackoff, retryWait * 2^(attempt-1)), jittered by [0.5, 1.0].
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" yaml:"max_attempts" env:"PIPELINE_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryWait     time.Duration `json:"retry_wait" yaml:"retry_wait" env:"PIPELINE_RETRY_WAIT" default:"100ms"`
	MaxBackoff    time.Duration `json:"max_backoff" yaml:"max_backoff" env:"PIPELINE_RETRY_MAX_BACKOFF" default:"5s"`
	JitterEnabled bool          `json:"jitter_enabled" yaml:"jitter_enabled" env:"PIPELINE_RETRY_JITTER" default:"true"`
}

// TimeoutConfig defines timeout settings for various operations.
// These timeouts prevent operations from hanging indefinitely.
type TimeoutConfig struct {
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout" env:"PIPELINE_TIMEOUT_DEFAULT" default:"30s"`
	MaxTimeout     time.Duration `json:"max_timeout" yaml:"max_timeout" env:"PIPELINE_TIMEOUT_MAX" default:"5m"`
}

// ParallelismConfig controls the default Parallelism Policy (§4.6) applied when
// a step does not declare its own policy.
type ParallelismConfig struct {
	DefaultMode    string `json:"default_mode" yaml:"default_mode" env:"PIPELINE_PARALLELISM_MODE" default:"auto"`
	MaxConcurrency int    `json:"max_concurrency" yaml:"max_concurrency" env:"PIPELINE_MAX_CONCURRENCY" default:"128"`
}

// HealthConfig controls startup dependency health polling (§5.4) and the
// readiness probe fed by it.
type HealthConfig struct {
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" env:"PIPELINE_HEALTH_POLL_INTERVAL" default:"2s"`
	PollTimeout  time.Duration `json:"poll_timeout" yaml:"poll_timeout" env:"PIPELINE_HEALTH_POLL_TIMEOUT" default:"5m"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
// In Kubernetes environments, JSON format is recommended for log aggregation.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"PIPELINE_LOG_LEVEL" default:"info"`
	Format     string `json:"format" yaml:"format" env:"PIPELINE_LOG_FORMAT" default:"json"`
	Output     string `json:"output" yaml:"output" env:"PIPELINE_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" yaml:"time_format" env:"PIPELINE_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.000Z07:00"`
}

// DevelopmentConfig contains settings for local development and testing.
// When Enabled=true, the framework uses development-friendly defaults:
// human-readable logs and debug logging.
//
// WARNING: Never enable development mode in production!
type DevelopmentConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled" env:"PIPELINE_DEV_MODE" default:"false"`
	MockCache     bool `json:"mock_cache" yaml:"mock_cache" env:"PIPELINE_MOCK_CACHE" default:"false"`
	DebugLogging  bool `json:"debug_logging" yaml:"debug_logging" env:"PIPELINE_DEBUG" default:"false"`
	PrettyLogs    bool `json:"pretty_logs" yaml:"pretty_logs" env:"PIPELINE_PRETTY_LOGS" default:"false"`
}

// KubernetesConfig contains Kubernetes-specific settings.
// The framework automatically detects Kubernetes environments by checking
// for the KUBERNETES_SERVICE_HOST environment variable.
// When running in Kubernetes, the framework adjusts defaults for
// containerized environments (e.g., binding to 0.0.0.0, JSON logging).
type KubernetesConfig struct {
	Enabled            bool   `json:"enabled" yaml:"enabled" env:"KUBERNETES_SERVICE_HOST"`
	ServiceName        string `json:"service_name" yaml:"service_name" env:"PIPELINE_K8S_SERVICE_NAME"`
	ServicePort        int    `json:"service_port" yaml:"service_port" env:"PIPELINE_K8S_SERVICE_PORT" default:"80"`
	PodName            string `json:"pod_name" yaml:"pod_name" env:"HOSTNAME"`
	PodNamespace       string `json:"pod_namespace" yaml:"pod_namespace" env:"PIPELINE_K8S_NAMESPACE"`
	PodIP              string `json:"pod_ip" yaml:"pod_ip" env:"PIPELINE_K8S_POD_IP"`
	NodeName           string `json:"node_name" yaml:"node_name" env:"PIPELINE_K8S_NODE_NAME"`
	ServiceAccountPath string `json:"service_account_path" yaml:"service_account_path" env:"PIPELINE_K8S_SA_PATH" default:"/var/run/secrets/kubernetes.io/serviceaccount"`
}

// Option is a functional option for configuring the runtime.
// Options are applied in order and can return an error if the configuration is invalid.
//
// Example:
//
//	func WithCustomTimeout(timeout time.Duration) Option {
//	    return func(c *Config) error {
//	        if timeout <= 0 {
//	            return fmt.Errorf("timeout must be positive")
//	        }
//	        c.HTTP.ReadTimeout = timeout
//	        return nil
//	    }
//	}
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
// The defaults are adjusted based on the detected environment:
//   - Kubernetes: 0.0.0.0 binding, JSON logging
//   - Local: localhost binding, text logging, development mode
//
// These defaults can be overridden using functional options or environment variables.
func DefaultConfig() *Config {
	cfg := &Config{
		Name:      "reactorpipe",
		Port:      8080,
		Address:   "", // Will be set based on environment detection
		Namespace: "default",
		HTTP: HTTPConfig{
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
			ShutdownTimeout:   10 * time.Second,
			EnableHealthCheck: true,
			HealthCheckPath:   "/readyz",
			CORS: CORSConfig{
				Enabled:          false,
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: false,
				MaxAge:           86400,
			},
		},
		Cache: CacheConfig{
			Enabled:  false,
			Provider: "redis",
			Prefix:   DefaultCachePrefix,
			TTL:      DefaultCacheTTL,
		},
		Persistence: PersistenceConfig{
			Enabled:            false,
			Provider:           "redis",
			DuplicateKeyPolicy: "fail",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Provider:       "otel",
			MetricsEnabled: true,
			TracingEnabled: true,
			SamplingRate:   1.0,
			Insecure:       true,
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts:   3,
				RetryWait:     100 * time.Millisecond,
				MaxBackoff:    5 * time.Second,
				JitterEnabled: true,
			},
			Timeout: TimeoutConfig{
				DefaultTimeout: 30 * time.Second,
				MaxTimeout:     5 * time.Minute,
			},
		},
		Parallelism: ParallelismConfig{
			DefaultMode:    "auto",
			MaxConcurrency: DefaultMaxConcurrency,
		},
		Health: HealthConfig{
			PollInterval: DefaultHealthPollInterval,
			PollTimeout:  DefaultHealthPollTimeout,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
		Development: DevelopmentConfig{
			Enabled:      false,
			MockCache:    false,
			DebugLogging: false,
			PrettyLogs:   false,
		},
		Kubernetes: KubernetesConfig{
			ServicePort:        80,
			ServiceAccountPath: "/var/run/secrets/kubernetes.io/serviceaccount",
		},
	}

	// Detect environment and adjust defaults
	cfg.DetectEnvironment()

	return cfg
}

// DetectEnvironment automatically adjusts configuration based on the detected environment.
// This method is called automatically by DefaultConfig() and should not be called directly
// unless you're implementing custom environment detection logic.
//
// Detection criteria:
//   - Kubernetes: KUBERNETES_SERVICE_HOST environment variable is set
//   - Local: No Kubernetes environment variables detected
func (c *Config) DetectEnvironment() {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		// Kubernetes environment detected
		c.Kubernetes.Enabled = true
		c.Address = "0.0.0.0" // Bind to all interfaces in K8s
		c.Cache.RedisURL = "redis://redis.default.svc.cluster.local:6379"
		c.Logging.Format = "json" // Structured logs for K8s
	} else {
		// Local development environment
		c.Address = "localhost"
		c.Cache.RedisURL = "redis://localhost:6379"

		// Enable development mode for local
		if os.Getenv("PIPELINE_DEV_MODE") == "" {
			c.Development.Enabled = true
			c.Development.PrettyLogs = true
			c.Logging.Format = "text" // Human-readable logs
		}
	}
}

// LoadFromEnv loads configuration from environment variables and validates the result.
// Environment variables take precedence over defaults but are overridden by functional options.
//
// Variable naming convention:
//   - Framework-specific: PIPELINE_<SETTING>
//   - Standard variables: REDIS_URL, OTEL_EXPORTER_OTLP_ENDPOINT
//
// Returns an error if environment variables contain invalid values or if validation fails.
func (c *Config) LoadFromEnv() error {
	if c.logger != nil {
		c.logger.Info("Loading configuration from environment", map[string]interface{}{
			"config_source": "environment_variables",
		})
	}

	// Core settings
	if v := os.Getenv("PIPELINE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("PIPELINE_ID"); v != "" {
		c.ID = v
	}
	if v := os.Getenv("PIPELINE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		} else if c.logger != nil {
			c.logger.Warn("Invalid port in environment variable", map[string]interface{}{
				"PIPELINE_PORT": v,
				"error":         err.Error(),
			})
		}
	}
	if v := os.Getenv("PIPELINE_ADDRESS"); v != "" {
		c.Address = v
	}
	if v := os.Getenv("PIPELINE_NAMESPACE"); v != "" {
		c.Namespace = v
	}

	// HTTP settings
	if v := os.Getenv("PIPELINE_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("PIPELINE_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.WriteTimeout = d
		}
	}

	// CORS settings
	if v := os.Getenv("PIPELINE_CORS_ENABLED"); v != "" {
		c.HTTP.CORS.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIPELINE_CORS_ORIGINS"); v != "" {
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}

	// Cache settings
	if v := os.Getenv("PIPELINE_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIPELINE_CACHE_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
		c.Cache.Enabled = true
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
		c.Persistence.RedisURL = v
	}
	if v := os.Getenv("PIPELINE_CACHE_PREFIX"); v != "" {
		c.Cache.Prefix = v
	}
	if v := os.Getenv("PIPELINE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}

	// Persistence settings
	if v := os.Getenv("PIPELINE_PERSISTENCE_ENABLED"); v != "" {
		c.Persistence.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIPELINE_PERSISTENCE_DUPLICATE_KEY_POLICY"); v != "" {
		c.Persistence.DuplicateKeyPolicy = v
	}

	// Telemetry settings
	if v := os.Getenv("PIPELINE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIPELINE_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("PIPELINE_TELEMETRY_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Name
	}

	// Resilience settings
	if v := os.Getenv("PIPELINE_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("PIPELINE_RETRY_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Resilience.Retry.RetryWait = d
		}
	}
	if v := os.Getenv("PIPELINE_RETRY_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Resilience.Retry.MaxBackoff = d
		}
	}
	// Parallelism settings
	if v := os.Getenv("PIPELINE_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Parallelism.MaxConcurrency = n
		}
	}

	// Logging settings
	if v := os.Getenv("PIPELINE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PIPELINE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	// Development settings
	if v := os.Getenv("PIPELINE_DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Level = "debug"
			c.Logging.Format = "text"
		}
	}
	if v := os.Getenv("PIPELINE_MOCK_CACHE"); v != "" {
		c.Development.MockCache = parseBool(v)
	}
	if v := os.Getenv("PIPELINE_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
		if c.Development.DebugLogging {
			c.Logging.Level = "debug"
		}
	}

	// Kubernetes settings (auto-detect)
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		c.Kubernetes.Enabled = true
		if v := os.Getenv("HOSTNAME"); v != "" {
			c.Kubernetes.PodName = v
		}
		if v := os.Getenv("PIPELINE_K8S_NAMESPACE"); v != "" {
			c.Kubernetes.PodNamespace = v
		}
		if c.Kubernetes.PodNamespace == "" {
			if data, err := os.ReadFile(c.Kubernetes.ServiceAccountPath + "/namespace"); err == nil {
				c.Kubernetes.PodNamespace = strings.TrimSpace(string(data))
			}
		}
		if v := os.Getenv("PIPELINE_K8S_SERVICE_NAME"); v != "" {
			c.Kubernetes.ServiceName = v
		}
		if v := os.Getenv("PIPELINE_K8S_SERVICE_PORT"); v != "" {
			if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
				c.Kubernetes.ServicePort = port
			}
		}
		if v := os.Getenv("PIPELINE_K8S_POD_IP"); v != "" {
			c.Kubernetes.PodIP = v
		}
		if v := os.Getenv("PIPELINE_K8S_NODE_NAME"); v != "" {
			c.Kubernetes.NodeName = v
		}
	}

	if err := c.Validate(); err != nil {
		if c.logger != nil {
			c.logger.Error("Configuration validation failed", map[string]interface{}{
				"error":         err.Error(),
				"config_source": "environment_variables",
			})
		}
		return err
	}

	if c.logger != nil {
		c.logger.Info("Configuration loading completed", map[string]interface{}{
			"cache_enabled":     c.Cache.Enabled,
			"logging_level":     c.Logging.Level,
			"namespace":         c.Namespace,
			"development_mode":  c.Development.Enabled,
		})
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file, selected by
// its extension (.json, .yaml, .yml).
// File settings override environment variables but are overridden by functional options.
func (c *Config) LoadFromFile(path string) error {
	if c.logger != nil {
		c.logger.Info("Loading configuration from file", map[string]interface{}{
			"file_path": path,
		})
	}

	// Clean the path to prevent directory traversal attacks
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		if c.logger != nil {
			c.logger.Error("Unsupported config file extension", map[string]interface{}{
				"file_path": path,
				"extension": ext,
			})
		}
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // nosec G304 -- path is validated
	if err != nil {
		if c.logger != nil {
			c.logger.Error("Failed to read config file", map[string]interface{}{
				"error":     err.Error(),
				"file_path": cleanPath,
			})
		}
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
// This method is called automatically by NewConfig() but can also be called
// manually after modifying configuration.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid port: %d", c.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Name == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "pipeline name is required",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Cache.Enabled && c.Cache.Provider == "redis" && c.Cache.RedisURL == "" && !c.Development.MockCache {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "redis URL is required for the redis cache provider (or use mock cache in development)",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "telemetry endpoint is required when telemetry is enabled",
			Err:     ErrMissingConfiguration,
		}
	}

	switch c.Persistence.DuplicateKeyPolicy {
	case "fail", "ignore", "upsert":
	default:
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid duplicate key policy: %s", c.Persistence.DuplicateKeyPolicy),
			Err:     ErrInvalidConfiguration,
		}
	}

	return nil
}

// Helper functions

// parseStringList splits a comma-separated string into a slice of strings.
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithName sets the pipeline name used for identification in logging and telemetry.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP server port for the readiness probe. Must be between 1 and 65535.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &FrameworkError{
				Op:      "WithPort",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Port = port
		return nil
	}
}

// WithAddress sets the bind address for the HTTP server.
func WithAddress(address string) Option {
	return func(c *Config) error {
		c.Address = address
		return nil
	}
}

// WithNamespace sets the logical namespace used to scope shared cache keys.
func WithNamespace(namespace string) Option {
	return func(c *Config) error {
		c.Namespace = namespace
		return nil
	}
}

// WithCORS enables CORS with specific allowed origins.
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = origins
		c.HTTP.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithCacheRedisURL configures the Redis cache backend URL and enables caching.
func WithCacheRedisURL(url string) Option {
	return func(c *Config) error {
		c.Cache.RedisURL = url
		c.Cache.Enabled = true
		return nil
	}
}

// WithCachePrefix overrides the default cache key prefix.
func WithCachePrefix(prefix string) Option {
	return func(c *Config) error {
		c.Cache.Prefix = prefix
		return nil
	}
}

// WithCacheTTL overrides the default cache entry TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		c.Cache.TTL = ttl
		return nil
	}
}

// WithPersistenceRedisURL configures the Redis-backed Persistence Provider.
func WithPersistenceRedisURL(url string) Option {
	return func(c *Config) error {
		c.Persistence.RedisURL = url
		c.Persistence.Enabled = true
		return nil
	}
}

// WithDuplicateKeyPolicy sets the Persistence Provider's duplicate-key policy:
// "fail", "ignore", or "upsert".
func WithDuplicateKeyPolicy(policy string) Option {
	return func(c *Config) error {
		c.Persistence.DuplicateKeyPolicy = policy
		return nil
	}
}

// WithTelemetry enables telemetry with the specified OTLP endpoint.
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		if c.Telemetry.ServiceName == "" {
			c.Telemetry.ServiceName = c.Name
		}
		return nil
	}
}

// WithLogLevel sets the minimum logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging output format: "json" or "text".
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithRetry configures the default step retry policy: maximum attempts and base wait.
func WithRetry(maxAttempts int, retryWait time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.Retry.MaxAttempts = maxAttempts
		c.Resilience.Retry.RetryWait = retryWait
		return nil
	}
}

// WithMaxConcurrency overrides the Parallelism Policy's concurrency ceiling for merged stages.
func WithMaxConcurrency(max int) Option {
	return func(c *Config) error {
		c.Parallelism.MaxConcurrency = max
		return nil
	}
}

// WithHealthPolling overrides the startup dependency health poll interval and timeout.
func WithHealthPolling(interval, timeout time.Duration) Option {
	return func(c *Config) error {
		c.Health.PollInterval = interval
		c.Health.PollTimeout = timeout
		return nil
	}
}

// WithConfigFile loads configuration from a JSON or YAML file (chosen by extension) at its position among the options.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode enables development mode with developer-friendly defaults.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// WithMockCache enables an in-memory cache backend for testing without Redis.
func WithMockCache(enabled bool) Option {
	return func(c *Config) error {
		c.Development.MockCache = enabled
		if enabled {
			c.Cache.Enabled = true
		}
		return nil
	}
}

// WithLogger sets a logger for configuration operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// Logger returns the configured logger, or a NoOpLogger if none was set.
func (c *Config) Logger() Logger {
	if c.logger == nil {
		return &NoOpLogger{}
	}
	return c.logger
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. Functional options (highest priority)
//  4. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)

		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}

		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ============================================================================
// ProductionLogger Implementation - Layered Observability Architecture
// ============================================================================

// ProductionLogger provides layered observability for runtime operations
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer

	// Metrics layer (enabled when telemetry available)
	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		format:         logging.Format,
		output:         output,
		metricsEnabled: false, // Enabled by telemetry module when available
	}
}

// EnableMetrics is called by telemetry module to enable metrics layer
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

// Core logging implementation with all three layers
func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		// Structured logging for production log aggregation
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": "reactorpipe",
			"message":   msg,
		}

		// LAYER 3: Add trace context when available
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		// Human-readable for local development
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["version_tag"] != "" {
				traceInfo = fmt.Sprintf("[version=%s] ", baggage["version_tag"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s%s\n",
			timestamp, level, p.serviceName, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, msg, fields, ctx)
	}
}

// Metrics emission with cardinality protection
func (p *ProductionLogger) emitFrameworkMetric(level, msg string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
		"component", "reactorpipe",
	}

	// Add only low-cardinality fields as labels
	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "step", "shape":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "reactorpipe.framework.operations", 1.0, labels...)
	} else {
		emitMetric("reactorpipe.framework.operations", 1.0, labels...)
	}
}

// Helper functions for weak coupling to telemetry
func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
