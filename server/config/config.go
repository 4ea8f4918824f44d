package config

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	AgentName           string              // Build-time metadata, not configurable via environment
	AgentDescription    string              // Build-time metadata, not configurable via environment
	AgentVersion        string              // Build-time metadata, not configurable via environment
	AgentURL            string              `env:"AGENT_URL"`
	AgentCardFilePath   string              `env:"AGENT_CARD_FILE_PATH" description:"Path to JSON file containing static agent card definition"`
	Debug               bool                `env:"DEBUG,default=false"`
	Timezone            string              `env:"TIMEZONE,default=UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York, Europe/London)"`
	CapabilitiesConfig  CapabilitiesConfig  `env:",prefix=CAPABILITIES_"`
	AuthConfig          AuthConfig          `env:",prefix=AUTH_"`
	TaskStoreConfig     TaskStoreConfig     `env:",prefix=TASK_STORE_"`
	WebhookConfig       WebhookConfig       `env:",prefix=WEBHOOK_"`
	StreamConfig        StreamConfig        `env:",prefix=STREAM_"`
	TaskRetentionConfig TaskRetentionConfig `env:",prefix=TASK_RETENTION_"`
	ServerConfig        ServerConfig        `env:",prefix=SERVER_"`
	TelemetryConfig     TelemetryConfig     `env:",prefix=TELEMETRY_"`
}

// CapabilitiesConfig defines agent capabilities
type CapabilitiesConfig struct {
	Streaming              bool `env:"STREAMING,default=true" description:"Enable streaming support"`
	PushNotifications      bool `env:"PUSH_NOTIFICATIONS,default=true" description:"Enable push notifications"`
	StateTransitionHistory bool `env:"STATE_TRANSITION_HISTORY,default=true" description:"Enable state transition history"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enable   bool   `env:"ENABLE,default=false"`
	CertPath string `env:"CERT_PATH" description:"TLS certificate path"`
	KeyPath  string `env:"KEY_PATH" description:"TLS key path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enable       bool   `env:"ENABLE,default=false"`
	IssuerURL    string `env:"ISSUER_URL" description:"OIDC issuer URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// TaskStoreConfig selects and configures the task store backend.
type TaskStoreConfig struct {
	Backend        string        `env:"BACKEND,default=memory" description:"Task store backend (memory, redis)"`
	RedisURL       string        `env:"REDIS_URL" description:"Redis connection URL, required when BACKEND=redis"`
	RedisDB        int           `env:"REDIS_DB,default=0"`
	RedisDialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT,default=5s"`
}

// WebhookConfig configures outbound push notification delivery.
type WebhookConfig struct {
	QueueCapacity int           `env:"QUEUE_CAPACITY,default=256" description:"Bounded webhook delivery queue size"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	InitialDelay  time.Duration `env:"INITIAL_DELAY,default=1s"`
	Multiplier    float64       `env:"MULTIPLIER,default=2.0"`
	MaxDelay      time.Duration `env:"MAX_DELAY,default=60s"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS,default=5"`
}

// StreamConfig configures the SSE broadcast buffers.
type StreamConfig struct {
	ReplayBufferSize  int           `env:"REPLAY_BUFFER_SIZE,default=256" description:"Number of past events retained per task for resubscribe replay"`
	SubscriberBuffer  int           `env:"SUBSCRIBER_BUFFER,default=64" description:"Per-subscriber channel buffer before events are dropped"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT,default=300s" description:"Idle timeout for open SSE connections"`
}

// TaskRetentionConfig defines how many completed and failed tasks to retain
type TaskRetentionConfig struct {
	MaxCompletedTasks int           `env:"MAX_COMPLETED_TASKS,default=100" description:"Maximum number of completed tasks to retain (0 = unlimited)"`
	MaxFailedTasks    int           `env:"MAX_FAILED_TASKS,default=50" description:"Maximum number of failed tasks to retain (0 = unlimited)"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL,default=5m" description:"How often to run cleanup (0 = manual cleanup only)"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                  string        `env:"PORT,default=8080" description:"HTTP server port"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=120s" description:"HTTP server read timeout"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=120s" description:"HTTP server write timeout"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=120s" description:"HTTP server idle timeout"`
	DisableHealthcheckLog bool          `env:"DISABLE_HEALTHCHECK_LOG,default=true" description:"Disable logging for health check requests"`
	TLSConfig             TLSConfig     `env:",prefix=TLS_"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Port         string        `env:"PORT,default=9090" description:"Metrics server port"`
	Host         string        `env:"HOST,default=" description:"Metrics server host (empty for all interfaces)"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s" description:"Metrics server read timeout"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s" description:"Metrics server write timeout"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=60s" description:"Metrics server idle timeout"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enable        bool          `env:"ENABLE,default=false" description:"Enable telemetry collection"`
	MetricsConfig MetricsConfig `env:",prefix=METRICS_"`
}

// Load loads configuration from environment variables, merging with the provided base config.
func Load(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, envconfig.OsLookuper())
}

// LoadWithLookuper creates and loads configuration using a custom lookuper and merges with user config
func LoadWithLookuper(ctx context.Context, baseConfig *Config, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if baseConfig != nil {
		cfg = *baseConfig
	}

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewWithDefaults creates a new config with defaults applied from struct tags.
func NewWithDefaults(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, &emptyLookuper{})
}

// emptyLookuper ensures that only default values from struct tags are used
type emptyLookuper struct{}

func (e *emptyLookuper) Lookup(key string) (string, bool) {
	return "", false
}

// Validate validates the configuration and applies corrections for invalid values
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}

	if c.TaskStoreConfig.Backend == "redis" && c.TaskStoreConfig.RedisURL == "" {
		return fmt.Errorf("task store backend 'redis' requires TASK_STORE_REDIS_URL")
	}

	if c.WebhookConfig.MaxAttempts < 1 {
		c.WebhookConfig.MaxAttempts = 1
	}

	return nil
}

// GetTimezone returns the timezone location for timestamps
func (c *Config) GetTimezone() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// GetCurrentTime returns the current time in the configured timezone
func (c *Config) GetCurrentTime() (time.Time, error) {
	loc, err := c.GetTimezone()
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().In(loc), nil
}

// ExtendableConfig provides a pattern for clients to extend A2A server configuration
// with their custom configuration structs.
//
// Example:
//   type MyConfig struct {
//     config.Config         // Embed the base A2A config
//     MyCustomField string `env:"MY_CUSTOM_FIELD"`
//   }
//
//   cfg, err := config.LoadExtended(ctx, &MyConfig{})
type ExtendableConfig interface {
	// GetBaseConfig returns the embedded base configuration
	GetBaseConfig() *Config
	// Validate allows custom validation of the extended configuration
	Validate() error
}

// Configurable interface for structs that embed Config
type Configurable interface {
	GetConfig() *Config
}

// LoadExtended loads configuration with support for extended/custom configuration structs.
// This function allows clients to define their own configuration structs that embed
// the base Config struct and add additional fields.
//
// The target must be a pointer to a struct that embeds Config either directly or
// provides a way to access it via GetBaseConfig() or GetConfig() methods.
//
// Example usage:
//   type MyAppConfig struct {
//     config.Config
//     DatabaseURL string `env:"DATABASE_URL"`
//     RedisURL    string `env:"REDIS_URL"`
//   }
//
//   cfg, err := config.LoadExtended(ctx, &MyAppConfig{})
func LoadExtended(ctx context.Context, target any) error {
	return LoadExtendedWithLookuper(ctx, target, envconfig.OsLookuper())
}

// LoadExtendedWithLookuper loads configuration with custom lookuper and support for extended configuration structs
func LoadExtendedWithLookuper(ctx context.Context, target any, lookuper envconfig.Lookuper) error {
	if target == nil {
		return fmt.Errorf("target cannot be nil")
	}

	// Process the extended configuration struct with environment variables
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   target,
		Lookuper: lookuper,
	})
	if err != nil {
		return fmt.Errorf("failed to process environment configuration: %w", err)
	}

	// Find and validate the base Config
	baseConfig, err := ExtractBaseConfig(target)
	if err != nil {
		return fmt.Errorf("failed to extract base config: %w", err)
	}

	if err := baseConfig.Validate(); err != nil {
		return fmt.Errorf("base config validation failed: %w", err)
	}

	// Validate extended configuration if it implements the interface
	if validator, ok := target.(ExtendableConfig); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("extended config validation failed: %w", err)
		}
	}

	return nil
}

// LoadExtendedWithDefaults creates extended configuration with defaults applied from struct tags
func LoadExtendedWithDefaults(ctx context.Context, target any) error {
	return LoadExtendedWithLookuper(ctx, target, &emptyLookuper{})
}

// MergeConfigs merges a base Config with an extended configuration struct.
// This is useful for combining programmatic configuration with environment-based configuration.
func MergeConfigs(ctx context.Context, base *Config, target any) error {
	if base == nil {
		return LoadExtended(ctx, target)
	}

	// First, set the base config in the target
	if err := setBaseConfig(target, base); err != nil {
		return fmt.Errorf("failed to set base config: %w", err)
	}

	return nil
}

// MergeConfigsWithEnvironment merges a base Config with an extended configuration struct and applies environment variables.
// This is useful for combining programmatic configuration with environment-based configuration.
//
// Note: Due to the behavior of the underlying envconfig library, environment variables will only override 
// fields that are zero-valued in the base config. Non-zero values in the base config will not be overridden
// by environment variables. For most use cases, use LoadExtended directly instead of this function.
func MergeConfigsWithEnvironment(ctx context.Context, base *Config, target any) error {
	if base == nil {
		return LoadExtended(ctx, target)
	}

	// First, set the base config in the target
	if err := setBaseConfig(target, base); err != nil {
		return fmt.Errorf("failed to set base config: %w", err)
	}

	// Then load environment variables on top
	// Note: Environment variables will only override zero-valued fields
	return LoadExtended(ctx, target)
}

// ExtractBaseConfig extracts the base Config from various target types
func ExtractBaseConfig(target any) (*Config, error) {
	if target == nil {
		return nil, fmt.Errorf("target is nil")
	}

	val := reflect.ValueOf(target)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("target must be a struct or pointer to struct")
	}

	// Method 1: Check if it implements ExtendableConfig
	if extendable, ok := target.(ExtendableConfig); ok {
		return extendable.GetBaseConfig(), nil
	}

	// Method 2: Check if it implements Configurable
	if configurable, ok := target.(Configurable); ok {
		return configurable.GetConfig(), nil
	}

	// Method 3: Look for embedded Config field
	configField := val.FieldByName("Config")
	if configField.IsValid() && configField.Type() == reflect.TypeOf(Config{}) {
		return configField.Addr().Interface().(*Config), nil
	}

	// Method 4: Look for any field of type Config
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		
		if field.Type() == reflect.TypeOf(Config{}) {
			return field.Addr().Interface().(*Config), nil
		}

		// Check for pointer to Config
		if field.Type() == reflect.TypeOf((*Config)(nil)) && !field.IsNil() {
			return field.Interface().(*Config), nil
		}

		// Check embedded structs recursively
		if fieldType.Anonymous && field.Kind() == reflect.Struct {
			if config, err := ExtractBaseConfig(field.Addr().Interface()); err == nil {
				return config, nil
			}
		}
	}

	return nil, fmt.Errorf("no Config field found in target struct")
}

// setBaseConfig sets the base Config in the target struct
func setBaseConfig(target any, base *Config) error {
	if target == nil || base == nil {
		return fmt.Errorf("target and base cannot be nil")
	}

	val := reflect.ValueOf(target)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("target must be a struct or pointer to struct")
	}

	// Look for Config field and set it
	configField := val.FieldByName("Config")
	if configField.IsValid() && configField.CanSet() && configField.Type() == reflect.TypeOf(Config{}) {
		configField.Set(reflect.ValueOf(*base))
		return nil
	}

	// Look for any field of type Config
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		
		if field.Type() == reflect.TypeOf(Config{}) && field.CanSet() {
			field.Set(reflect.ValueOf(*base))
			return nil
		}

		// Check for pointer to Config
		if field.Type() == reflect.TypeOf((*Config)(nil)) && field.CanSet() {
			field.Set(reflect.ValueOf(base))
			return nil
		}
	}

	return fmt.Errorf("no settable Config field found in target struct")
}
