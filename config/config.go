// Package config handles loading and validation of the planner configuration
// from environment variables and an optional .env file.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Realtime backends supported by the planner.
const (
	RealtimeRedis  = "redis"
	RealtimeMemory = "memory"
)

// ServerConfig holds the HTTP surface configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
}

// DatabaseConfig holds PostgreSQL connection details for the user store.
// An empty Host selects the in-memory user store.
type DatabaseConfig struct {
	Host           string `mapstructure:"HOST" yaml:"host"`
	Port           int    `mapstructure:"PORT" yaml:"port"`
	User           string `mapstructure:"USER" yaml:"user"`
	Password       string `mapstructure:"PASSWORD" yaml:"password"`
	Name           string `mapstructure:"NAME" yaml:"name"`
	SSLMode        string `mapstructure:"SSL_MODE" yaml:"ssl_mode"`
	MaxConnections int    `mapstructure:"MAX_CONNECTIONS" yaml:"max_connections"`
}

// URL returns a postgres:// connection URL suitable for pgxpool and golang-migrate.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

// Enabled reports whether a Postgres user store is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig holds Redis connection details for the realtime backend.
type RedisConfig struct {
	Address  string `mapstructure:"ADDRESS" yaml:"address"`
	Password string `mapstructure:"PASSWORD" yaml:"password"`
	DB       int    `mapstructure:"DB" yaml:"db"`
	UseTLS   bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
}

// AuthConfig configures the identity provider and the login loop.
type AuthConfig struct {
	ProviderURL      string   `mapstructure:"PROVIDER_URL" yaml:"provider_url"`
	AppID            string   `mapstructure:"APP_ID" yaml:"app_id"`
	AppSecret        string   `mapstructure:"APP_SECRET" yaml:"app_secret"`
	AccessToken      string   `mapstructure:"ACCESS_TOKEN" yaml:"access_token"`
	Scope            []string `mapstructure:"SCOPE" yaml:"scope"`
	MaxLoginAttempts int      `mapstructure:"MAX_LOGIN_ATTEMPTS" yaml:"max_login_attempts"`
	TimeoutSeconds   int      `mapstructure:"TIMEOUT_SECONDS" yaml:"timeout_seconds"`
	// DevUserID replaces the identity provider with an always-connected
	// development user.
	DevUserID   string `mapstructure:"DEV_USER_ID" yaml:"dev_user_id"`
	DevUserName string `mapstructure:"DEV_USER_NAME" yaml:"dev_user_name"`
}

// Timeout bounds every identity provider call.
func (c AuthConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LocationConfig configures the locator and geocoder.
type LocationConfig struct {
	LocatorURL          string `mapstructure:"LOCATOR_URL" yaml:"locator_url"`
	StaticAddress       string `mapstructure:"STATIC_ADDRESS" yaml:"static_address"`
	GeocoderURL         string `mapstructure:"GEOCODER_URL" yaml:"geocoder_url"`
	FallbackGeocoderURL string `mapstructure:"FALLBACK_GEOCODER_URL" yaml:"fallback_geocoder_url"`
	UserAgent           string `mapstructure:"USER_AGENT" yaml:"user_agent"`
	TimeoutSeconds      int    `mapstructure:"TIMEOUT_SECONDS" yaml:"timeout_seconds"`
}

// Timeout bounds a whole DetectLocation run.
func (c LocationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SyncConfig configures the trip synchronizer.
type SyncConfig struct {
	Backend             string `mapstructure:"BACKEND" yaml:"backend"`
	ThrottleMillis      int    `mapstructure:"THROTTLE_MS" yaml:"throttle_ms"`
	FetchTimeoutSeconds int    `mapstructure:"FETCH_TIMEOUT_SECONDS" yaml:"fetch_timeout_seconds"`
}

// ThrottleWindow is the minimum spacing between destination evaluations.
func (c SyncConfig) ThrottleWindow() time.Duration {
	return time.Duration(c.ThrottleMillis) * time.Millisecond
}

// FetchTimeout bounds the wait for a trip's first sync.
func (c SyncConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// EventServiceConfig holds configuration for the Redis pub/sub transport.
type EventServiceConfig struct {
	PublishTimeoutSeconds   int `mapstructure:"PUBLISH_TIMEOUT_SECONDS" yaml:"publish_timeout_seconds"`
	SubscribeTimeoutSeconds int `mapstructure:"SUBSCRIBE_TIMEOUT_SECONDS" yaml:"subscribe_timeout_seconds"`
	EventBufferSize         int `mapstructure:"EVENT_BUFFER_SIZE" yaml:"event_buffer_size"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server       ServerConfig       `mapstructure:"SERVER" yaml:"server"`
	Database     DatabaseConfig     `mapstructure:"DATABASE" yaml:"database"`
	Redis        RedisConfig        `mapstructure:"REDIS" yaml:"redis"`
	Auth         AuthConfig         `mapstructure:"AUTH" yaml:"auth"`
	Location     LocationConfig     `mapstructure:"LOCATION" yaml:"location"`
	Sync         SyncConfig         `mapstructure:"SYNC" yaml:"sync"`
	EventService EventServiceConfig `mapstructure:"EVENT_SERVICE" yaml:"event_service"`
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.VERSION", "dev")
	v.SetDefault("DATABASE.HOST", "")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "nomadcrew_planner")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_CONNECTIONS", 5)
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 3)
	v.SetDefault("AUTH.PROVIDER_URL", "http://localhost:9000")
	v.SetDefault("AUTH.SCOPE", []string{"public_profile", "email", "user_friends"})
	v.SetDefault("AUTH.MAX_LOGIN_ATTEMPTS", 3)
	v.SetDefault("AUTH.TIMEOUT_SECONDS", 30)
	v.SetDefault("LOCATION.LOCATOR_URL", "https://ipapi.co/json/")
	v.SetDefault("LOCATION.GEOCODER_URL", "https://geocoding-api.open-meteo.com/v1/search")
	v.SetDefault("LOCATION.FALLBACK_GEOCODER_URL", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("LOCATION.USER_AGENT", "NomadCrew Planner (https://nomadcrew.uk)")
	v.SetDefault("LOCATION.TIMEOUT_SECONDS", 10)
	v.SetDefault("SYNC.BACKEND", RealtimeRedis)
	v.SetDefault("SYNC.THROTTLE_MS", 300)
	v.SetDefault("SYNC.FETCH_TIMEOUT_SECONDS", 15)
	v.SetDefault("EVENT_SERVICE.PUBLISH_TIMEOUT_SECONDS", 5)
	v.SetDefault("EVENT_SERVICE.SUBSCRIBE_TIMEOUT_SECONDS", 10)
	v.SetDefault("EVENT_SERVICE.EVENT_BUFFER_SIZE", 100)
}

// LoadConfig loads configuration from the environment (and a .env file when
// present), applies defaults, and validates the result.
func LoadConfig() (*Config, error) {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil {
		log.Debugw("No .env file loaded, using process environment", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][2]string{
		{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		{"DATABASE.HOST", "DB_HOST"},
		{"DATABASE.PORT", "DB_PORT"},
		{"DATABASE.USER", "DB_USER"},
		{"DATABASE.PASSWORD", "DB_PASSWORD"},
		{"DATABASE.NAME", "DB_NAME"},
		{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		{"AUTH.PROVIDER_URL", "AUTH_PROVIDER_URL"},
		{"AUTH.APP_ID", "AUTH_APP_ID"},
		{"AUTH.APP_SECRET", "AUTH_APP_SECRET"},
		{"AUTH.ACCESS_TOKEN", "AUTH_ACCESS_TOKEN"},
		{"AUTH.SCOPE", "AUTH_SCOPE"},
		{"AUTH.MAX_LOGIN_ATTEMPTS", "AUTH_MAX_LOGIN_ATTEMPTS"},
		{"AUTH.TIMEOUT_SECONDS", "AUTH_TIMEOUT_SECONDS"},
		{"AUTH.DEV_USER_ID", "AUTH_DEV_USER_ID"},
		{"AUTH.DEV_USER_NAME", "AUTH_DEV_USER_NAME"},
		{"LOCATION.LOCATOR_URL", "LOCATION_LOCATOR_URL"},
		{"LOCATION.STATIC_ADDRESS", "LOCATION_STATIC_ADDRESS"},
		{"LOCATION.GEOCODER_URL", "LOCATION_GEOCODER_URL"},
		{"LOCATION.FALLBACK_GEOCODER_URL", "LOCATION_FALLBACK_GEOCODER_URL"},
		{"LOCATION.TIMEOUT_SECONDS", "LOCATION_TIMEOUT_SECONDS"},
		{"SYNC.BACKEND", "SYNC_BACKEND"},
		{"SYNC.THROTTLE_MS", "SYNC_THROTTLE_MS"},
		{"SYNC.FETCH_TIMEOUT_SECONDS", "SYNC_FETCH_TIMEOUT_SECONDS"},
		{"EVENT_SERVICE.PUBLISH_TIMEOUT_SECONDS", "EVENT_SERVICE_PUBLISH_TIMEOUT_SECONDS"},
		{"EVENT_SERVICE.SUBSCRIBE_TIMEOUT_SECONDS", "EVENT_SERVICE_SUBSCRIBE_TIMEOUT_SECONDS"},
		{"EVENT_SERVICE.EVENT_BUFFER_SIZE", "EVENT_SERVICE_EVENT_BUFFER_SIZE"},
	}
	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	// AUTH_SCOPE arrives as "a,b,c" from the environment.
	cfg.Auth.Scope = splitScope(cfg.Auth.Scope)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Infow("Configuration loaded",
		"environment", cfg.Server.Environment,
		"server_port", cfg.Server.Port,
		"sync_backend", cfg.Sync.Backend,
		"redis", logger.MaskConnectionString(cfg.Redis.Address),
		"user_store", userStoreKind(&cfg.Database),
		"throttle_ms", cfg.Sync.ThrottleMillis,
		"auth_scope", cfg.Auth.Scope,
	)
	return &cfg, nil
}

func userStoreKind(db *DatabaseConfig) string {
	if db.Enabled() {
		return "postgres"
	}
	return "memory"
}

func splitScope(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig checks if the loaded configuration values are valid.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch cfg.Sync.Backend {
	case RealtimeRedis:
		if cfg.Redis.Address == "" {
			return fmt.Errorf("redis address is required for the redis sync backend")
		}
	case RealtimeMemory:
	default:
		return fmt.Errorf("unknown sync backend %q", cfg.Sync.Backend)
	}
	if cfg.Sync.ThrottleMillis <= 0 {
		return fmt.Errorf("sync throttle must be positive")
	}
	if cfg.Sync.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("sync fetch timeout must be positive")
	}

	if cfg.Database.Enabled() && cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if cfg.Auth.DevUserID == "" {
		if _, err := url.ParseRequestURI(cfg.Auth.ProviderURL); err != nil {
			return fmt.Errorf("invalid auth provider url '%s': %w", cfg.Auth.ProviderURL, err)
		}
	} else if cfg.IsProduction() {
		return fmt.Errorf("development user is not allowed in production")
	}
	if len(cfg.Auth.Scope) == 0 {
		return fmt.Errorf("auth scope must not be empty")
	}
	if cfg.Auth.MaxLoginAttempts <= 0 {
		return fmt.Errorf("auth max login attempts must be positive")
	}
	if cfg.Auth.TimeoutSeconds <= 0 {
		return fmt.Errorf("auth timeout must be positive")
	}

	if cfg.Location.TimeoutSeconds <= 0 {
		return fmt.Errorf("location timeout must be positive")
	}

	if cfg.EventService.PublishTimeoutSeconds <= 0 {
		return fmt.Errorf("event service publish timeout must be positive")
	}
	if cfg.EventService.SubscribeTimeoutSeconds <= 0 {
		return fmt.Errorf("event service subscribe timeout must be positive")
	}
	if cfg.EventService.EventBufferSize <= 0 {
		return fmt.Errorf("event service buffer size must be positive")
	}

	return nil
}
