// Package config loads the funnel backend configuration with Viper from an
// optional config.yaml, an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverSupabase = "supabase"
	StorageDriverNone     = "none"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Supabase  SupabaseConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Chat      ChatConfig
	Auth      AuthConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Name                  string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
	SlowQueryThreshold    time.Duration
	RunMigrations         bool
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is postgres, supabase or none. With none the knowledge base
	// reads fall back to built-in content and every write answers 503.
	Driver string
}

// SupabaseConfig holds the hosted backend settings.
type SupabaseConfig struct {
	URL    string
	APIKey string
}

// RedisConfig holds the compiled prompt cache settings. An empty Addr
// disables the cache.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PromptCacheTTL time.Duration
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LLMConfig holds the chat completions provider settings.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ChatConfig bounds the public chat endpoint.
type ChatConfig struct {
	MaxHistory int
	// RateLimit is the sustained number of chat requests per second per client.
	RateLimit float64
	Burst     int
	// MaxConcurrent caps open chat streams across all clients. Zero means no cap.
	MaxConcurrent int
}

// AuthConfig holds admin authentication settings.
type AuthConfig struct {
	SessionDuration time.Duration
	SecureCookie    bool
	// AdminEmail and AdminPassword seed the first admin account at startup.
	AdminEmail    string
	AdminPassword string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig holds the global per-IP rate limit.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration. Precedence, highest first: environment, .env
// file, config.yaml, defaults.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/levelapp")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads variables from the given files without overriding ones
// already set. Missing files are ignored.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading %s: %w", p, err)
		}
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Environment:     v.GetString("server.env"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Host:                  v.GetString("database.host"),
			Port:                  v.GetInt("database.port"),
			User:                  v.GetString("database.user"),
			Password:              v.GetString("database.password"),
			Name:                  v.GetString("database.name"),
			SSLMode:               v.GetString("database.sslmode"),
			MaxConnections:        v.GetInt("database.max_connections"),
			MaxIdleConnections:    v.GetInt("database.max_idle_connections"),
			ConnectionMaxLifetime: v.GetDuration("database.connection_max_lifetime"),
			SlowQueryThreshold:    v.GetDuration("database.slow_query_threshold"),
			RunMigrations:         v.GetBool("database.run_migrations"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
		},
		Supabase: SupabaseConfig{
			URL:    v.GetString("supabase.url"),
			APIKey: v.GetString("supabase.api_key"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("redis.addr"),
			Password:       v.GetString("redis.password"),
			DB:             v.GetInt("redis.db"),
			PromptCacheTTL: v.GetDuration("redis.prompt_cache_ttl"),
		},
		LLM: LLMConfig{
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			Model:       v.GetString("llm.model"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Timeout:     v.GetDuration("llm.timeout"),
		},
		Chat: ChatConfig{
			MaxHistory:    v.GetInt("chat.max_history"),
			RateLimit:     v.GetFloat64("chat.rate_limit"),
			Burst:         v.GetInt("chat.burst"),
			MaxConcurrent: v.GetInt("chat.max_concurrent"),
		},
		Auth: AuthConfig{
			SessionDuration: v.GetDuration("session.duration"),
			SecureCookie:    v.GetBool("session.secure_cookie"),
			AdminEmail:      v.GetString("admin.email"),
			AdminPassword:   v.GetString("admin.password"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit.requests"),
			Window:   v.GetDuration("rate_limit.window"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "levelapp")
	v.SetDefault("database.name", "levelapp")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 5)
	v.SetDefault("database.connection_max_lifetime", "5m")
	v.SetDefault("database.slow_query_threshold", "100ms")
	v.SetDefault("database.run_migrations", true)

	v.SetDefault("storage.driver", StorageDriverPostgres)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prompt_cache_ttl", "5m")

	v.SetDefault("llm.base_url", "https://api.deepseek.com")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("chat.max_history", 20)
	v.SetDefault("chat.rate_limit", 0.5)
	v.SetDefault("chat.burst", 5)
	v.SetDefault("chat.max_concurrent", 20)

	v.SetDefault("session.duration", "24h")
	v.SetDefault("session.secure_cookie", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")
}

// Validate checks that all required configuration values are present.
func (c *Config) Validate() error {
	var missing []string

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Database.Password == "" {
			missing = append(missing, "DATABASE_PASSWORD")
		}
	case StorageDriverSupabase:
		if c.Supabase.URL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Supabase.APIKey == "" {
			missing = append(missing, "SUPABASE_API_KEY")
		}
	case StorageDriverNone:
	default:
		return fmt.Errorf("invalid storage.driver %q: must be one of %s, %s, %s",
			c.Storage.Driver, StorageDriverPostgres, StorageDriverSupabase, StorageDriverNone)
	}

	if c.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		missing = append(missing, "ADMIN_EMAIL and ADMIN_PASSWORD (set both or neither)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Chat.MaxHistory < 0 {
		return fmt.Errorf("chat.max_history must not be negative")
	}
	if c.Chat.MaxConcurrent < 0 {
		return fmt.Errorf("chat.max_concurrent must not be negative")
	}
	if c.Chat.RateLimit <= 0 || c.Chat.Burst <= 0 {
		return fmt.Errorf("chat.rate_limit and chat.burst must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// StorageConfigured reports whether a persistence backend is selected.
func (c *Config) StorageConfigured() bool {
	return c.Storage.Driver != StorageDriverNone
}
