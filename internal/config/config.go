package config

import (
	"fmt"
	"net"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	TMDB      TMDBConfig
	Browse    BrowseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Env  string `env:"APP_ENV" env-default:"local"`
	Port string `env:"PORT" env-default:"4000"`
	Host string `env:"HOST" env-default:"http://localhost:4000"`

	// TrustProxy honours X-Forwarded-For / X-Real-IP. Enable only behind a
	// proxy that overwrites those headers.
	TrustProxy bool `env:"TRUST_PROXY" env-default:"false"`
}

type TMDBConfig struct {
	APIKey            string        `env:"TMDB_KEY"`
	BaseURL           string        `env:"TMDB_URL" env-default:"https://api.themoviedb.org/3"`
	ImageBaseURL      string        `env:"TMDB_IMAGE_URL" env-default:"https://image.tmdb.org/t/p/w500"`
	Language          string        `env:"TMDB_LANGUAGE" env-default:"en-US"`
	Timeout           time.Duration `env:"TMDB_TIMEOUT" env-default:"10s"`
	RequestsPerSecond float64       `env:"TMDB_RATE_LIMIT" env-default:"20"`
	Burst             int           `env:"TMDB_RATE_BURST" env-default:"10"`
}

type BrowseConfig struct {
	DebounceDelay time.Duration `env:"DEBOUNCE_DELAY" env-default:"500ms"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" env-default:"10s"`
	SessionTTL    time.Duration `env:"SESSION_TTL" env-default:"30m"`
	MaxSessions   int           `env:"MAX_SESSIONS" env-default:"1000"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	TLS      bool   `env:"REDIS_TLS" env-default:"false"`
}

type RateLimitConfig struct {
	MaxRequests int           `env:"RATE_LIMIT_MAX" env-default:"100"`
	Window      time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// Load reads environment variables and returns a Config struct
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_KEY is required")
	}
	if c.Browse.DebounceDelay < 0 {
		return fmt.Errorf("DEBOUNCE_DELAY must not be negative")
	}
	if c.Browse.MaxSessions < 1 {
		return fmt.Errorf("MAX_SESSIONS must be at least 1")
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX must be at least 1")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// IsDevelopment returns true if running in development/local mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "local" || c.Server.Env == "development"
}

// RedisAddr returns the Redis address in host:port format
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.Redis.Host, c.Redis.Port)
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}
