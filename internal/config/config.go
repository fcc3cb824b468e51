// Package config loads the service configuration from YAML, a .env file and
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"portfolio-web/internal/feed"
	"portfolio-web/internal/tracker"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Feed    FeedConfig    `yaml:"feed"`
	Tracker TrackerConfig `yaml:"tracker"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type FeedConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	MaxItems int           `yaml:"max_items"`
	// MinInterval is the shortest gap between two upstream requests.
	MinInterval time.Duration `yaml:"min_interval"`
	UserAgent   string        `yaml:"user_agent"`
	Fallback    []feed.Item   `yaml:"fallback"`
}

type TrackerConfig struct {
	Threshold         float64       `yaml:"threshold"`
	Debounce          time.Duration `yaml:"debounce"`
	Settle            time.Duration `yaml:"settle"`
	MountDelay        time.Duration `yaml:"mount_delay"`
	InitialCheckDelay time.Duration `yaml:"initial_check_delay"`
	UpperFraction     float64       `yaml:"upper_fraction"`

	// Observe options handed to the host. Margins are fractions of the
	// viewport, negative values shrink it.
	SectionThresholds []float64      `yaml:"section_thresholds"`
	SectionMargin     tracker.Margin `yaml:"section_margin"`
	HeroMargin        tracker.Margin `yaml:"hero_margin"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTExpiration time.Duration `yaml:"jwt_expiration"`
	AdminUser     string        `yaml:"admin_user"`
	// AdminPasswordHash is a bcrypt hash; see `server hash-password`.
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	t := tracker.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Address:        ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Feed: FeedConfig{
			URL:         "https://byshay.substack.com/feed",
			Timeout:     10 * time.Second,
			CacheTTL:    time.Hour,
			MaxItems:    feed.DefaultMaxItems,
			MinInterval: time.Second,
			UserAgent:   "portfolio-web/1.0 (+https://byshay.substack.com)",
			Fallback:    append([]feed.Item(nil), feed.DefaultFallback...),
		},
		Tracker: TrackerConfig{
			Threshold:         t.Threshold,
			Debounce:          t.Debounce,
			Settle:            t.Settle,
			MountDelay:        t.MountDelay,
			InitialCheckDelay: t.InitialCheckDelay,
			UpperFraction:     t.UpperFraction,
			SectionThresholds: t.SectionThresholds,
			SectionMargin:     t.SectionMargin,
			HeroMargin:        t.HeroMargin,
		},
		Auth: AuthConfig{
			JWTExpiration: 24 * time.Hour,
			AdminUser:     "admin",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load reads path (a missing file means defaults), then .env, then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	_ = godotenv.Load()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PORTFOLIO_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("PORTFOLIO_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("PORTFOLIO_FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if err := durationEnv("PORTFOLIO_FEED_CACHE_TTL", &c.Feed.CacheTTL); err != nil {
		return err
	}
	if err := durationEnv("PORTFOLIO_FEED_TIMEOUT", &c.Feed.Timeout); err != nil {
		return err
	}
	if v := os.Getenv("PORTFOLIO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PORTFOLIO_ADMIN_USER"); v != "" {
		c.Auth.AdminUser = v
	}
	if v := os.Getenv("PORTFOLIO_ADMIN_PASSWORD_HASH"); v != "" {
		c.Auth.AdminPasswordHash = v
	}
	if v := os.Getenv("PORTFOLIO_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	return nil
}

func durationEnv(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Feed.Timeout <= 0 {
		return errors.New("feed.timeout must be positive")
	}
	if c.Feed.CacheTTL <= 0 {
		return errors.New("feed.cache_ttl must be positive")
	}
	if c.Feed.MaxItems < 1 {
		return errors.New("feed.max_items must be at least 1")
	}
	if c.Tracker.Threshold < 0 || c.Tracker.Threshold >= 1 {
		return fmt.Errorf("tracker.threshold %v must be in [0, 1)", c.Tracker.Threshold)
	}
	if c.Tracker.UpperFraction <= 0 || c.Tracker.UpperFraction > 1 {
		return fmt.Errorf("tracker.upper_fraction %v must be in (0, 1]", c.Tracker.UpperFraction)
	}
	if len(c.Tracker.SectionThresholds) == 0 {
		return errors.New("tracker.section_thresholds must not be empty")
	}
	for _, th := range c.Tracker.SectionThresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("tracker.section_thresholds value %v must be in [0, 1]", th)
		}
	}
	return nil
}

// TrackerOptions maps the file settings onto tracker.Config.
func (c *Config) TrackerOptions() tracker.Config {
	t := tracker.DefaultConfig()
	t.Threshold = c.Tracker.Threshold
	t.Debounce = c.Tracker.Debounce
	t.Settle = c.Tracker.Settle
	t.MountDelay = c.Tracker.MountDelay
	t.InitialCheckDelay = c.Tracker.InitialCheckDelay
	t.UpperFraction = c.Tracker.UpperFraction
	t.SectionThresholds = append([]float64(nil), c.Tracker.SectionThresholds...)
	t.SectionMargin = c.Tracker.SectionMargin
	t.HeroMargin = c.Tracker.HeroMargin
	return t
}

// AdminEnabled reports whether operator endpoints can issue tokens.
func (c *Config) AdminEnabled() bool {
	return c.Auth.JWTSecret != "" && c.Auth.AdminPasswordHash != ""
}
