package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL          string        `yaml:"base_url"`
	SessionCookieEnv string        `yaml:"session_cookie_env"`
	SessionCookie    string        `yaml:"-"`
	UserAgent        string        `yaml:"user_agent"`
	PollInterval     time.Duration `yaml:"-"`
	RawInterval      string        `yaml:"poll_interval"`
	SecondaryPoll    time.Duration `yaml:"-"`
	RawSecondaryPoll string        `yaml:"secondary_poll_interval"`
	CacheTTL         time.Duration `yaml:"-"`
	RawCacheTTL      string        `yaml:"cache_ttl"`
	HTTPTimeout      time.Duration `yaml:"-"`
	RawHTTPTimeout   string        `yaml:"http_timeout"`
	DataDir          string        `yaml:"data_dir"`
	DBPath           string        `yaml:"db_path"`
	StatusFile       string        `yaml:"status_file"`
	LogFile          string        `yaml:"log_file"`
	Log              LogConfig     `yaml:"log"`
	TUI              TUIConfig     `yaml:"tui"`
	Bus              BusConfig     `yaml:"bus"`
	Defaults         Settings      `yaml:"defaults"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

type BusConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads path (a missing file means all defaults), pulls secrets from the
// environment and an optional .env file, then validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() error {
	if c.BaseURL == "" {
		c.BaseURL = "https://github.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SessionCookieEnv == "" {
		c.SessionCookieEnv = "GITHUB_USER_SESSION"
	}
	c.SessionCookie = os.Getenv(c.SessionCookieEnv)
	if c.UserAgent == "" {
		c.UserAgent = "review-radar/1.0"
	}

	var err error
	if c.PollInterval, err = parseDuration("poll_interval", &c.RawInterval, "5m"); err != nil {
		return err
	}
	if c.SecondaryPoll, err = parseDuration("secondary_poll_interval", &c.RawSecondaryPoll, "15m"); err != nil {
		return err
	}
	if c.CacheTTL, err = parseDuration("cache_ttl", &c.RawCacheTTL, "1m"); err != nil {
		return err
	}
	if c.HTTPTimeout, err = parseDuration("http_timeout", &c.RawHTTPTimeout, "30s"); err != nil {
		return err
	}
	if c.TUI.RefreshInterval, err = parseDuration("tui.refresh_interval", &c.TUI.RawInterval, "3s"); err != nil {
		return err
	}

	if c.DataDir == "" {
		c.DataDir = "~/.review-radar"
	}
	c.DataDir = ExpandPath(c.DataDir)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "review-radar.db")
	}
	c.DBPath = ExpandPath(c.DBPath)
	if c.StatusFile == "" {
		c.StatusFile = filepath.Join(c.DataDir, "badge.json")
	}
	c.StatusFile = ExpandPath(c.StatusFile)
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "logs", "review-radar.log")
	}
	c.LogFile = ExpandPath(c.LogFile)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Bus.Listen == "" {
		c.Bus.Listen = "127.0.0.1:7391"
	}

	c.Defaults.fillDefaults()

	return nil
}

func parseDuration(key string, raw *string, def string) (time.Duration, error) {
	if *raw == "" {
		*raw = def
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, *raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, *raw)
	}
	return d, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must be an http(s) URL", c.BaseURL)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	if _, _, err := net.SplitHostPort(c.Bus.Listen); err != nil {
		return fmt.Errorf("bus.listen %q: %w", c.Bus.Listen, err)
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	return nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
