// Package config loads client and server settings: built-in defaults,
// then an optional YAML file, then FOCUS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/hperssn/focussync/internal/domain"
)

// Client configures focusctl.
type Client struct {
	ServerURL      string        `yaml:"server_url" env:"FOCUS_SERVER_URL"`
	Account        string        `yaml:"account" env:"FOCUS_ACCOUNT"`
	CachePath      string        `yaml:"cache_path" env:"FOCUS_CACHE_PATH"`
	DefaultMinutes int           `yaml:"default_minutes" env:"FOCUS_DEFAULT_MINUTES"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"FOCUS_REQUEST_TIMEOUT"`
}

// Server configures the session store.
type Server struct {
	Addr                  string `yaml:"addr" env:"FOCUS_ADDR"`
	DBDriver              string `yaml:"db_driver" env:"FOCUS_DB_DRIVER"`
	DBDSN                 string `yaml:"db_dsn" env:"FOCUS_DB_DSN"`
	DefaultSessionSeconds int    `yaml:"default_session_seconds" env:"FOCUS_DEFAULT_SESSION_SECONDS"`
}

func DefaultClient() Client {
	return Client{
		ServerURL:      "http://localhost:8080",
		CachePath:      defaultCachePath(),
		DefaultMinutes: domain.DefaultDurationSeconds / 60,
		RequestTimeout: 5 * time.Second,
	}
}

func DefaultServer() Server {
	return Server{
		Addr:                  ":8080",
		DBDriver:              "sqlite3",
		DBDSN:                 "focus.db",
		DefaultSessionSeconds: domain.DefaultDurationSeconds,
	}
}

// LoadClient returns the client settings. path may be empty.
func LoadClient(path string) (*Client, error) {
	cfg := DefaultClient()
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadServer returns the server settings. path may be empty.
func LoadServer(path string) (*Server, error) {
	cfg := DefaultServer()
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Client) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server_url %q must be an absolute URL", c.ServerURL)
	}
	if strings.TrimSpace(c.CachePath) == "" {
		return errors.New("cache_path is required")
	}
	if !domain.ValidDuration(c.DefaultMinutes * 60) {
		return fmt.Errorf("default_minutes must be 1-%d, got %d", domain.MaxDurationSeconds/60, c.DefaultMinutes)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// DefaultDurationSeconds is the session length used when start gets no
// explicit duration or end time.
func (c *Client) DefaultDurationSeconds() int {
	return c.DefaultMinutes * 60
}

func (s *Server) Validate() error {
	if strings.TrimSpace(s.Addr) == "" {
		return errors.New("addr is required")
	}
	switch s.DBDriver {
	case "sqlite3", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("db_driver must be sqlite3 or postgres, got %q", s.DBDriver)
	}
	if strings.TrimSpace(s.DBDSN) == "" {
		return errors.New("db_dsn is required")
	}
	if !domain.ValidDuration(s.DefaultSessionSeconds) {
		return fmt.Errorf("default_session_seconds must be 1-%d, got %d", domain.MaxDurationSeconds, s.DefaultSessionSeconds)
	}
	return nil
}

func load(path string, target any) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".focussync.db"
	}
	return filepath.Join(dir, "focussync", "cache.db")
}
