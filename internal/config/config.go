// Package config resolves client settings from defaults, an optional YAML
// file and the environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL         = "http://localhost:5000"
	DefaultWSURL          = "ws://localhost:5000"
	DefaultTimeout        = 30 * time.Second
	DefaultReconnectDelay = 3 * time.Second
	DefaultStaleTime      = 5 * time.Minute
	DefaultGCTime         = 30 * time.Minute
	DefaultRetries        = 2

	// DefaultDirName is created under the user's home directory.
	DefaultDirName = ".novapress"
	// DBFileName is the local store inside the data directory.
	DBFileName = "novapress.db"
)

// Config is the resolved client configuration.
type Config struct {
	APIURL         string        `yaml:"api_url" env:"NEXT_PUBLIC_API_URL"`
	WSURL          string        `yaml:"ws_url" env:"NEXT_PUBLIC_WS_URL"`
	AdminKey       string        `yaml:"admin_key" env:"NOVAPRESS_ADMIN_KEY"`
	DataDir        string        `yaml:"data_dir" env:"NOVAPRESS_DATA_DIR"`
	Timeout        time.Duration `yaml:"timeout" env:"NOVAPRESS_TIMEOUT"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"NOVAPRESS_RECONNECT_DELAY"`
	MetricsAddr    string        `yaml:"metrics_addr" env:"NOVAPRESS_METRICS_ADDR"`
	Cache          CacheConfig   `yaml:"cache"`
}

// CacheConfig mirrors the query cache policy.
type CacheConfig struct {
	StaleTime time.Duration `yaml:"stale_time" env:"NOVAPRESS_CACHE_STALE_TIME"`
	GCTime    time.Duration `yaml:"gc_time" env:"NOVAPRESS_CACHE_GC_TIME"`
	Retries   int           `yaml:"retries" env:"NOVAPRESS_CACHE_RETRIES"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		WSURL:          DefaultWSURL,
		DataDir:        defaultDataDir(),
		Timeout:        DefaultTimeout,
		ReconnectDelay: DefaultReconnectDelay,
		Cache: CacheConfig{
			StaleTime: DefaultStaleTime,
			GCTime:    DefaultGCTime,
			Retries:   DefaultRetries,
		},
	}
}

// DefaultPath is the config file consulted when --config is not given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// Load resolves the configuration. A missing file at path is not an error
// when path is the default location; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	// Unless a layer sets ws_url, it follows whatever api_url resolves to.
	cfg.WSURL = ""

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// mergeFile reads a YAML (or JSON, which YAML accepts) file over cfg.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return c.merge(data)
}

func (c *Config) merge(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.APIURL = strings.TrimSuffix(strings.TrimSpace(c.APIURL), "/")
	c.WSURL = strings.TrimSuffix(strings.TrimSpace(c.WSURL), "/")
	c.AdminKey = strings.TrimSpace(c.AdminKey)
	if c.WSURL == "" {
		c.WSURL = DeriveWSURL(c.APIURL)
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("config: api_url is required")
	}
	if !strings.HasPrefix(c.WSURL, "ws://") && !strings.HasPrefix(c.WSURL, "wss://") {
		return fmt.Errorf("config: ws_url must use ws:// or wss://, got %q", c.WSURL)
	}
	if c.Cache.Retries < 0 {
		return fmt.Errorf("config: cache.retries must be >= 0, got %d", c.Cache.Retries)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("config: reconnect_delay must be positive, got %s", c.ReconnectDelay)
	}
	return nil
}

// DBPath is the SQLite file inside the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFileName)
}

// DeriveWSURL maps an HTTP base to its WebSocket equivalent.
// "https://api.example" -> "wss://api.example".
func DeriveWSURL(apiURL string) string {
	switch {
	case strings.HasPrefix(apiURL, "https://"):
		return "wss://" + strings.TrimPrefix(apiURL, "https://")
	case strings.HasPrefix(apiURL, "http://"):
		return "ws://" + strings.TrimPrefix(apiURL, "http://")
	}
	return DefaultWSURL
}
