package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"meshdash/internal/labels"
)

const (
	DefaultAPIURL             = "http://localhost:5000"
	DefaultPollInterval       = 10 * time.Second
	DefaultRequestTimeout     = 8 * time.Second
	DefaultTrafficDebounce    = 300 * time.Millisecond
	DefaultNodeFilterDebounce = 200 * time.Millisecond
	DefaultStateBackend       = "file"
	DefaultStateFile          = "state.yaml"
	DefaultLogFile            = "meshdash.log"
	DefaultLogLevel           = "info"
	DefaultTrafficLimit       = 50
)

// Config holds the dashboard settings.
type Config struct {
	APIURL             string        `yaml:"api_url"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	TrafficDebounce    time.Duration `yaml:"traffic_debounce"`
	NodeFilterDebounce time.Duration `yaml:"node_filter_debounce"`
	TrafficLimit       int           `yaml:"traffic_limit"`
	StateBackend       string        `yaml:"state_backend"`
	StatePath          string        `yaml:"state_path"`
	RedisURL           string        `yaml:"redis_url"`
	LogFile            string        `yaml:"log_file"`
	LogLevel           string        `yaml:"log_level"`
	Theme              string        `yaml:"theme,omitempty"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api_url %q is not an http(s) url", cfg.APIURL)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	switch cfg.StateBackend {
	case "file":
		if cfg.StatePath == "" {
			return fmt.Errorf("state_path is required for the file backend")
		}
	case "redis":
		if cfg.RedisURL == "" {
			return fmt.Errorf("redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("state_backend must be file or redis, got %q", cfg.StateBackend)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.Theme != "" && !labels.ValidTheme(cfg.Theme) {
		return fmt.Errorf("theme %q is unknown", cfg.Theme)
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.TrafficDebounce == 0 {
		cfg.TrafficDebounce = DefaultTrafficDebounce
	}
	if cfg.NodeFilterDebounce == 0 {
		cfg.NodeFilterDebounce = DefaultNodeFilterDebounce
	}
	if cfg.TrafficLimit == 0 {
		cfg.TrafficLimit = DefaultTrafficLimit
	}
	if cfg.StateBackend == "" {
		cfg.StateBackend = DefaultStateBackend
	}
	if cfg.StatePath == "" {
		cfg.StatePath = defaultPath(DefaultStateFile)
	}
	if cfg.LogFile == "" {
		cfg.LogFile = defaultPath(DefaultLogFile)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "meshdash", name)
}
