package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the reader config file.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	APIBaseURL string `yaml:"apiBaseURL"`
	StatePath  string `yaml:"statePath"`
	LogLevel   string `yaml:"logLevel"`
	// LogFile receives the client log; empty means stderr.
	LogFile        string        `yaml:"logFile"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// Timezone used when rendering note and message timestamps.
	Timezone string `yaml:"timezone"`
}

// Load reads config from path (defaults to config.yaml), applies environment
// overrides and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Location resolves the configured timezone; empty means local time.
func (c FileConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("READER_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("READER_STATE_PATH"); v != "" {
		cfg.StatePath = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "http://localhost:8000"
	}
	if strings.TrimSpace(cfg.StatePath) == "" {
		cfg.StatePath = "reader-state.yaml"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
}

func validateConfig(cfg FileConfig) error {
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: apiBaseURL must be an absolute http(s) URL, got %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout < 0 {
		return errors.New("config: requestTimeout must be >= 0")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", cfg.Timezone, err)
	}
	return nil
}
