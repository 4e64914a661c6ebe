package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values
const (
	EnvRate        = "ENERGYTRACKER_RATE"
	EnvCurrency    = "ENERGYTRACKER_CURRENCY"
	EnvPreviewRows = "ENERGYTRACKER_PREVIEW_ROWS"
	EnvLogLevel    = "ENERGYTRACKER_LOG_LEVEL"
	EnvAddr        = "ENERGYTRACKER_ADDR"
	EnvMQTTBroker  = "ENERGYTRACKER_MQTT_BROKER"
	EnvMQTTUser    = "ENERGYTRACKER_MQTT_USERNAME"
	EnvMQTTPass    = "ENERGYTRACKER_MQTT_PASSWORD"
)

const (
	defaultRate           = 8.0
	defaultCurrency       = "₹"
	defaultPreviewRows    = 5
	defaultAddr           = ":8080"
	defaultMaxUploadBytes = 8 << 20
	defaultTopicPrefix    = "energytracker"
)

// Config holds the application configuration
type Config struct {
	Rate        *float64     `yaml:"rate,omitempty"`         // Cost per kWh (default: 8.0)
	Currency    string       `yaml:"currency,omitempty"`     // Symbol prefixed to costs
	PreviewRows int          `yaml:"preview_rows,omitempty"` // Raw rows shown in the preview
	LogLevel    string       `yaml:"log_level,omitempty"`
	Server      ServerConfig `yaml:"server,omitempty"`
	MQTT        MQTTConfig   `yaml:"mqtt,omitempty"`
}

// ServerConfig holds the upload server settings
type ServerConfig struct {
	Addr           string `yaml:"addr,omitempty"`             // e.g., ":8080"
	MaxUploadBytes int64  `yaml:"max_upload_bytes,omitempty"` // multipart memory and body limit
}

// MQTTConfig holds MQTT broker configuration for summary publication
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`                 // host:port, e.g., "homeassistant.local:1883"
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // default: "energytracker"
}

// Load reads the config file, then applies .env and environment overrides.
// A missing config file yields an empty config with defaults.
func Load(configPath string) (*Config, error) {
	cfg, err := readFile(configPath)
	if err != nil {
		return nil, err
	}

	// .env is optional; variables already set in the environment win
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readFile parses the config file alone, without any overrides
func readFile(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// Fall through with an empty config
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return cfg, nil
}

// SaveRate stores rate as the default in the config file. Other file values
// are kept; environment overrides are never written back.
func SaveRate(configPath string, rate float64) error {
	cfg, err := readFile(configPath)
	if err != nil {
		return err
	}
	cfg.Rate = &rate
	return Save(configPath, cfg)
}

// Save validates the config and writes it to file
func Save(configPath string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	// May hold broker credentials
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv(EnvRate); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvRate, err)
		}
		c.Rate = &rate
	}
	if v, ok := lookupEnv(EnvPreviewRows); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvPreviewRows, err)
		}
		c.PreviewRows = n
	}
	if v, ok := lookupEnv(EnvCurrency); ok {
		c.Currency = v
	}
	if v, ok := lookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := lookupEnv(EnvAddr); ok {
		c.Server.Addr = v
	}
	if v, ok := lookupEnv(EnvMQTTBroker); ok {
		c.MQTT.Broker = v
	}
	if v, ok := lookupEnv(EnvMQTTUser); ok {
		c.MQTT.Username = v
	}
	if v, ok := lookupEnv(EnvMQTTPass); ok {
		c.MQTT.Password = v
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	if c.Rate != nil && (*c.Rate < 0 || math.IsNaN(*c.Rate) || math.IsInf(*c.Rate, 0)) {
		return fmt.Errorf("rate must be non-negative and finite, got %v", *c.Rate)
	}
	if c.PreviewRows < 0 {
		return fmt.Errorf("preview_rows must be non-negative, got %d", c.PreviewRows)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT broker address is required when enabled")
	}
	return nil
}

// GetRate returns the cost per kWh, defaulting to 8.0. An explicit 0 is kept.
func (c *Config) GetRate() float64 {
	if c.Rate == nil {
		return defaultRate
	}
	return *c.Rate
}

// GetCurrency returns the currency symbol, defaulting to ₹
func (c *Config) GetCurrency() string {
	if c.Currency == "" {
		return defaultCurrency
	}
	return c.Currency
}

// GetPreviewRows returns the number of raw rows to preview, defaulting to 5
func (c *Config) GetPreviewRows() int {
	if c.PreviewRows <= 0 {
		return defaultPreviewRows
	}
	return c.PreviewRows
}

// GetAddr returns the listen address for the upload server
func (c *Config) GetAddr() string {
	if c.Server.Addr == "" {
		return defaultAddr
	}
	return c.Server.Addr
}

// GetMaxUploadBytes returns the upload size limit, defaulting to 8 MiB
func (c *Config) GetMaxUploadBytes() int64 {
	if c.Server.MaxUploadBytes <= 0 {
		return defaultMaxUploadBytes
	}
	return c.Server.MaxUploadBytes
}

// GetTopicPrefix returns the MQTT topic prefix, defaulting to "energytracker"
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return defaultTopicPrefix
	}
	return strings.TrimSuffix(m.TopicPrefix, "/")
}
