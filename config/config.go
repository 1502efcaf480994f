package config

import (
	"fmt"
	"os"

	"go.arsenm.dev/wscall/channel"
	"go.arsenm.dev/wscall/codec"
	"go.arsenm.dev/wscall/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the wscall command
type Config struct {
	// Listen is the address the server listens on
	Listen string `yaml:"listen"`
	// Codec is the frame codec, "json" or "msgpack"
	Codec string `yaml:"codec"`
	// StrictRegister rejects registering a path twice
	StrictRegister bool `yaml:"strictRegister"`

	RateLimit RateLimit `yaml:"rateLimit"`
	Metrics   Metrics   `yaml:"metrics"`
	Log       Log       `yaml:"log"`
}

// RateLimit limits inbound calls per channel. A zero Rate disables it.
type RateLimit struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// Metrics configures the Prometheus endpoint.
// An empty Listen disables it.
type Metrics struct {
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// Log configures logging
type Log struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Development enables human-readable console output
	Development bool `yaml:"development"`
	// File, if set, is written to with rotation instead of stderr
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Listen: ":12778",
		Codec:  "json",
		Metrics: Metrics{
			Namespace: "wscall",
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the YAML file at path on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if c.RateLimit.Rate < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit.Rate)
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1, got %d", c.RateLimit.Burst)
	}
	return nil
}

// ChannelOptions returns the channel options described by the configuration
func (c *Config) ChannelOptions(logger *zap.Logger, m *metrics.Collector) ([]channel.Option, error) {
	cdc, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, err
	}

	opts := []channel.Option{
		channel.WithCodec(cdc),
		channel.WithLogger(logger),
		channel.WithMetrics(m),
	}
	if c.StrictRegister {
		opts = append(opts, channel.WithStrictRegister())
	}
	if c.RateLimit.Rate > 0 {
		opts = append(opts, channel.WithRateLimit(rate.Limit(c.RateLimit.Rate), c.RateLimit.Burst))
	}

	return opts, nil
}
