// Package config loads converter defaults from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds converter defaults. Zero values mean "use the built-in
// default"; command line flags override everything.
type Config struct {
	Interval  string `yaml:"interval,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty"`
	Timezone  string `yaml:"timezone,omitempty"`
}

// Load reads a config file. A missing path yields an empty config.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// SamplingInterval parses the configured interval, or returns fallback
// when none is set.
func (c *Config) SamplingInterval(fallback time.Duration) (time.Duration, error) {
	if c.Interval == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, fmt.Errorf("config: interval: %w", err)
	}
	return d, nil
}

// DelimiterRune returns the configured cell delimiter, or fallback when
// none is set.
func (c *Config) DelimiterRune(fallback rune) (rune, error) {
	if c.Delimiter == "" {
		return fallback, nil
	}
	runes := []rune(c.Delimiter)
	if len(runes) != 1 {
		return 0, fmt.Errorf("config: delimiter must be a single character, got %q", c.Delimiter)
	}
	return runes[0], nil
}

// Location resolves the configured timezone, or fallback when none is
// set.
func (c *Config) Location(fallback *time.Location) (*time.Location, error) {
	if c.Timezone == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone: %w", err)
	}
	return loc, nil
}
