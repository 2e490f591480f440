// Package config loads the namespace configuration and assembles
// the mounted filesystems from it.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

var (
	ErrConfigRead    = errors.New("cannot read config file")
	ErrConfigInvalid = errors.New("invalid config")
)

// Config holds all configuration options.
// Files are JSON with comments and trailing commas allowed.
type Config struct {
	Log  LogConfig  `json:"log"`
	Net  NetConfig  `json:"net"`
	Mem  MemConfig  `json:"mem"`
	Dev  DevConfig  `json:"dev"`
	Host HostConfig `json:"host"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Output string `json:"output,omitempty"` // path; empty means stderr
}

type NetConfig struct {
	Name        string            `json:"name"`
	DialTimeout Duration          `json:"dial_timeout"`
	KeepAlive   Duration          `json:"keepalive"`
	DialRate    float64           `json:"dial_rate"` // attempts per second; 0 is unlimited
	DialBurst   int               `json:"dial_burst"`
	CacheSize   int               `json:"cache_size"`
	Hosts       map[string]string `json:"hosts,omitempty"`
}

type MemConfig struct {
	Name string `json:"name"`
}

type DevConfig struct {
	Name string `json:"name"`
}

type HostConfig struct {
	Name string `json:"name"`
	Root string `json:"root,omitempty"` // empty disables the mount
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Net: NetConfig{
			Name:        "tcp",
			DialTimeout: Duration(10 * time.Second),
			KeepAlive:   Duration(15 * time.Second),
			DialBurst:   1,
			CacheSize:   256,
		},
		Mem:  MemConfig{Name: "mem"},
		Dev:  DevConfig{Name: "dev"},
		Host: HostConfig{Name: "host"},
	}
}

// Parse decodes JSONC data over the defaults.
// Fields absent from data keep their default values.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", ErrConfigInvalid, err)
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigRead, path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Validate checks mount names and numeric limits.
func (c Config) Validate() error {
	names := map[string]bool{}
	for _, name := range []string{c.Net.Name, c.Mem.Name, c.Dev.Name, c.Host.Name} {
		if name == "" || strings.ContainsAny(name, ":/\\ ") {
			return fmt.Errorf("%w: bad mount name %q", ErrConfigInvalid, name)
		}
		if names[name] {
			return fmt.Errorf("%w: duplicate mount name %q", ErrConfigInvalid, name)
		}
		names[name] = true
	}
	if c.Net.DialRate < 0 || c.Net.DialBurst < 0 || c.Net.CacheSize < 0 {
		return fmt.Errorf("%w: negative net limit", ErrConfigInvalid)
	}
	if c.Net.DialTimeout < 0 || c.Net.KeepAlive < 0 {
		return fmt.Errorf("%w: negative duration", ErrConfigInvalid)
	}
	return nil
}
