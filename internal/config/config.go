package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".treewatch.yml"

const envPrefix = "TREEWATCH_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TREEWATCH_*). A double underscore
// separates nested keys: TREEWATCH_RECONNECT__MAX_ATTEMPTS sets
// reconnect.max_attempts.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validModes = map[RunMode]bool{
	ModeAsk:      true,
	ModeDiscover: true,
}

var validFormats = map[LogFormat]bool{
	LogConsole: true,
	LogJSON:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if err := checkURL("backend_url", c.BackendURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("http_url", c.HTTPURL, "http", "https"); err != nil {
		return err
	}

	if !validModes[c.Mode] {
		return fmt.Errorf("invalid mode %q: must be one of ask, discover", c.Mode)
	}

	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1")
	}
	if c.StructuralErrorThreshold < 1 {
		return fmt.Errorf("structural_error_threshold must be at least 1")
	}
	if c.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("reconnect.max_attempts must be at least 1")
	}

	if _, err := c.Timing(); err != nil {
		return err
	}

	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port %d out of range", c.Dashboard.Port)
	}

	if c.Log.Format != "" && !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be one of console, json", c.Log.Format)
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
		}
	}

	return nil
}

func checkURL(name, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: must be a %s URL", name, raw, strings.Join(schemes, " or "))
}

// Timing holds the parsed duration settings.
type Timing struct {
	HeartbeatInterval time.Duration
	SendRetryDelay    time.Duration
	RequestTimeout    time.Duration
	ReconnectBase     time.Duration
	ReconnectCap      time.Duration
}

// Timing parses every duration setting. Each must be positive.
func (c *Config) Timing() (Timing, error) {
	var t Timing
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"heartbeat_interval", c.HeartbeatInterval, &t.HeartbeatInterval},
		{"send_retry_delay", c.SendRetryDelay, &t.SendRetryDelay},
		{"request_timeout", c.RequestTimeout, &t.RequestTimeout},
		{"reconnect.base", c.Reconnect.Base, &t.ReconnectBase},
		{"reconnect.cap", c.Reconnect.Cap, &t.ReconnectCap},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return Timing{}, fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return Timing{}, fmt.Errorf("%s must be positive", f.name)
		}
		*f.dst = d
	}
	if t.ReconnectCap < t.ReconnectBase {
		return Timing{}, fmt.Errorf("reconnect.cap must not be below reconnect.base")
	}
	return t, nil
}
