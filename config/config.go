// Package config loads the client configuration: the backend ("OS")
// endpoints the dashboard can connect to, stream reader tuning, and history
// fetch limits.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// Config is the root configuration document.
	Config struct {
		// Endpoints lists the known backend instances.
		Endpoints []Endpoint `yaml:"endpoints"`
		// Stream tunes the event stream readers.
		Stream Stream `yaml:"stream"`
		// History tunes the paginated history client.
		History History `yaml:"history"`
	}

	// Endpoint describes one backend instance.
	Endpoint struct {
		// ID is the stable backend instance identifier used to detect
		// backend transitions (manual-override invalidation).
		ID string `yaml:"id"`
		// URL is the backend base URL.
		URL string `yaml:"url"`
		// Token is the bearer token for the backend, when required.
		Token string `yaml:"token,omitempty"`
	}

	// Stream tunes event stream consumption.
	Stream struct {
		// Buffer is the event channel capacity per run stream.
		Buffer int `yaml:"buffer"`
		// MaxFrameSize bounds a single event frame in bytes.
		MaxFrameSize int `yaml:"max_frame_size"`
	}

	// History tunes the history REST client.
	History struct {
		// RPS caps request throughput per backend. Zero disables limiting.
		RPS float64 `yaml:"rps"`
		// Burst is the limiter burst size.
		Burst int `yaml:"burst"`
		// PageLimit is the page size requested from paginated queries.
		PageLimit int `yaml:"page_limit"`
	}
)

// Load reads and validates the YAML configuration at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML configuration document.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Endpoint returns the endpoint with the given id.
func (c Config) Endpoint(id string) (Endpoint, bool) {
	for _, ep := range c.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}

func (c Config) validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("config: at least one endpoint is required")
	}
	seen := make(map[string]struct{}, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep.ID == "" {
			return fmt.Errorf("config: endpoints[%d].id is required", i)
		}
		if ep.URL == "" {
			return fmt.Errorf("config: endpoints[%d].url is required", i)
		}
		if _, dup := seen[ep.ID]; dup {
			return fmt.Errorf("config: duplicate endpoint id %q", ep.ID)
		}
		seen[ep.ID] = struct{}{}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Stream.Buffer <= 0 {
		c.Stream.Buffer = 64
	}
	if c.Stream.MaxFrameSize <= 0 {
		c.Stream.MaxFrameSize = 1 << 20
	}
	if c.History.PageLimit <= 0 {
		c.History.PageLimit = 20
	}
	if c.History.RPS > 0 && c.History.Burst <= 0 {
		c.History.Burst = 1
	}
}
