// Package config loads the dstore configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dstore/internal/store"
)

// Defaults for an empty configuration.
const (
	DefaultListen = ":3000"
	DefaultStore  = "stream-items"
	DefaultRoute  = "/stream-item"
)

// Config is the top-level configuration.
type Config struct {
	// Dir holds the store files. Empty means the working directory.
	Dir         string        `yaml:"dir"`
	Listen      string        `yaml:"listen"`
	QuietWindow time.Duration `yaml:"quiet_window"`
	Stores      []StoreConfig `yaml:"stores"`
}

// StoreConfig describes one store and its HTTP route.
type StoreConfig struct {
	Name  string `yaml:"name"`
	Route string `yaml:"route"`
	// Schema is a CUE file; Definition selects the definition in it.
	Schema     string `yaml:"schema,omitempty"`
	Definition string `yaml:"definition,omitempty"`
}

// Default returns the configuration used when no file is given: one store
// named stream-items mounted at /stream-item.
func Default() Config {
	return Config{
		Listen:      DefaultListen,
		QuietWindow: store.DefaultQuietWindow,
		Stores: []StoreConfig{
			{Name: DefaultStore, Route: DefaultRoute},
		},
	}
}

// Load reads a YAML file and fills unset fields from Default. Relative
// schema paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range cfg.Stores {
		if s := cfg.Stores[i].Schema; s != "" && !filepath.IsAbs(s) {
			cfg.Stores[i].Schema = filepath.Join(base, s)
		}
	}

	cfg = Default().Merge(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge returns c with every non-zero field of other applied on top.
func (c Config) Merge(other Config) Config {
	if other.Dir != "" {
		c.Dir = other.Dir
	}
	if other.Listen != "" {
		c.Listen = other.Listen
	}
	if other.QuietWindow != 0 {
		c.QuietWindow = other.QuietWindow
	}
	if len(other.Stores) > 0 {
		c.Stores = append([]StoreConfig(nil), other.Stores...)
	}
	for i := range c.Stores {
		if c.Stores[i].Route == "" {
			c.Stores[i].Route = "/" + c.Stores[i].Name
		}
	}
	return c
}

// Validate reports every problem found.
func (c Config) Validate() error {
	var errs []error
	if c.QuietWindow < 0 {
		errs = append(errs, fmt.Errorf("quiet_window must not be negative, got %s", c.QuietWindow))
	}

	names := make(map[string]bool, len(c.Stores))
	routes := make(map[string]bool, len(c.Stores))
	for i, s := range c.Stores {
		name, err := store.NormalizeName(s.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("stores[%d]: %w", i, err))
			continue
		}
		if names[name] {
			errs = append(errs, fmt.Errorf("stores[%d]: duplicate store %q", i, name))
		}
		names[name] = true

		switch {
		case !strings.HasPrefix(s.Route, "/"):
			errs = append(errs, fmt.Errorf("stores[%d]: route %q must start with /", i, s.Route))
		case routes[s.Route]:
			errs = append(errs, fmt.Errorf("stores[%d]: duplicate route %q", i, s.Route))
		}
		routes[s.Route] = true

		if (s.Schema == "") != (s.Definition == "") {
			errs = append(errs, fmt.Errorf("stores[%d]: schema and definition must be set together", i))
		}
	}
	return errors.Join(errs...)
}

// Store returns the configuration of the named store.
func (c Config) Store(name string) (StoreConfig, bool) {
	n, err := store.NormalizeName(name)
	if err != nil {
		return StoreConfig{}, false
	}
	for _, s := range c.Stores {
		if sn, _ := store.NormalizeName(s.Name); sn == n {
			return s, true
		}
	}
	return StoreConfig{}, false
}
