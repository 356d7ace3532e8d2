// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the assistant service
// configuration from a YAML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// creation.
type Config struct {
	// Server contains HTTP listener settings.
	Server ServerConfig `yaml:"server"`

	// Engine contains agent loop bounds.
	Engine EngineConfig `yaml:"engine"`

	// Providers lists the model backends the gateway should register.
	Providers []ProviderConfig `yaml:"providers" validate:"min=1,dive"`

	// DefaultProvider names the provider used when a request does not
	// pick one.
	DefaultProvider string `yaml:"default_provider" validate:"required"`

	// Archive contains run archive settings.
	Archive ArchiveConfig `yaml:"archive"`

	// Sessions contains session store settings.
	Sessions SessionConfig `yaml:"sessions"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	OTLPEndpoint string        `yaml:"otlp_endpoint"`
	ToolTimeout  time.Duration `yaml:"tool_timeout"`
}

// EngineConfig contains agent loop bounds.
type EngineConfig struct {
	MaxIterations int           `yaml:"max_iterations" validate:"omitempty,gte=1,lte=50"`
	RunTimeout    time.Duration `yaml:"run_timeout"`
	DefaultSkills []string      `yaml:"default_skills" validate:"dive,oneof=initiatives goals analytics social"`
	SystemPrompt  string        `yaml:"system_prompt"`
}

// ProviderConfig describes one model backend.
type ProviderConfig struct {
	// ID is the name requests select the provider by.
	ID string `yaml:"id" validate:"required"`

	// Kind selects the backend implementation: "openai" or "ollama".
	Kind string `yaml:"kind" validate:"required,oneof=openai ollama"`

	// Model is the backend-specific model name.
	Model string `yaml:"model" validate:"required"`

	// BaseURL overrides the backend endpoint. Required for ollama.
	BaseURL string `yaml:"base_url"`

	// Tier gates who may invoke the provider: "standard" or "elevated".
	Tier string `yaml:"capability_tier" validate:"oneof=standard elevated"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never appears in the config file.
	APIKeyEnv string `yaml:"api_key_env"`

	// RPS caps requests per second to the backend. Zero means unlimited.
	RPS float64 `yaml:"rps" validate:"gte=0"`

	// Available marks the provider usable at startup.
	Available bool `yaml:"availability"`
}

// ArchiveConfig contains run archive settings.
type ArchiveConfig struct {
	// Enabled turns the badger-backed archive on.
	Enabled bool `yaml:"enabled"`

	// Path is the archive directory. Required when enabled.
	Path string `yaml:"path" validate:"required_if=Enabled true"`

	// TTL is how long archived runs survive.
	TTL time.Duration `yaml:"ttl"`
}

// SessionConfig contains session store settings.
type SessionConfig struct {
	RingCapacity int           `yaml:"ring_capacity" validate:"omitempty,gte=1,lte=500"`
	TTL          time.Duration `yaml:"ttl"`
}

// Default fills in applied by Load.
const (
	defaultPort        = "12310"
	defaultToolTimeout = 8 * time.Second
)

// Load reads the YAML file at path, applies environment overrides, and
// validates the result. An empty path yields a default lightweight
// configuration with a single local ollama provider.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else {
		*cfg = lightweightDefaults()
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lightweightDefaults is the zero-infrastructure configuration: one
// local ollama backend, no archive.
func lightweightDefaults() Config {
	return Config{
		DefaultProvider: "local",
		Providers: []ProviderConfig{{
			ID:        "local",
			Kind:      "ollama",
			Model:     "llama3.1",
			BaseURL:   "http://localhost:11434",
			Tier:      "standard",
			Available: true,
		}},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ASSISTANT_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Server.OTLPEndpoint = v
	}
	if v := os.Getenv("ASSISTANT_DEFAULT_PROVIDER"); v != "" {
		cfg.DefaultProvider = v
	}
	if v := os.Getenv("ASSISTANT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxIterations = n
		}
	}
	if v := os.Getenv("ASSISTANT_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Enabled = true
		cfg.Archive.Path = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if c.Server.ToolTimeout <= 0 {
		c.Server.ToolTimeout = defaultToolTimeout
	}
	for i := range c.Providers {
		if c.Providers[i].Tier == "" {
			c.Providers[i].Tier = "standard"
		}
	}
}

// Validate checks structural constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ids := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("duplicate provider id %q", p.ID)
		}
		ids[p.ID] = struct{}{}
		if p.Kind == "ollama" && p.BaseURL == "" {
			return fmt.Errorf("provider %q: ollama requires base_url", p.ID)
		}
	}
	if _, ok := ids[c.DefaultProvider]; !ok {
		return fmt.Errorf("default_provider %q is not a configured provider", c.DefaultProvider)
	}
	return nil
}
