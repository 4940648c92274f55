package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/wheelhouse/go/internal/spin"
	"gopkg.in/yaml.v3"
)

// Config is the API server's file-based configuration. Connection
// secrets stay in the environment; this file only carries tunables.
type Config struct {
	Spin struct {
		CooldownSec  int `yaml:"cooldown_sec"`
		ActiveTTLSec int `yaml:"active_ttl_sec"`
	} `yaml:"spin"`
	Feed struct {
		// Driver selects the event path: "nats" runs the outbox/JetStream
		// pipeline, "memory" runs everything in-process.
		Driver string `yaml:"driver"`
	} `yaml:"feed"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// spinPolicy builds the coordinator policy from config, falling back
// to defaults for unset knobs.
func (c *Config) spinPolicy() spin.Policy {
	policy := spin.DefaultPolicy()
	if c.Spin.CooldownSec > 0 {
		policy.Cooldown = time.Duration(c.Spin.CooldownSec) * time.Second
	}
	if c.Spin.ActiveTTLSec > 0 {
		policy.ActiveTTL = time.Duration(c.Spin.ActiveTTLSec) * time.Second
	}
	return policy
}
