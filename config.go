package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds the runtime settings for the balancer.
type Config struct {
	Algorithm   string            `json:"algorithm"`
	Port        int               `json:"port"`
	ServersFile string            `json:"serversFile"`
	StaticDir   string            `json:"staticDir"`
	HealthCheck HealthCheckConfig `json:"healthCheck"`
	Session     SessionConfig     `json:"session"`
}

// HealthCheckConfig contains health probing settings.
type HealthCheckConfig struct {
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
	Path     string        `json:"path"`
}

// SessionConfig contains sticky-session settings.
type SessionConfig struct {
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
}

// ServerAddress is one entry of the servers file.
type ServerAddress struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:   string(RoundRobin),
		Port:        8080,
		ServersFile: "servers.json",
		StaticDir:   "static",
		HealthCheck: HealthCheckConfig{
			Interval: 30 * time.Second,
			Timeout:  5 * time.Second,
			Path:     "/health",
		},
		Session: SessionConfig{
			TTL:             time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid listen port: %d", c.Port)
	}
	if _, err := ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if c.HealthCheck.Interval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}
	if c.HealthCheck.Timeout <= 0 {
		return fmt.Errorf("health check timeout must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	return nil
}

// LoadServers reads the backend pool definition from a JSON file. The file is
// an array of {host, port} objects; duplicate host:port pairs collapse into
// one entry and an empty pool is an error.
func LoadServers(filename string) ([]ServerAddress, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read servers file: %w", err)
	}

	var servers []ServerAddress
	if err := json.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("failed to parse servers file: %w", err)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("servers file %s defines no backends", filename)
	}

	seen := make(map[string]bool, len(servers))
	deduped := make([]ServerAddress, 0, len(servers))
	for _, server := range servers {
		if server.Host == "" {
			return nil, fmt.Errorf("backend host cannot be empty")
		}
		if server.Port <= 0 || server.Port > 65535 {
			return nil, fmt.Errorf("invalid backend port: %d", server.Port)
		}
		key := BackendKey(server.Host, server.Port)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, server)
	}

	return deduped, nil
}
