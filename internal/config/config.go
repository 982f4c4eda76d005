// Package config holds node configuration: identity, transport ports,
// seed peers, and the timers and fault-injection knobs the consensus
// engine and event loop read at startup.
//
// Structurally this is the teacher's Config ported field-for-field
// (DefaultConfig / Validate / LoadFromFile / SaveToFile over
// encoding/json), with the key-value-store-specific fields
// (replication factor, read/write quorum, virtual nodes, data
// directory, compaction) replaced by the OM node's own knobs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds all configuration for an OM peer node.
type Config struct {
	// Node identity
	NodeID string `json:"node_id"`
	Host   string `json:"host"`
	Port   int    `json:"port"` // 0 means bind to an ephemeral port

	// Console
	ConsolePort int `json:"console_port"` // 0 means bind to an ephemeral port

	// Admin HTTP introspection surface
	AdminAddress string `json:"admin_address"`

	// Cluster configuration
	SeedNodes []string `json:"seed_nodes"` // additional seeds beyond the built-in well-known list

	// Timers
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
	GossipTTL         time.Duration `json:"gossip_ttl"`
	PeerTTL           time.Duration `json:"peer_ttl"`
	StallTimeout      time.Duration `json:"stall_timeout"`
	InstanceGCGrace   time.Duration `json:"instance_gc_grace"`
	MaxInstances      int           `json:"max_instances"`

	// Fault injection
	LieMode bool    `json:"lie_mode"`
	LieRate float64 `json:"lie_rate"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		NodeID:            hostname,
		Host:              "0.0.0.0",
		Port:              0,
		ConsolePort:       0,
		AdminAddress:      "127.0.0.1:0",
		SeedNodes:         []string{},
		HeartbeatInterval: 60 * time.Second,
		CleanupInterval:   5 * time.Second,
		GossipTTL:         300 * time.Second,
		PeerTTL:           120 * time.Second,
		StallTimeout:      30 * time.Second,
		InstanceGCGrace:   300 * time.Second,
		MaxInstances:      10000,
		LieMode:           false,
		LieRate:           1.0,
	}
}

// Validate checks that a configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ConsolePort < 0 || c.ConsolePort > 65535 {
		return fmt.Errorf("invalid console_port: %d", c.ConsolePort)
	}
	if c.LieRate < 0 || c.LieRate > 1 {
		return fmt.Errorf("lie_rate must be between 0 and 1")
	}
	if c.MaxInstances < 1 {
		return fmt.Errorf("max_instances must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a JSON file, starting from
// DefaultConfig so unspecified fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// BindAddress returns the UDP listen address for the peer socket.
func (c *Config) BindAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
