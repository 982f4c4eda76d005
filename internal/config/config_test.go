package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestValidateRejectsBadLieRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LieRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range lie_rate")
	}
}

func TestValidateRejectsZeroMaxInstances(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInstances = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_instances < 1")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeID = "node-a"
	cfg.LieMode = true
	cfg.LieRate = 0.25

	path := filepath.Join(t.TempDir(), "omnode.json")
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.NodeID != "node-a" || !loaded.LieMode || loaded.LieRate != 0.25 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestLoadFromFileMissingUnspecifiedFieldsKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	if err := os.WriteFile(path, []byte(`{"node_id":"partial-node"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.NodeID != "partial-node" {
		t.Fatalf("expected overridden node_id, got %q", cfg.NodeID)
	}
	if cfg.MaxInstances != DefaultConfig().MaxInstances {
		t.Fatalf("expected default max_instances to survive partial load, got %d", cfg.MaxInstances)
	}
}

func TestBindAddress(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: 9000}
	if got := cfg.BindAddress(); got != "0.0.0.0:9000" {
		t.Fatalf("BindAddress() = %q", got)
	}
}
