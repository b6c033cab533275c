package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISTDB_NODE_ID", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != "node1" {
		t.Fatalf("NodeID = %q, want node1", cfg.NodeID)
	}
	if cfg.ReplicationFactor != 3 {
		t.Fatalf("ReplicationFactor = %d, want 3", cfg.ReplicationFactor)
	}
	if cfg.HeartbeatInterval != 500*time.Millisecond {
		t.Fatalf("HeartbeatInterval = %v, want 500ms", cfg.HeartbeatInterval)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("DISTDB_NODE_ID", "node-7")
	t.Setenv("DISTDB_PORT", "6001")
	t.Setenv("DISTDB_REPLICATION_FACTOR", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != "node-7" {
		t.Fatalf("NodeID = %q, want node-7", cfg.NodeID)
	}
	if cfg.Port != 6001 {
		t.Fatalf("Port = %d, want 6001", cfg.Port)
	}
	if cfg.ReplicationFactor != 5 {
		t.Fatalf("ReplicationFactor = %d, want 5", cfg.ReplicationFactor)
	}
}
