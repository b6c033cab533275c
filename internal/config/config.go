// Package config loads node configuration from DISTDB_-prefixed
// environment variables, with an optional TOML file overlay, via
// spf13/viper.
//
// Grounded on original_source/distdb/config.py's field set
// (Config.from_env), translated to viper's BindEnv/SetDefault idiom.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is one node's full runtime configuration.
type Config struct {
	NodeID string
	Host   string
	Port   int

	ClusterNodes      []string
	ReplicationFactor int

	DataDir          string
	WALDir           string
	SnapshotInterval int

	MaxBatchSize       int
	HeartbeatInterval  time.Duration
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration

	EnableAutoIndex bool
	MaxIndexMemory  int64
}

// Load reads configuration from environment variables (DISTDB_* via
// viper's automatic env binding) and, if path is non-empty, overlays a
// TOML file on top.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISTDB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("node_id", "node1")
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 5000)
	v.SetDefault("cluster_nodes", []string{})
	v.SetDefault("replication_factor", 3)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("wal_dir", "./wal")
	v.SetDefault("snapshot_interval", 1000)
	v.SetDefault("max_batch_size", 100)
	v.SetDefault("heartbeat_interval_ms", 500)
	v.SetDefault("election_timeout_min_ms", 1500)
	v.SetDefault("election_timeout_max_ms", 3000)
	v.SetDefault("enable_auto_index", true)
	v.SetDefault("max_index_memory", 100*1024*1024)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	clusterNodes := v.GetStringSlice("cluster_nodes")
	if raw := v.GetString("cluster_nodes"); len(clusterNodes) == 0 && raw != "" {
		clusterNodes = splitAndTrim(raw, ",")
	}

	return Config{
		NodeID:             v.GetString("node_id"),
		Host:               v.GetString("host"),
		Port:               v.GetInt("port"),
		ClusterNodes:       clusterNodes,
		ReplicationFactor:  v.GetInt("replication_factor"),
		DataDir:            v.GetString("data_dir"),
		WALDir:             v.GetString("wal_dir"),
		SnapshotInterval:   v.GetInt("snapshot_interval"),
		MaxBatchSize:       v.GetInt("max_batch_size"),
		HeartbeatInterval:  time.Duration(v.GetInt("heartbeat_interval_ms")) * time.Millisecond,
		ElectionTimeoutMin: time.Duration(v.GetInt("election_timeout_min_ms")) * time.Millisecond,
		ElectionTimeoutMax: time.Duration(v.GetInt("election_timeout_max_ms")) * time.Millisecond,
		EnableAutoIndex:    v.GetBool("enable_auto_index"),
		MaxIndexMemory:     v.GetInt64("max_index_memory"),
	}, nil
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
