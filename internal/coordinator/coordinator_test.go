package coordinator

import (
	"path/filepath"
	"testing"
	"time"

	"distdb/internal/config"
	"distdb/internal/executor"
)

func newTestCoordinator(t *testing.T, port int) *Coordinator {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		NodeID:  "node-1",
		Host:    "127.0.0.1",
		Port:    port,
		DataDir: dir,
		WALDir:  filepath.Join(dir, "wal"),
	}
	c, err := New(cfg, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Start()
	t.Cleanup(func() { c.Stop() })

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !c.Status().IsLeader {
		time.Sleep(20 * time.Millisecond)
	}
	if !c.Status().IsLeader {
		t.Fatalf("node never became leader")
	}
	return c
}

func TestExecuteRunsWriteExactlyOnce(t *testing.T) {
	c := newTestCoordinator(t, 18801)

	if _, err := c.Execute("CREATE TABLE users (id INTEGER, name TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE: %v", err)
	}
	if _, err := c.Execute("INSERT INTO users (id, name) VALUES (1, 'Alice')"); err != nil {
		t.Fatalf("INSERT: %v", err)
	}

	res, err := c.Execute("SELECT * FROM users WHERE id = 1")
	if err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if res.Status != executor.StatusSuccess {
		t.Fatalf("status = %v, want success", res.Status)
	}
	if res.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1 (no double-apply)", res.RowCount)
	}
}

func TestStatusReportsTablesAndLeadership(t *testing.T) {
	c := newTestCoordinator(t, 18802)

	if _, err := c.Execute("CREATE TABLE orders (id INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE: %v", err)
	}

	status := c.Status()
	if !status.IsLeader {
		t.Fatalf("expected leader")
	}
	if len(status.Tables) != 1 || status.Tables[0] != "orders" {
		t.Fatalf("Tables = %v, want [orders]", status.Tables)
	}
	if status.NodeID != "node-1" {
		t.Fatalf("NodeID = %q, want node-1", status.NodeID)
	}
}

func TestReplicaNodesForReturnsSelfOnSingleNode(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		NodeID:            "node-1",
		Host:              "127.0.0.1",
		Port:              18803,
		DataDir:           dir,
		WALDir:            filepath.Join(dir, "wal"),
		ReplicationFactor: 2,
	}
	c, err := New(cfg, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Start()
	t.Cleanup(func() { c.Stop() })

	// Replication factor of 2 on a single-node ring still caps at the
	// one node actually present.
	replicas := c.ReplicaNodesFor("any-key")
	if len(replicas) != 1 || replicas[0] != "node-1" {
		t.Fatalf("ReplicaNodesFor = %v, want [node-1]", replicas)
	}
}
