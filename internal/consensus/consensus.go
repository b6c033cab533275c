// Package consensus implements the Consensus Log (spec.md §4.6) as a
// thin ReplicationManager façade over hashicorp/raft: a leader-elected
// replicated log that gates writes behind leadership and invokes an
// apply callback once per committed entry, in index order.
//
// The minimum viable configuration is a single-node, self-bootstrapped
// cluster that commits without peer acknowledgement — raft.Raft
// already implements that as the trivial case of its general
// algorithm, so no separate "auto-commit" code path is needed; a
// single-node raft.Configuration simply has no followers to wait on.
package consensus

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"distdb/internal/errs"
)

// Config configures one node's consensus participation.
type Config struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	Bootstrap bool // true to self-bootstrap a single-node cluster
}

// ReplicationManager is the executor-facing façade described by
// spec.md §4.6: Propose/IsLeader/SetApplyCallback/Shutdown.
type ReplicationManager struct {
	raft *raft.Raft
	fsm  *fsm
}

// New builds and starts a ReplicationManager. When cfg.Bootstrap is
// true, it bootstraps a single-node cluster immediately, which becomes
// leader as soon as its first election timeout fires (spec.md §4.6:
// "A sole node ... becomes leader immediately after its first election
// timeout").
func New(cfg Config) (*ReplicationManager, error) {
	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	theFSM := newFSM()

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("consensus: resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("consensus: create transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("consensus: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("consensus: create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("consensus: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftConfig, theFSM, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("consensus: start raft: %w", err)
	}

	if cfg.Bootstrap {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{
				{ID: raftConfig.LocalID, Address: transport.LocalAddr()},
			},
		})
		if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
			return nil, fmt.Errorf("consensus: bootstrap cluster: %w", err)
		}
	}

	return &ReplicationManager{raft: r, fsm: theFSM}, nil
}

// SetApplyCallback installs the sole handler invoked for every
// committed command, on every node including the leader. Its return
// value is surfaced back to whichever node proposed the command, as
// Propose's return value.
func (m *ReplicationManager) SetApplyCallback(fn func(sql string) interface{}) {
	m.fsm.setApplyCallback(fn)
}

// Propose submits sql as a new command. It refuses immediately if this
// node is not the leader (spec.md §4.6: "append(command) on a
// non-leader returns refused") and otherwise blocks until the entry is
// committed and applied, returning whatever the apply callback
// returned for this entry.
func (m *ReplicationManager) Propose(sql string) (interface{}, error) {
	if m.raft.State() != raft.Leader {
		return nil, &errs.NotLeaderError{LeaderHint: string(m.raft.Leader())}
	}

	data, err := json.Marshal(command{SQL: sql})
	if err != nil {
		return nil, &errs.ReplicationFailedError{Reason: err.Error()}
	}

	future := m.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return nil, &errs.ReplicationFailedError{Reason: err.Error()}
	}
	return future.Response(), nil
}

// IsLeader reports whether this node currently holds leadership.
func (m *ReplicationManager) IsLeader() bool {
	return m.raft.State() == raft.Leader
}

// LeaderHint returns the address of the current leader, if known.
func (m *ReplicationManager) LeaderHint() string {
	return string(m.raft.Leader())
}

// AddVoter admits a new node to the cluster; callers needing true
// multi-node replication call this on the current leader (spec.md's
// contract is satisfied by either an auto-commit single node or full
// multi-node Raft — this is the extension point for the latter).
func (m *ReplicationManager) AddVoter(nodeID, addr string) error {
	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 0)
	return future.Error()
}

// Shutdown cancels pending election/heartbeat timers (raft's own
// internal equivalent) and is idempotent.
func (m *ReplicationManager) Shutdown() error {
	return m.raft.Shutdown().Error()
}
