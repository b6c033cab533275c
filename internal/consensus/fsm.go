package consensus

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// command is the payload applied to the log: a single SQL statement
// string, carried as an opaque command (spec.md §4.6: "the Coordinator
// ... submits the SQL string as an opaque command to the Consensus
// Log").
type command struct {
	SQL string `json:"sql"`
}

// fsm bridges hashicorp/raft's commit stream to the single apply
// callback installed by the coordinator. Apply is invoked once per
// committed entry in index order, after the entry is committed, and
// never before the previous entry's Apply has returned — which is
// exactly the ordering raft.Raft guarantees for FSM.Apply calls.
type fsm struct {
	mu       sync.RWMutex
	onCommit func(sql string) interface{}
}

func newFSM() *fsm {
	return &fsm{}
}

// setApplyCallback installs the sole handler invoked for every
// committed command. Its return value becomes the Apply future's
// Response(), so Propose's caller can recover the executor's actual
// result instead of re-deriving it.
func (f *fsm) setApplyCallback(fn func(sql string) interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCommit = fn
}

// Apply implements raft.FSM.
func (f *fsm) Apply(log *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("consensus: decode command: %w", err)
	}

	f.mu.RLock()
	cb := f.onCommit
	f.mu.RUnlock()

	if cb != nil {
		return cb(cmd.SQL)
	}
	return nil
}

// Snapshot implements raft.FSM. The applied SQL log is the system of
// record; the FSM itself carries no additional state to snapshot
// beyond what raft already persists in its log/stable stores, so the
// snapshot is an empty placeholder kept only to satisfy the interface
// and let raft truncate its own log after a snapshot point.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	return emptySnapshot{}, nil
}

// Restore implements raft.FSM.
func (f *fsm) Restore(rc io.ReadCloser) error {
	return rc.Close()
}

type emptySnapshot struct{}

func (emptySnapshot) Persist(sink raft.SnapshotSink) error {
	return sink.Close()
}

func (emptySnapshot) Release() {}
