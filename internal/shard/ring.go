// Package shard implements the consistent-hash shard ring and
// replica-set selection described by spec.md §1 as scaffolding for a
// future multi-node cluster; the write path does not consult it.
//
// Per spec.md §9's REDESIGN FLAG, the ring is a sorted sequence of
// (hash, node) pairs searched directly with sort.Search — not a
// synthetic probe object constructed per lookup, as the original
// implementation this was distilled from did.
package shard

import (
	"hash/fnv"
	"sort"
	"strconv"
)

// virtualNodesPerNode controls how many ring positions each physical
// node occupies, smoothing key distribution across nodes of a small
// cluster.
const virtualNodesPerNode = 100

type ringEntry struct {
	hash uint64
	node string
}

// Ring is a consistent-hash ring over a set of node identifiers.
type Ring struct {
	entries []ringEntry
	nodes   map[string]bool
}

func NewRing() *Ring {
	return &Ring{nodes: make(map[string]bool)}
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// AddNode inserts node's virtual positions into the ring, keeping
// entries sorted by hash so lookups can binary-search directly.
func (r *Ring) AddNode(node string) {
	if r.nodes[node] {
		return
	}
	r.nodes[node] = true

	for i := 0; i < virtualNodesPerNode; i++ {
		h := hashString(node + "#" + strconv.Itoa(i))
		r.entries = append(r.entries, ringEntry{hash: h, node: node})
	}
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].hash < r.entries[j].hash })
}

// RemoveNode drops every virtual position belonging to node.
func (r *Ring) RemoveNode(node string) {
	if !r.nodes[node] {
		return
	}
	delete(r.nodes, node)

	out := r.entries[:0]
	for _, e := range r.entries {
		if e.node != node {
			out = append(out, e)
		}
	}
	r.entries = out
}

// Nodes returns the set of physical nodes currently on the ring.
func (r *Ring) Nodes() []string {
	out := make([]string, 0, len(r.nodes))
	for n := range r.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Locate returns the node owning key: the first ring entry at or past
// key's hash, wrapping to the first entry if key's hash exceeds every
// entry. Searches the sorted entries directly with sort.Search — no
// synthetic probe node is built to perform the search.
func (r *Ring) Locate(key string) (string, bool) {
	if len(r.entries) == 0 {
		return "", false
	}

	h := hashString(key)
	idx := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].hash >= h })
	if idx == len(r.entries) {
		idx = 0
	}
	return r.entries[idx].node, true
}

// LocateReplicas returns up to n distinct physical nodes starting from
// key's owner and walking the ring forward, for replication-factor
// replica placement.
func (r *Ring) LocateReplicas(key string, n int) []string {
	if len(r.entries) == 0 || n <= 0 {
		return nil
	}

	h := hashString(key)
	start := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].hash >= h })

	seen := make(map[string]bool, n)
	var out []string
	for i := 0; i < len(r.entries) && len(out) < n; i++ {
		e := r.entries[(start+i)%len(r.entries)]
		if seen[e.node] {
			continue
		}
		seen[e.node] = true
		out = append(out, e.node)
	}
	return out
}

// Manager pairs a Ring with this node's identity and a fixed
// replication factor, mirroring the source's ShardManager: callers
// ask "who owns this key" or "am I responsible for it" without
// re-threading the replication factor through every call site.
type Manager struct {
	selfID            string
	replicationFactor int
	ring              *Ring
}

// NewManager creates a Manager whose ring already contains selfID.
func NewManager(selfID string, replicationFactor int) *Manager {
	ring := NewRing()
	ring.AddNode(selfID)
	return &Manager{selfID: selfID, replicationFactor: replicationFactor, ring: ring}
}

func (m *Manager) AddNode(node string)    { m.ring.AddNode(node) }
func (m *Manager) RemoveNode(node string) { m.ring.RemoveNode(node) }
func (m *Manager) Nodes() []string        { return m.ring.Nodes() }

// PrimaryNode returns the node a key hashes to, falling back to
// selfID if the ring is empty (it never should be: selfID is always
// present).
func (m *Manager) PrimaryNode(key string) string {
	if node, ok := m.ring.Locate(key); ok {
		return node
	}
	return m.selfID
}

// ReplicaNodes returns up to the configured replication factor of
// distinct nodes responsible for key, primary first.
func (m *Manager) ReplicaNodes(key string) []string {
	return m.ring.LocateReplicas(key, m.replicationFactor)
}

// IsResponsibleFor reports whether this node is one of key's replicas.
func (m *Manager) IsResponsibleFor(key string) bool {
	for _, n := range m.ReplicaNodes(key) {
		if n == m.selfID {
			return true
		}
	}
	return false
}

// IsPrimaryFor reports whether this node is key's primary replica.
func (m *Manager) IsPrimaryFor(key string) bool {
	return m.PrimaryNode(key) == m.selfID
}
