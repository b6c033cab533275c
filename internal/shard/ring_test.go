package shard

import "testing"

func TestLocateRequiresNodes(t *testing.T) {
	r := NewRing()
	if _, ok := r.Locate("foo"); ok {
		t.Fatalf("Locate on empty ring should report ok=false")
	}
}

func TestLocateIsStableForSameKey(t *testing.T) {
	r := NewRing()
	r.AddNode("node-a")
	r.AddNode("node-b")
	r.AddNode("node-c")

	first, ok := r.Locate("customer-42")
	if !ok {
		t.Fatalf("expected a node")
	}
	for i := 0; i < 10; i++ {
		again, _ := r.Locate("customer-42")
		if again != first {
			t.Fatalf("Locate(%q) is not stable: got %q then %q", "customer-42", first, again)
		}
	}
}

func TestRemoveNodeOnlyRemapsItsOwnKeys(t *testing.T) {
	r := NewRing()
	r.AddNode("node-a")
	r.AddNode("node-b")
	r.AddNode("node-c")

	keys := []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8"}
	before := make(map[string]string, len(keys))
	for _, k := range keys {
		owner, _ := r.Locate(k)
		before[k] = owner
	}

	r.RemoveNode("node-b")

	for _, k := range keys {
		owner, ok := r.Locate(k)
		if !ok {
			t.Fatalf("Locate(%q) after removal: no node", k)
		}
		if owner == "node-b" {
			t.Fatalf("key %q still maps to removed node-b", k)
		}
		if before[k] != "node-b" && before[k] != owner {
			t.Fatalf("key %q remapped from %q to %q despite its owner not being removed", k, before[k], owner)
		}
	}
}

func TestLocateReplicasReturnsDistinctNodes(t *testing.T) {
	r := NewRing()
	r.AddNode("node-a")
	r.AddNode("node-b")
	r.AddNode("node-c")

	replicas := r.LocateReplicas("order-7", 3)
	if len(replicas) != 3 {
		t.Fatalf("len(replicas) = %d, want 3", len(replicas))
	}
	seen := map[string]bool{}
	for _, n := range replicas {
		if seen[n] {
			t.Fatalf("duplicate node %q in replica set", n)
		}
		seen[n] = true
	}
}

func TestLocateReplicasCapsAtAvailableNodes(t *testing.T) {
	r := NewRing()
	r.AddNode("only-node")

	replicas := r.LocateReplicas("key", 3)
	if len(replicas) != 1 {
		t.Fatalf("len(replicas) = %d, want 1", len(replicas))
	}
}

func TestNodesSortedAndDeduplicated(t *testing.T) {
	r := NewRing()
	r.AddNode("b")
	r.AddNode("a")
	r.AddNode("a")

	nodes := r.Nodes()
	if len(nodes) != 2 || nodes[0] != "a" || nodes[1] != "b" {
		t.Fatalf("Nodes() = %v, want [a b]", nodes)
	}
}

func TestManagerReplicaNodesHonorsReplicationFactor(t *testing.T) {
	m := NewManager("node-a", 2)
	m.AddNode("node-b")
	m.AddNode("node-c")

	replicas := m.ReplicaNodes("order-1")
	if len(replicas) != 2 {
		t.Fatalf("len(replicas) = %d, want 2", len(replicas))
	}
}

func TestManagerIsResponsibleForMatchesReplicaNodes(t *testing.T) {
	m := NewManager("node-a", 3)
	m.AddNode("node-b")
	m.AddNode("node-c")

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		replicas := m.ReplicaNodes(key)
		want := false
		for _, n := range replicas {
			if n == "node-a" {
				want = true
			}
		}
		if got := m.IsResponsibleFor(key); got != want {
			t.Fatalf("IsResponsibleFor(%q) = %v, want %v (replicas=%v)", key, got, want, replicas)
		}
	}
}

func TestManagerIsPrimaryForMatchesPrimaryNode(t *testing.T) {
	m := NewManager("node-a", 1)
	m.AddNode("node-b")

	for _, key := range []string{"x", "y", "z"} {
		if m.IsPrimaryFor(key) != (m.PrimaryNode(key) == "node-a") {
			t.Fatalf("IsPrimaryFor(%q) inconsistent with PrimaryNode", key)
		}
	}
}
