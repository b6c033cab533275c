// Package index implements the database's secondary access paths: a
// hash index (equality-only, multi-column) and an ordered index
// (single-column, sorted, supports range scans), plus the Index
// Manager that tracks which indexes exist per table and picks the
// best one for a set of WHERE conditions.
package index

import (
	"sort"
	"strings"
	"sync"

	"distdb/internal/errs"
	"distdb/internal/types"
)

// Kind identifies which backing structure an index uses.
type Kind string

const (
	KindHash    Kind = "HASH"
	KindOrdered Kind = "BTREE"
)

// Index is the common surface both kinds implement.
type Index interface {
	Name() string
	Table() string
	Columns() []string
	Kind() Kind
	Insert(row types.Row, rowID string)
	Delete(row types.Row, rowID string)
	// Lookup returns candidate row-ids for an equality conditions map
	// restricted to this index's columns.
	Lookup(conditions map[string]types.Value) []string
	// Range returns candidate row-ids for lo <= col <= hi (either bound
	// optional). Returns an *errs.RangeNotSupportedError for a Hash
	// index.
	Range(lo, hi *types.Value) ([]string, error)
}

// tupleKey derives the index's composite key from a row, in column
// order. A missing column contributes a null Value to the tuple —
// rows entirely missing every indexed column still produce a (useless
// but harmless) all-null tuple entry.
func tupleKey(cols []string, row types.Row) []types.Value {
	out := make([]types.Value, len(cols))
	for i, c := range cols {
		if v, ok := row[c]; ok {
			out[i] = v
		} else {
			out[i] = types.Null()
		}
	}
	return out
}

func tupleString(vals []types.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\x1f")
}

// HashIndex maps the tuple formed from its indexed columns to the set
// of row-ids producing that tuple. Equality lookup only.
type HashIndex struct {
	name    string
	table   string
	columns []string

	mu      sync.RWMutex
	buckets map[string]rowSet
}

func NewHashIndex(name, table string, columns []string) *HashIndex {
	return &HashIndex{
		name:    name,
		table:   table,
		columns: append([]string(nil), columns...),
		buckets: make(map[string]rowSet),
	}
}

func (h *HashIndex) Name() string      { return h.name }
func (h *HashIndex) Table() string     { return h.table }
func (h *HashIndex) Columns() []string { return h.columns }
func (h *HashIndex) Kind() Kind        { return KindHash }

func (h *HashIndex) Insert(row types.Row, rowID string) {
	key := tupleString(tupleKey(h.columns, row))
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.buckets[key]
	if !ok {
		set = make(rowSet)
		h.buckets[key] = set
	}
	set.add(rowID)
}

func (h *HashIndex) Delete(row types.Row, rowID string) {
	key := tupleString(tupleKey(h.columns, row))
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.buckets[key]
	if !ok {
		return
	}
	set.remove(rowID)
	if len(set) == 0 {
		delete(h.buckets, key)
	}
}

func (h *HashIndex) Lookup(conditions map[string]types.Value) []string {
	vals := make([]types.Value, len(h.columns))
	for i, c := range h.columns {
		v, ok := conditions[c]
		if !ok {
			return nil
		}
		vals[i] = v
	}

	key := tupleString(vals)
	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.buckets[key]
	if !ok {
		return nil
	}
	return set.ids()
}

func (h *HashIndex) Range(lo, hi *types.Value) ([]string, error) {
	return nil, &errs.RangeNotSupportedError{IndexName: h.name}
}

// OrderedIndex is restricted to a single column and maintains its
// entries in sorted key order, supporting both equality lookup and
// inclusive range scans.
type OrderedIndex struct {
	name   string
	table  string
	column string
	tree   *bTree
}

// NewOrderedIndex constructs a single-column ordered index. Callers
// must reject construction requests naming more than one column
// before calling this (spec.md §4.3: "construction with more than one
// column is rejected").
func NewOrderedIndex(name, table, column string) *OrderedIndex {
	return &OrderedIndex{name: name, table: table, column: column, tree: newBTree()}
}

func (o *OrderedIndex) Name() string      { return o.name }
func (o *OrderedIndex) Table() string     { return o.table }
func (o *OrderedIndex) Columns() []string { return []string{o.column} }
func (o *OrderedIndex) Kind() Kind        { return KindOrdered }

func (o *OrderedIndex) Insert(row types.Row, rowID string) {
	v, ok := row[o.column]
	if !ok || v.IsNull() {
		return
	}
	o.tree.Insert(v, rowID)
}

func (o *OrderedIndex) Delete(row types.Row, rowID string) {
	v, ok := row[o.column]
	if !ok || v.IsNull() {
		return
	}
	o.tree.Remove(v, rowID)
}

func (o *OrderedIndex) Lookup(conditions map[string]types.Value) []string {
	v, ok := conditions[o.column]
	if !ok {
		return nil
	}
	ids, _ := o.tree.Get(v)
	return ids
}

func (o *OrderedIndex) Range(lo, hi *types.Value) ([]string, error) {
	seen := make(rowSet)
	o.tree.Range(lo, hi, func(_ types.Value, ids []string) {
		for _, id := range ids {
			seen.add(id)
		}
	})
	return seen.ids(), nil
}

// Manager holds a per-table registry of named indexes and scores them
// against a set of WHERE conditions to pick the best one.
type Manager struct {
	mu      sync.RWMutex
	byTable map[string]map[string]Index
}

func NewManager() *Manager {
	return &Manager{byTable: make(map[string]map[string]Index)}
}

// Create registers idx; fails with IndexExistsError if name is already
// taken on this table. Back-filling (scanning the table to populate
// idx) is the executor's responsibility.
func (m *Manager) Create(idx Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := idx.Table()
	indexes, ok := m.byTable[table]
	if !ok {
		indexes = make(map[string]Index)
		m.byTable[table] = indexes
	}
	if _, exists := indexes[idx.Name()]; exists {
		return &errs.IndexExistsError{Table: table, Name: idx.Name()}
	}
	indexes[idx.Name()] = idx
	return nil
}

// Drop removes name from table's registry; a no-op if absent.
func (m *Manager) Drop(table, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if indexes, ok := m.byTable[table]; ok {
		delete(indexes, name)
	}
}

// DropTable removes every index registered on table.
func (m *Manager) DropTable(table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTable, table)
}

// Get returns the named index on table, if any.
func (m *Manager) Get(table, name string) (Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	indexes, ok := m.byTable[table]
	if !ok {
		return nil, false
	}
	idx, ok := indexes[name]
	return idx, ok
}

// InsertRow applies row's insertion to every index registered on
// table.
func (m *Manager) InsertRow(table, rowID string, row types.Row) {
	m.mu.RLock()
	indexes := m.snapshotIndexes(table)
	m.mu.RUnlock()

	for _, idx := range indexes {
		idx.Insert(row, rowID)
	}
}

// DeleteRow applies row's removal to every index registered on table.
func (m *Manager) DeleteRow(table, rowID string, row types.Row) {
	m.mu.RLock()
	indexes := m.snapshotIndexes(table)
	m.mu.RUnlock()

	for _, idx := range indexes {
		idx.Delete(row, rowID)
	}
}

func (m *Manager) snapshotIndexes(table string) []Index {
	indexes, ok := m.byTable[table]
	if !ok {
		return nil
	}
	out := make([]Index, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, idx)
	}
	// Deterministic order keeps find_best_index's tie-break stable.
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// FindBest scores every index on table by how many of its columns
// appear in conditions and returns the highest-scoring index with
// score >= 1. Ties break by index name: the name that sorts first
// wins (deterministic, not meaningful).
func (m *Manager) FindBest(table string, conditions map[string]types.Value) (Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	indexes := m.snapshotIndexes(table)
	var best Index
	bestScore := 0
	for _, idx := range indexes {
		score := 0
		for _, c := range idx.Columns() {
			if _, ok := conditions[c]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = idx
		}
	}
	if bestScore < 1 {
		return nil, false
	}
	return best, true
}
