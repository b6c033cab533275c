// Package storage implements the Storage Engine: the durable
// table/schema registry that every other subsystem builds on. A
// single engine-wide mutex serializes every public operation; crash
// recovery replays the WAL on top of the latest snapshot, and a
// mutation counter drives periodic synchronous snapshots.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"distdb/internal/errs"
	"distdb/internal/types"
	"distdb/internal/walog"
)

const snapshotFileName = "snapshot.json"

// snapshotDoc is the self-describing blob written to snapshot.json.
type snapshotDoc struct {
	Tables    map[string]map[string]types.Row `json:"tables"`
	Schemas   map[string]types.Schema         `json:"schemas"`
	Timestamp time.Time                       `json:"timestamp"`
}

// walPayload is the inner, JSON-encoded shape of a walog.Record's
// Value field for PUT/CREATE_TABLE records.
type walPayload struct {
	Row    types.Row     `json:"row,omitempty"`
	Schema types.Schema  `json:"schema,omitempty"`
}

// Engine is the durable table/row store described by spec.md §4.2.
type Engine struct {
	mu sync.Mutex

	dataDir string
	wal     *walog.WAL

	schemas map[string]types.Schema
	tables  map[string]map[string]types.Row

	snapshotThreshold int
	mutationsSince    int
}

// Options configures snapshot cadence and on-disk locations.
type Options struct {
	DataDir           string
	WALDir            string
	SnapshotThreshold int
}

// Open boots the engine: loads the latest snapshot (if any), replays
// the WAL on top of it without truncating, and opens the WAL for
// further appends.
func Open(opts Options) (*Engine, error) {
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	e := &Engine{
		dataDir:           opts.DataDir,
		schemas:           make(map[string]types.Schema),
		tables:            make(map[string]map[string]types.Row),
		snapshotThreshold: opts.SnapshotThreshold,
	}

	if err := e.loadSnapshot(); err != nil {
		return nil, err
	}

	records, err := walog.ReadAll(opts.WALDir)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		e.applyRecord(rec)
	}

	w, err := walog.Open(opts.WALDir)
	if err != nil {
		return nil, err
	}
	e.wal = w

	return e, nil
}

func (e *Engine) applyRecord(rec walog.Record) {
	switch rec.Op {
	case walog.OpCreateTable:
		var p walPayload
		_ = json.Unmarshal(rec.Value, &p)
		e.schemas[rec.Table] = p.Schema
		if _, ok := e.tables[rec.Table]; !ok {
			e.tables[rec.Table] = make(map[string]types.Row)
		}
	case walog.OpDropTable:
		delete(e.schemas, rec.Table)
		delete(e.tables, rec.Table)
	case walog.OpPut:
		var p walPayload
		_ = json.Unmarshal(rec.Value, &p)
		if _, ok := e.tables[rec.Table]; !ok {
			e.tables[rec.Table] = make(map[string]types.Row)
		}
		e.tables[rec.Table][rec.Key] = p.Row
	case walog.OpDelete:
		if rows, ok := e.tables[rec.Table]; ok {
			delete(rows, rec.Key)
		}
	}
}

func (e *Engine) loadSnapshot() error {
	path := filepath.Join(e.dataDir, snapshotFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	if doc.Tables != nil {
		e.tables = doc.Tables
	}
	if doc.Schemas != nil {
		e.schemas = doc.Schemas
	}
	return nil
}

// CreateTable registers a new table with schema. Fails with
// TableExistsError if it already exists.
func (e *Engine) CreateTable(table string, schema types.Schema) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.schemas[table]; ok {
		return &errs.TableExistsError{Table: table}
	}

	payload, _ := json.Marshal(walPayload{Schema: schema})
	if err := e.wal.Append(walog.Record{
		Timestamp: now(),
		Op:        walog.OpCreateTable,
		Table:     table,
		Value:     payload,
	}); err != nil {
		return err
	}

	e.schemas[table] = schema
	e.tables[table] = make(map[string]types.Row)
	return e.afterMutation()
}

// DropTable removes table's schema and rows. Fails with
// NoSuchTableError if it does not exist. Index cleanup is the Index
// Manager's responsibility, invoked by the executor.
func (e *Engine) DropTable(table string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.schemas[table]; !ok {
		return &errs.NoSuchTableError{Table: table}
	}

	if err := e.wal.Append(walog.Record{
		Timestamp: now(),
		Op:        walog.OpDropTable,
		Table:     table,
	}); err != nil {
		return err
	}

	delete(e.schemas, table)
	delete(e.tables, table)
	return e.afterMutation()
}

// Put writes row under key in table. Every column of row must exist
// in table's schema.
func (e *Engine) Put(table, key string, row types.Row) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	schema, ok := e.schemas[table]
	if !ok {
		return &errs.NoSuchTableError{Table: table}
	}
	for col := range row {
		if _, ok := schema[col]; !ok {
			return &errs.UnknownColumnError{Table: table, Column: col}
		}
	}

	payload, _ := json.Marshal(walPayload{Row: row})
	if err := e.wal.Append(walog.Record{
		Timestamp: now(),
		Op:        walog.OpPut,
		Table:     table,
		Key:       key,
		Value:     payload,
	}); err != nil {
		return err
	}

	e.tables[table][key] = row
	return e.afterMutation()
}

// Get returns table's row at key, if present.
func (e *Engine) Get(table, key string) (types.Row, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, ok := e.tables[table]
	if !ok {
		return nil, false
	}
	row, ok := rows[key]
	return row, ok
}

// Delete removes table's row at key, reporting whether it was
// present.
func (e *Engine) Delete(table, key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, ok := e.tables[table]
	if !ok {
		return false, nil
	}
	if _, present := rows[key]; !present {
		return false, nil
	}

	if err := e.wal.Append(walog.Record{
		Timestamp: now(),
		Op:        walog.OpDelete,
		Table:     table,
		Key:       key,
	}); err != nil {
		return false, err
	}

	delete(rows, key)
	if err := e.afterMutation(); err != nil {
		return true, err
	}
	return true, nil
}

// Scan returns every (key, row) pair of table; empty if table is
// absent.
func (e *Engine) Scan(table string) map[string]types.Row {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, ok := e.tables[table]
	if !ok {
		return nil
	}
	out := make(map[string]types.Row, len(rows))
	for k, v := range rows {
		out[k] = v
	}
	return out
}

// Schema returns table's schema, if it exists.
func (e *Engine) Schema(table string) (types.Schema, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.schemas[table]
	return s, ok
}

// TableExists reports whether table is registered.
func (e *Engine) TableExists(table string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.schemas[table]
	return ok
}

// ListTables returns every registered table name, sorted.
func (e *Engine) ListTables() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.schemas))
	for name := range e.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) afterMutation() error {
	e.mutationsSince++
	if e.snapshotThreshold > 0 && e.mutationsSince >= e.snapshotThreshold {
		return e.snapshotLocked()
	}
	return nil
}

// Snapshot forces an immediate snapshot+truncate regardless of the
// mutation counter.
func (e *Engine) Snapshot() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// snapshotLocked writes a complete dump to a temp sibling file,
// fsyncs, atomically renames it over the canonical snapshot path, and
// only then truncates the WAL. If the rename fails the WAL is left
// intact and the next boot recovers from the old snapshot plus the
// full WAL.
func (e *Engine) snapshotLocked() error {
	doc := snapshotDoc{
		Tables:    e.tables,
		Schemas:   e.schemas,
		Timestamp: now(),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	path := filepath.Join(e.dataDir, snapshotFileName)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync snapshot temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	if err := e.wal.Truncate(); err != nil {
		return err
	}
	e.mutationsSince = 0
	return nil
}

// Close flushes a final snapshot and closes the WAL.
func (e *Engine) Close() error {
	e.mu.Lock()
	if err := e.snapshotLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	return e.wal.Close()
}

func now() time.Time { return time.Now() }
