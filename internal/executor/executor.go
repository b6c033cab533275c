// Package executor implements the Query Executor: the single entry
// point that interprets a parsed Plan against the Storage Engine and
// Index Manager, choosing an index when one covers the WHERE clause.
package executor

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"distdb/internal/errs"
	"distdb/internal/index"
	"distdb/internal/sqlparse"
	"distdb/internal/storage"
	"distdb/internal/types"
)

// KeyColumn is the reserved attribute under which a row's storage key
// is exposed in SELECT results.
const KeyColumn = "_key"

// Result is the outward-facing response to one executed statement.
type Result struct {
	Status       string
	Message      string
	Rows         []types.Row
	RowCount     int
	RowsAffected int
	InsertedKey  string
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Executor serializes every statement under one lock, so the storage
// engine's own lock is never contended internally by a multi-step
// operation (UPDATE/DELETE/CREATE INDEX back-fill).
type Executor struct {
	mu      sync.Mutex
	storage *storage.Engine
	indexes *index.Manager

	// newRowID mints INSERT's row identifier; overridable in tests.
	newRowID func() string
}

func New(storageEngine *storage.Engine, indexManager *index.Manager) *Executor {
	return &Executor{
		storage:  storageEngine,
		indexes:  indexManager,
		newRowID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Execute dispatches plan and returns its result. Every failure —
// parse-level, schema, and storage errors alike, including a
// durable-write failure — is carried in the Result with StatusError
// so a coordinator can render it as the external Result object
// (spec.md §6); the returned Go error is always nil.
func (e *Executor) Execute(plan sqlparse.Plan) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch plan.Kind {
	case sqlparse.KindCreateTable:
		return e.createTable(plan)
	case sqlparse.KindDropTable:
		return e.dropTable(plan)
	case sqlparse.KindCreateIndex:
		return e.createIndex(plan)
	case sqlparse.KindDropIndex:
		return e.dropIndex(plan)
	case sqlparse.KindInsert:
		return e.insert(plan)
	case sqlparse.KindSelect:
		return e.selectRows(plan)
	case sqlparse.KindUpdate:
		return e.update(plan)
	case sqlparse.KindDelete:
		return e.delete(plan)
	default:
		return errResult(&errs.UnsupportedStatementError{Statement: string(plan.Kind)}), nil
	}
}

func errResult(err error) Result {
	return Result{Status: StatusError, Message: err.Error()}
}

func (e *Executor) createTable(plan sqlparse.Plan) (Result, error) {
	if err := e.storage.CreateTable(plan.Table, plan.Schema); err != nil {
		return errResult(err), nil
	}
	return Result{Status: StatusSuccess}, nil
}

func (e *Executor) dropTable(plan sqlparse.Plan) (Result, error) {
	if err := e.storage.DropTable(plan.Table); err != nil {
		return errResult(err), nil
	}
	e.indexes.DropTable(plan.Table)
	return Result{Status: StatusSuccess}, nil
}

func (e *Executor) createIndex(plan sqlparse.Plan) (Result, error) {
	if plan.IndexKind == sqlparse.IndexKindBTree && len(plan.IndexColumns) != 1 {
		return errResult(&errs.IndexKindInvalidError{Kind: "BTREE requires exactly one column"}), nil
	}
	if !e.storage.TableExists(plan.Table) {
		return errResult(&errs.NoSuchTableError{Table: plan.Table}), nil
	}

	var idx index.Index
	switch plan.IndexKind {
	case sqlparse.IndexKindHash:
		idx = index.NewHashIndex(plan.IndexName, plan.Table, plan.IndexColumns)
	case sqlparse.IndexKindBTree:
		idx = index.NewOrderedIndex(plan.IndexName, plan.Table, plan.IndexColumns[0])
	default:
		return errResult(&errs.IndexKindInvalidError{Kind: string(plan.IndexKind)}), nil
	}

	if err := e.indexes.Create(idx); err != nil {
		return errResult(err), nil
	}

	for rowID, row := range e.storage.Scan(plan.Table) {
		idx.Insert(row, rowID)
	}

	return Result{Status: StatusSuccess}, nil
}

func (e *Executor) dropIndex(plan sqlparse.Plan) (Result, error) {
	e.indexes.Drop(plan.Table, plan.IndexName)
	return Result{Status: StatusSuccess}, nil
}

func (e *Executor) insert(plan sqlparse.Plan) (Result, error) {
	row := types.Row{}
	for i, col := range plan.InsertColumns {
		row[col] = plan.InsertValues[i]
	}

	rowID := e.newRowID()
	if err := e.storage.Put(plan.Table, rowID, row); err != nil {
		return errResult(err), nil
	}
	e.indexes.InsertRow(plan.Table, rowID, row)

	return Result{Status: StatusSuccess, InsertedKey: rowID, RowCount: 1}, nil
}

func (e *Executor) selectRows(plan sqlparse.Plan) (Result, error) {
	if !e.storage.TableExists(plan.Table) {
		return errResult(&errs.NoSuchTableError{Table: plan.Table}), nil
	}

	candidates := e.candidateRowIDs(plan)

	rows := make([]types.Row, 0, len(candidates))
	for _, rowID := range candidates {
		row, ok := e.storage.Get(plan.Table, rowID)
		if !ok {
			continue
		}
		if !matches(row, plan.Conditions) {
			// The chosen index may be a partial-column covering index;
			// re-check the full WHERE to discard false positives.
			continue
		}

		projected := row.Clone()
		projected[KeyColumn] = types.String(rowID)
		rows = append(rows, projected)
	}

	applyOrderBy(rows, plan.OrderBy)

	if plan.HasLimit && plan.Limit < len(rows) {
		if plan.Limit < 0 {
			rows = nil
		} else {
			rows = rows[:plan.Limit]
		}
	}

	if !plan.Wildcard {
		rows = projectColumns(rows, plan.Columns)
	}

	return Result{Status: StatusSuccess, Rows: rows, RowCount: len(rows)}, nil
}

// candidateRowIDs obtains the initial candidate set for a SELECT: a
// full scan when there is no WHERE clause or no covering index, else
// the chosen index's lookup result.
func (e *Executor) candidateRowIDs(plan sqlparse.Plan) []string {
	if len(plan.Conditions) == 0 {
		return e.allRowIDs(plan.Table)
	}

	idx, ok := e.indexes.FindBest(plan.Table, plan.Conditions)
	if !ok {
		return e.allRowIDs(plan.Table)
	}
	// An index whose columns are not all bound by the WHERE clause
	// cannot derive its lookup key, so it cannot supply candidates.
	for _, c := range idx.Columns() {
		if _, bound := plan.Conditions[c]; !bound {
			return e.allRowIDs(plan.Table)
		}
	}
	return idx.Lookup(plan.Conditions)
}

func (e *Executor) allRowIDs(table string) []string {
	scanned := e.storage.Scan(table)
	ids := make([]string, 0, len(scanned))
	for id := range scanned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// matches reports whether row satisfies every equality condition.
func matches(row types.Row, conditions map[string]types.Value) bool {
	for col, want := range conditions {
		got, ok := row[col]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// applyOrderBy honors a multi-key ORDER BY by iterating the sort keys
// in reverse order and performing a stable sort per key, so that the
// first-listed (major) key takes precedence over later (minor) ones.
func applyOrderBy(rows []types.Row, keys []sqlparse.OrderKey) {
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		sort.SliceStable(rows, func(a, b int) bool {
			av, aok := rows[a][key.Column]
			bv, bok := rows[b][key.Column]
			if !aok || !bok {
				return false
			}
			cmp := av.Compare(bv)
			if key.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
}

func projectColumns(rows []types.Row, columns []string) []types.Row {
	out := make([]types.Row, len(rows))
	for i, row := range rows {
		projected := types.Row{}
		for _, col := range columns {
			if v, ok := row[col]; ok {
				projected[col] = v
			}
		}
		if v, ok := row[KeyColumn]; ok {
			projected[KeyColumn] = v
		}
		out[i] = projected
	}
	return out
}

func (e *Executor) update(plan sqlparse.Plan) (Result, error) {
	if !e.storage.TableExists(plan.Table) {
		return errResult(&errs.NoSuchTableError{Table: plan.Table}), nil
	}

	affected := 0
	for rowID, row := range e.storage.Scan(plan.Table) {
		if !matches(row, plan.Conditions) {
			continue
		}

		e.indexes.DeleteRow(plan.Table, rowID, row)

		merged := row.Clone()
		for col, v := range plan.SetValues {
			merged[col] = v
		}

		if err := e.storage.Put(plan.Table, rowID, merged); err != nil {
			return errResult(err), nil
		}
		e.indexes.InsertRow(plan.Table, rowID, merged)
		affected++
	}

	return Result{Status: StatusSuccess, RowsAffected: affected}, nil
}

func (e *Executor) delete(plan sqlparse.Plan) (Result, error) {
	if !e.storage.TableExists(plan.Table) {
		return errResult(&errs.NoSuchTableError{Table: plan.Table}), nil
	}

	affected := 0
	for rowID, row := range e.storage.Scan(plan.Table) {
		if !matches(row, plan.Conditions) {
			continue
		}

		removed, err := e.storage.Delete(plan.Table, rowID)
		if err != nil {
			return errResult(err), nil
		}
		if removed {
			e.indexes.DeleteRow(plan.Table, rowID, row)
			affected++
		}
	}

	return Result{Status: StatusSuccess, RowsAffected: affected}, nil
}
