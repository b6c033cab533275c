package executor

import (
	"fmt"
	"path/filepath"
	"testing"

	"distdb/internal/index"
	"distdb/internal/sqlparse"
	"distdb/internal/storage"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	dir := t.TempDir()
	eng, err := storage.Open(storage.Options{
		DataDir: dir,
		WALDir:  filepath.Join(dir, "wal"),
	})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	return New(eng, index.NewManager())
}

func mustParse(t *testing.T, sql string) sqlparse.Plan {
	t.Helper()
	plan, err := sqlparse.Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	return plan
}

func mustExec(t *testing.T, e *Executor, sql string) Result {
	t.Helper()
	res, err := e.Execute(mustParse(t, sql))
	if err != nil {
		t.Fatalf("Execute(%q): %v", sql, err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("Execute(%q) = %+v, want success", sql, res)
	}
	return res
}

// Scenario 1 (spec.md §8): basic insert + equality select.
func TestScenarioBasicInsertSelect(t *testing.T) {
	e := newTestExecutor(t)

	mustExec(t, e, "CREATE TABLE users (id INTEGER, name TEXT)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (2, 'Bob')")

	res := mustExec(t, e, "SELECT * FROM users WHERE id = 1")
	if res.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", res.RowCount)
	}
	if name, _ := res.Rows[0]["name"].Str(); name != "Alice" {
		t.Fatalf("name = %q, want Alice", name)
	}
	if _, ok := res.Rows[0][KeyColumn]; !ok {
		t.Fatalf("expected _key in result row")
	}
}

// Scenario 2: equality select through a hash index.
func TestScenarioHashIndexLookup(t *testing.T) {
	e := newTestExecutor(t)

	mustExec(t, e, "CREATE TABLE users (id INTEGER, name TEXT)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (2, 'Bob')")
	mustExec(t, e, "CREATE INDEX idx_id ON users (id) USING HASH")

	res := mustExec(t, e, "SELECT * FROM users WHERE id = 2")
	if res.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", res.RowCount)
	}
	if name, _ := res.Rows[0]["name"].Str(); name != "Bob" {
		t.Fatalf("name = %q, want Bob", name)
	}
}

// Scenario 3: equality hit through an ordered (BTREE) index over a
// larger table.
func TestScenarioOrderedIndexOverManyRows(t *testing.T) {
	e := newTestExecutor(t)

	mustExec(t, e, "CREATE TABLE nums (id INTEGER, v INTEGER)")
	for i := 0; i < 100; i++ {
		mustExec(t, e, fmt.Sprintf("INSERT INTO nums (id, v) VALUES (%d, %d)", i, i*10))
	}
	mustExec(t, e, "CREATE INDEX idx_v ON nums (v)")

	res := mustExec(t, e, "SELECT * FROM nums WHERE v = 500")
	if res.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", res.RowCount)
	}
	if id, _ := res.Rows[0]["id"].Int(); id != 50 {
		t.Fatalf("id = %d, want 50", id)
	}
}

// Scenario 4: ORDER BY + LIMIT.
func TestScenarioOrderByDescLimit(t *testing.T) {
	e := newTestExecutor(t)

	mustExec(t, e, "CREATE TABLE p (id INTEGER, price INTEGER)")
	mustExec(t, e, "INSERT INTO p (id, price) VALUES (1, 100)")
	mustExec(t, e, "INSERT INTO p (id, price) VALUES (2, 200)")
	mustExec(t, e, "INSERT INTO p (id, price) VALUES (3, 150)")

	res := mustExec(t, e, "SELECT * FROM p ORDER BY price DESC LIMIT 2")
	if res.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", res.RowCount)
	}
	if id, _ := res.Rows[0]["id"].Int(); id != 2 {
		t.Fatalf("rows[0].id = %d, want 2", id)
	}
	if id, _ := res.Rows[1]["id"].Int(); id != 3 {
		t.Fatalf("rows[1].id = %d, want 3", id)
	}
}

// Scenario 5: UPDATE then DELETE.
func TestScenarioUpdateThenDelete(t *testing.T) {
	e := newTestExecutor(t)

	mustExec(t, e, "CREATE TABLE users (id INTEGER, name TEXT)")
	mustExec(t, e, "INSERT INTO users (id, name) VALUES (1, 'Alice')")

	res := mustExec(t, e, "UPDATE users SET name = 'Alicia' WHERE id = 1")
	if res.RowsAffected != 1 {
		t.Fatalf("RowsAffected = %d, want 1", res.RowsAffected)
	}

	sel := mustExec(t, e, "SELECT * FROM users WHERE id = 1")
	if name, _ := sel.Rows[0]["name"].Str(); name != "Alicia" {
		t.Fatalf("name = %q, want Alicia", name)
	}

	del := mustExec(t, e, "DELETE FROM users WHERE id = 1")
	if del.RowsAffected != 1 {
		t.Fatalf("RowsAffected = %d, want 1", del.RowsAffected)
	}

	sel = mustExec(t, e, "SELECT * FROM users WHERE id = 1")
	if sel.RowCount != 0 {
		t.Fatalf("RowCount = %d, want 0 after delete", sel.RowCount)
	}
}

func TestInsertUnknownColumnFails(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER)")

	res, err := e.Execute(mustParse(t, "INSERT INTO users (ghost) VALUES (1)"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusError {
		t.Fatalf("expected error result, got %+v", res)
	}
}

func TestCreateDuplicateTableFails(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER)")

	res, err := e.Execute(mustParse(t, "CREATE TABLE users (id INTEGER)"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusError {
		t.Fatalf("expected error result, got %+v", res)
	}
}

func TestDropTableDropsItsIndexes(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE users (id INTEGER)")
	mustExec(t, e, "CREATE INDEX idx_id ON users (id) USING HASH")
	mustExec(t, e, "DROP TABLE users")

	if _, ok := e.indexes.Get("users", "idx_id"); ok {
		t.Fatalf("expected idx_id to be dropped along with its table")
	}
}
