// Package sqlparse implements the constrained SQL dialect's tokenizer
// and recursive-descent parser, translating SQL text into a typed
// Plan. No generalized SQL grammar exists anywhere in this project's
// library dependencies, so the parser is hand-rolled against the
// standard library.
package sqlparse

import (
	"strconv"
	"strings"

	"distdb/internal/errs"
	"distdb/internal/types"
)

// parser walks a token stream with a single cursor; every production
// consumes the tokens it needs and leaves the cursor on the next
// unconsumed token.
type parser struct {
	toks []token
	pos  int
}

// Parse turns one SQL statement into a Plan. Statements are one per
// call; there is no batch parsing.
func Parse(sql string) (Plan, error) {
	toks := tokenize(sql)
	if len(toks) == 0 {
		return Plan{}, &errs.ParseError{Reason: "empty statement"}
	}

	p := &parser{toks: toks}
	kw := p.upperPeek()

	switch kw {
	case "CREATE":
		return p.parseCreate()
	case "DROP":
		return p.parseDrop()
	case "INSERT":
		return p.parseInsert()
	case "SELECT":
		return p.parseSelect()
	case "UPDATE":
		return p.parseUpdate()
	case "DELETE":
		return p.parseDelete()
	default:
		return Plan{}, &errs.UnsupportedStatementError{Statement: kw}
	}
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) upperPeek() string {
	t, ok := p.peek()
	if !ok {
		return ""
	}
	return strings.ToUpper(t.text)
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

// expectKeyword consumes the next token and fails unless it
// case-insensitively equals kw.
func (p *parser) expectKeyword(kw string) error {
	t, ok := p.next()
	if !ok || strings.ToUpper(t.text) != kw {
		return &errs.ParseError{Reason: "expected " + kw}
	}
	return nil
}

func (p *parser) expectPunct(s string) error {
	t, ok := p.next()
	if !ok || t.text != s {
		return &errs.ParseError{Reason: "expected '" + s + "'"}
	}
	return nil
}

// matchKeyword consumes the next token only if it matches kw, and
// reports whether it did, without failing if it doesn't (used for
// optional clauses).
func (p *parser) matchKeyword(kw string) bool {
	if p.upperPeek() != kw {
		return false
	}
	p.pos++
	return true
}

func (p *parser) identifier() (string, error) {
	t, ok := p.next()
	if !ok || t.quoted {
		return "", &errs.ParseError{Reason: "expected identifier"}
	}
	return t.text, nil
}

// coerceValue parses a value token per spec.md §4.4: quoted tokens are
// strings; bareword tokens are tried as integer, then float, else kept
// as a string.
func coerceValue(t token) types.Value {
	if t.quoted {
		return types.String(t.text)
	}
	if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
		return types.Int(n)
	}
	if f, err := strconv.ParseFloat(t.text, 64); err == nil {
		return types.Float(f)
	}
	return types.String(t.text)
}

// --- CREATE TABLE / CREATE INDEX ---

func (p *parser) parseCreate() (Plan, error) {
	p.pos++ // CREATE
	switch p.upperPeek() {
	case "TABLE":
		return p.parseCreateTable()
	case "INDEX":
		return p.parseCreateIndex()
	default:
		return Plan{}, &errs.UnsupportedStatementError{Statement: "CREATE " + p.upperPeek()}
	}
}

func (p *parser) parseCreateTable() (Plan, error) {
	p.pos++ // TABLE
	table, err := p.identifier()
	if err != nil {
		return Plan{}, err
	}
	if err := p.expectPunct("("); err != nil {
		return Plan{}, err
	}

	schema := types.Schema{}
	for {
		col, err := p.identifier()
		if err != nil {
			return Plan{}, err
		}
		typeTag, err := p.identifier()
		if err != nil {
			return Plan{}, err
		}
		schema[col] = strings.ToUpper(typeTag)

		t, ok := p.next()
		if !ok {
			return Plan{}, &errs.ParseError{Reason: "unterminated column list"}
		}
		if t.text == ")" {
			break
		}
		if t.text != "," {
			return Plan{}, &errs.ParseError{Reason: "expected ',' or ')' in column list"}
		}
	}

	return Plan{Kind: KindCreateTable, Table: table, Schema: schema}, nil
}

func (p *parser) parseCreateIndex() (Plan, error) {
	p.pos++ // INDEX
	name, err := p.identifier()
	if err != nil {
		return Plan{}, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return Plan{}, err
	}
	table, err := p.identifier()
	if err != nil {
		return Plan{}, err
	}

	cols, err := p.parseColumnList()
	if err != nil {
		return Plan{}, err
	}

	kind := IndexKindBTree
	if p.matchKeyword("USING") {
		switch p.upperPeek() {
		case "HASH":
			kind = IndexKindHash
			p.pos++
		case "BTREE":
			kind = IndexKindBTree
			p.pos++
		default:
			return Plan{}, &errs.ParseError{Reason: "expected HASH or BTREE after USING"}
		}
	}

	return Plan{
		Kind:         KindCreateIndex,
		Table:        table,
		IndexName:    name,
		IndexColumns: cols,
		IndexKind:    kind,
	}, nil
}

func (p *parser) parseColumnList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		col, err := p.identifier()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)

		t, ok := p.next()
		if !ok {
			return nil, &errs.ParseError{Reason: "unterminated column list"}
		}
		if t.text == ")" {
			break
		}
		if t.text != "," {
			return nil, &errs.ParseError{Reason: "expected ',' or ')' in column list"}
		}
	}
	return cols, nil
}

// --- DROP TABLE / DROP INDEX ---

func (p *parser) parseDrop() (Plan, error) {
	p.pos++ // DROP
	switch p.upperPeek() {
	case "TABLE":
		p.pos++
		table, err := p.identifier()
		if err != nil {
			return Plan{}, err
		}
		return Plan{Kind: KindDropTable, Table: table}, nil
	case "INDEX":
		p.pos++
		name, err := p.identifier()
		if err != nil {
			return Plan{}, err
		}
		plan := Plan{Kind: KindDropIndex, IndexName: name}
		if p.matchKeyword("ON") {
			table, err := p.identifier()
			if err != nil {
				return Plan{}, err
			}
			plan.Table = table
		}
		return plan, nil
	default:
		return Plan{}, &errs.UnsupportedStatementError{Statement: "DROP " + p.upperPeek()}
	}
}

// --- INSERT ---

func (p *parser) parseInsert() (Plan, error) {
	p.pos++ // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return Plan{}, err
	}
	table, err := p.identifier()
	if err != nil {
		return Plan{}, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return Plan{}, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return Plan{}, err
	}
	if err := p.expectPunct("("); err != nil {
		return Plan{}, err
	}

	var values []types.Value
	for {
		t, ok := p.next()
		if !ok {
			return Plan{}, &errs.ParseError{Reason: "unterminated VALUES list"}
		}
		if t.text == ")" && len(values) == 0 {
			break
		}
		values = append(values, coerceValue(t))

		sep, ok := p.next()
		if !ok {
			return Plan{}, &errs.ParseError{Reason: "unterminated VALUES list"}
		}
		if sep.text == ")" {
			break
		}
		if sep.text != "," {
			return Plan{}, &errs.ParseError{Reason: "expected ',' or ')' in VALUES list"}
		}
	}

	if len(cols) != len(values) {
		return Plan{}, &errs.ParseError{Reason: "column count does not match value count"}
	}

	return Plan{Kind: KindInsert, Table: table, InsertColumns: cols, InsertValues: values}, nil
}

// --- SELECT ---

func (p *parser) parseSelect() (Plan, error) {
	p.pos++ // SELECT

	plan := Plan{Kind: KindSelect}

	if p.upperPeek() == "*" {
		p.pos++
		plan.Wildcard = true
	} else {
		for {
			col, err := p.identifier()
			if err != nil {
				return Plan{}, err
			}
			plan.Columns = append(plan.Columns, col)

			t, ok := p.peek()
			if ok && t.text == "," {
				p.pos++
				continue
			}
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return Plan{}, err
	}
	table, err := p.identifier()
	if err != nil {
		return Plan{}, err
	}
	plan.Table = table

	if p.matchKeyword("WHERE") {
		conds, err := p.parseConditions()
		if err != nil {
			return Plan{}, err
		}
		plan.Conditions = conds
	}

	if p.matchKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return Plan{}, err
		}
		keys, err := p.parseOrderBy()
		if err != nil {
			return Plan{}, err
		}
		plan.OrderBy = keys
	}

	if p.matchKeyword("LIMIT") {
		t, ok := p.next()
		if !ok {
			return Plan{}, &errs.ParseError{Reason: "expected number after LIMIT"}
		}
		n, err := strconv.Atoi(t.text)
		if err != nil {
			return Plan{}, &errs.ParseError{Reason: "invalid LIMIT value"}
		}
		plan.Limit = n
		plan.HasLimit = true
	}

	return plan, nil
}

// parseConditions parses a conjunction of equality predicates joined
// by AND. Repeated columns override earlier bindings.
func (p *parser) parseConditions() (map[string]types.Value, error) {
	conds := map[string]types.Value{}
	for {
		col, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		t, ok := p.next()
		if !ok {
			return nil, &errs.ParseError{Reason: "expected value in WHERE clause"}
		}
		conds[col] = coerceValue(t)

		if p.matchKeyword("AND") {
			continue
		}
		break
	}
	return conds, nil
}

func (p *parser) parseOrderBy() ([]OrderKey, error) {
	var keys []OrderKey
	for {
		col, err := p.identifier()
		if err != nil {
			return nil, err
		}
		desc := false
		switch p.upperPeek() {
		case "ASC":
			p.pos++
		case "DESC":
			desc = true
			p.pos++
		}
		keys = append(keys, OrderKey{Column: col, Desc: desc})

		t, ok := p.peek()
		if ok && t.text == "," {
			p.pos++
			continue
		}
		break
	}
	return keys, nil
}

// --- UPDATE ---

func (p *parser) parseUpdate() (Plan, error) {
	p.pos++ // UPDATE
	table, err := p.identifier()
	if err != nil {
		return Plan{}, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return Plan{}, err
	}

	setValues, err := p.parseSetAssignments()
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Kind: KindUpdate, Table: table, SetValues: setValues}

	if p.matchKeyword("WHERE") {
		conds, err := p.parseConditions()
		if err != nil {
			return Plan{}, err
		}
		plan.Conditions = conds
	}

	return plan, nil
}

// parseSetAssignments parses "col = value [, col = value ...]". A
// comma only ever separates assignments here because the tokenizer
// already keeps a quoted value's contents — commas included — inside
// a single quoted token; a value needing a literal unquoted comma is
// not representable and is therefore unsupported (spec.md §9 Open
// Question).
func (p *parser) parseSetAssignments() (map[string]types.Value, error) {
	set := map[string]types.Value{}
	for {
		col, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		t, ok := p.next()
		if !ok {
			return nil, &errs.ParseError{Reason: "expected value in SET clause"}
		}
		set[col] = coerceValue(t)

		next, ok := p.peek()
		if ok && next.text == "," {
			p.pos++
			continue
		}
		break
	}
	return set, nil
}

// --- DELETE ---

func (p *parser) parseDelete() (Plan, error) {
	p.pos++ // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return Plan{}, err
	}
	table, err := p.identifier()
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Kind: KindDelete, Table: table}
	if p.matchKeyword("WHERE") {
		conds, err := p.parseConditions()
		if err != nil {
			return Plan{}, err
		}
		plan.Conditions = conds
	}
	return plan, nil
}
