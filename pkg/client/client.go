// Package client is a thin SQL-string-building façade over a local
// node, mirroring original_source/distdb/client.py's method surface
// (create_table/insert/select/update/delete/create_index/execute_many/
// get_status) so callers don't have to hand-write SQL for the common
// cases.
//
// Only a local, in-process node is supported — the original's
// remote/gRPC connection mode was explicitly unimplemented
// (NotImplementedError) there too.
package client

import (
	"fmt"
	"strconv"
	"strings"

	"distdb/internal/config"
	"distdb/internal/coordinator"
	"distdb/internal/executor"
	"distdb/internal/types"
)

// Client wraps a local Coordinator.
type Client struct {
	node *coordinator.Coordinator
}

// New starts a local node from cfg and returns a Client bound to it.
func New(cfg config.Config, bootstrap bool) (*Client, error) {
	node, err := coordinator.New(cfg, bootstrap)
	if err != nil {
		return nil, err
	}
	node.Start()
	return &Client{node: node}, nil
}

// Execute runs an arbitrary SQL statement.
func (c *Client) Execute(sql string) (executor.Result, error) {
	return c.node.Execute(sql)
}

// ExecuteMany runs each statement in order, collecting every result,
// error results included. It stops at the first statement for which
// Execute returns a Go error (e.g. not leader), returning the results
// gathered so far with that error.
func (c *Client) ExecuteMany(statements []string) ([]executor.Result, error) {
	results := make([]executor.Result, 0, len(statements))
	for _, sql := range statements {
		res, err := c.Execute(sql)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Query runs a SELECT and returns its rows, or an error built from the
// result's message if the statement failed.
func (c *Client) Query(sql string) ([]types.Row, error) {
	res, err := c.Execute(sql)
	if err != nil {
		return nil, err
	}
	if res.Status != executor.StatusSuccess {
		return nil, fmt.Errorf("query failed: %s", res.Message)
	}
	return res.Rows, nil
}

func (c *Client) CreateTable(table string, schema map[string]string) (executor.Result, error) {
	cols := make([]string, 0, len(schema))
	for name, kind := range schema {
		cols = append(cols, fmt.Sprintf("%s %s", name, kind))
	}
	sql := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(cols, ", "))
	return c.Execute(sql)
}

func (c *Client) Insert(table string, values map[string]any) (executor.Result, error) {
	cols := make([]string, 0, len(values))
	vals := make([]string, 0, len(values))
	for col, v := range values {
		cols = append(cols, col)
		vals = append(vals, literal(v))
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(vals, ", "))
	return c.Execute(sql)
}

// SelectOptions narrows a Select call the way client.py's keyword
// arguments do.
type SelectOptions struct {
	Where    map[string]any
	OrderBy  string
	Desc     bool
	Limit    int
	HasLimit bool
}

func (c *Client) Select(table string, opts SelectOptions) ([]types.Row, error) {
	sql := fmt.Sprintf("SELECT * FROM %s", table)
	if len(opts.Where) > 0 {
		sql += " WHERE " + whereClause(opts.Where)
	}
	if opts.OrderBy != "" {
		sql += " ORDER BY " + opts.OrderBy
		if opts.Desc {
			sql += " DESC"
		}
	}
	if opts.HasLimit {
		sql += " LIMIT " + strconv.Itoa(opts.Limit)
	}
	return c.Query(sql)
}

func (c *Client) Update(table string, values map[string]any, where map[string]any) (executor.Result, error) {
	sets := make([]string, 0, len(values))
	for col, v := range values {
		sets = append(sets, fmt.Sprintf("%s = %s", col, literal(v)))
	}
	sql := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", "))
	if len(where) > 0 {
		sql += " WHERE " + whereClause(where)
	}
	return c.Execute(sql)
}

func (c *Client) Delete(table string, where map[string]any) (executor.Result, error) {
	sql := fmt.Sprintf("DELETE FROM %s", table)
	if len(where) > 0 {
		sql += " WHERE " + whereClause(where)
	}
	return c.Execute(sql)
}

func (c *Client) CreateIndex(name, table string, columns []string, useHash bool) (executor.Result, error) {
	sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, strings.Join(columns, ", "))
	if useHash {
		sql += " USING HASH"
	}
	return c.Execute(sql)
}

// GetStatus surfaces node status (node_id/running/is_leader/
// cluster_nodes/tables), carried over from node.py's get_status.
func (c *Client) GetStatus() coordinator.Status {
	return c.node.Status()
}

// Close stops the local node.
func (c *Client) Close() error {
	return c.node.Stop()
}

func literal(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + val + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func whereClause(where map[string]any) string {
	parts := make([]string, 0, len(where))
	for col, v := range where {
		parts = append(parts, fmt.Sprintf("%s = %s", col, literal(v)))
	}
	return strings.Join(parts, " AND ")
}
