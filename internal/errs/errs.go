// Package errs defines the typed error kinds of the error-handling
// design: one struct per kind, each carrying the fields needed to
// render a human-readable message.
package errs

import "fmt"

type NoSuchTableError struct{ Table string }

func (e *NoSuchTableError) Error() string {
	return fmt.Sprintf("table %q does not exist", e.Table)
}

type TableExistsError struct{ Table string }

func (e *TableExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Table)
}

type UnknownColumnError struct {
	Table, Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("column %q is not defined on table %q", e.Column, e.Table)
}

type IndexExistsError struct {
	Table, Name string
}

func (e *IndexExistsError) Error() string {
	return fmt.Sprintf("index %q already exists on table %q", e.Name, e.Table)
}

type IndexNotFoundError struct {
	Table, Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found on table %q", e.Name, e.Table)
}

type IndexKindInvalidError struct{ Kind string }

func (e *IndexKindInvalidError) Error() string {
	return fmt.Sprintf("invalid index kind %q", e.Kind)
}

type RangeNotSupportedError struct{ IndexName string }

func (e *RangeNotSupportedError) Error() string {
	return fmt.Sprintf("index %q does not support range scans", e.IndexName)
}

type NotLeaderError struct{ LeaderHint string }

func (e *NotLeaderError) Error() string {
	if e.LeaderHint == "" {
		return "this node is not the leader"
	}
	return fmt.Sprintf("this node is not the leader; leader is at %s", e.LeaderHint)
}

type ReplicationFailedError struct{ Reason string }

func (e *ReplicationFailedError) Error() string {
	return fmt.Sprintf("replication failed: %s", e.Reason)
}

type DurableWriteFailedError struct{ Reason string }

func (e *DurableWriteFailedError) Error() string {
	return fmt.Sprintf("durable write failed: %s", e.Reason)
}

type ParseError struct{ Reason string }

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Reason)
}

type UnsupportedStatementError struct{ Statement string }

func (e *UnsupportedStatementError) Error() string {
	return fmt.Sprintf("unsupported statement: %s", e.Statement)
}
