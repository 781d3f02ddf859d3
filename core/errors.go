package core

import (
	"fmt"
	"strings"
)

// SupportedSyntax is shown alongside malformed query errors.
const SupportedSyntax = "SELECT <*|columns|COUNT(*)|SUM(col)|AVG(col)> FROM <table> " +
	"[WHERE <col> (=|<|>|<=|>=|LIKE) '<value>'] [GROUP BY <col>] " +
	"[ORDER BY <col> [ASC|DESC]] [LIMIT <n>]; SHOW TABLES; DESCRIBE <table>"

// UnknownTableError reports a table reference outside the catalog.
type UnknownTableError struct {
	Table string
	Known []string
}

func (e *UnknownTableError) Error() string {
	available := strings.Join(e.Known, ", ")
	if e.Table == "" {
		return fmt.Sprintf("unknown table. Available tables: %s", available)
	}
	return fmt.Sprintf("unknown table: %s. Available tables: %s", e.Table, available)
}

// MalformedQueryError reports unsupported or unparseable input.
type MalformedQueryError struct {
	Reason string
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed query: %s. Supported syntax: %s", e.Reason, SupportedSyntax)
}

// MalformedDescribeError reports a DESCRIBE without a table argument.
type MalformedDescribeError struct {
	Input string
}

func (e *MalformedDescribeError) Error() string {
	return "usage: DESCRIBE table_name"
}

// DataFetchError wraps a Record Store failure.
type DataFetchError struct {
	Table string
	Err   error
}

func (e *DataFetchError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("failed to fetch data: %v", e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.Table, e.Err)
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}
