package database

// Batch transactions
//
// Queries accumulate in memory and run together at Execute time, wrapped in
// BEGIN TRANSACTION / COMMIT TRANSACTION. There is no isolation between Add calls.
//
//	err := NewAtomicBatch().
//	    Add("UPDATE type::record($id) SET hash = $hash", vars1).
//	    Add("UPDATE refresh_token SET revoked = true WHERE account = type::record($id)", vars2).
//	    Execute(ctx, db)

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// TxBuilder builds atomic transaction queries with automatic variable namespacing.
// Two statements that both bind $id end up as $v1_id and $v2_id.
type TxBuilder struct {
	statements []string
	vars       map[string]interface{}
	varCounter int
}

// NewTxBuilder creates a new transaction builder
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{
		statements: make([]string, 0),
		vars:       make(map[string]interface{}),
	}
}

// Add appends a statement, renaming its variables so they cannot collide with
// variables of earlier statements. It returns the old-to-new name mapping.
func (tb *TxBuilder) Add(query string, vars map[string]interface{}) map[string]string {
	tb.varCounter++
	mapping := make(map[string]string, len(vars))
	newQuery := query

	for name, value := range vars {
		renamed := fmt.Sprintf("v%d_%s", tb.varCounter, name)
		pattern := regexp.MustCompile(`\$` + regexp.QuoteMeta(name) + `\b`)
		newQuery = pattern.ReplaceAllLiteralString(newQuery, "$"+renamed)
		tb.vars[renamed] = value
		mapping[name] = renamed
	}

	tb.statements = append(tb.statements, newQuery)
	return mapping
}

// Len returns the number of statements added so far
func (tb *TxBuilder) Len() int {
	return len(tb.statements)
}

// Build returns the complete transaction query and merged variables
func (tb *TxBuilder) Build() (string, map[string]interface{}) {
	if len(tb.statements) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, stmt := range tb.statements {
		sb.WriteString(stmt)
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")

	return sb.String(), tb.vars
}

// ExecuteTransaction executes a transaction built with TxBuilder
func ExecuteTransaction(ctx context.Context, db Database, tb *TxBuilder) ([]interface{}, error) {
	query, vars := tb.Build()
	if query == "" {
		return nil, nil
	}
	return db.Query(ctx, query, vars)
}

// AtomicBatch is a fluent wrapper around TxBuilder for a handful of statements
// that must succeed or fail together.
type AtomicBatch struct {
	builder *TxBuilder
}

// NewAtomicBatch creates a new atomic batch
func NewAtomicBatch() *AtomicBatch {
	return &AtomicBatch{builder: NewTxBuilder()}
}

// Add adds a query to the batch
func (ab *AtomicBatch) Add(query string, vars map[string]interface{}) *AtomicBatch {
	ab.builder.Add(query, vars)
	return ab
}

// Execute runs all queries as a single transaction
func (ab *AtomicBatch) Execute(ctx context.Context, db Database) error {
	_, err := ExecuteTransaction(ctx, db, ab.builder)
	return err
}

// Len returns the number of queries in the batch
func (ab *AtomicBatch) Len() int {
	return ab.builder.Len()
}
