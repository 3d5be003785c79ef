package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"realestate_ai/silver"
)

// silverChunk bounds rows per INSERT so the bind parameter count stays
// under the protocol limit of 65535.
const silverChunk = 500

// =============================================================================
// Silver Table
// =============================================================================

// ReplaceSilver drops and recreates the silver table and loads rows into it
// in a single transaction. Readers see either the old or the new table.
func (s *PostgresStore) ReplaceSilver(ctx context.Context, table string, rows []silver.Row) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, silverDDL(table)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}

	for start := 0; start < len(rows); start += silverChunk {
		end := min(start+silverChunk, len(rows))
		query, args, err := silverInsert(table, rows[start:end])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start, end, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountSilver returns the row count of the silver table, or 0 when the
// table has not been built yet.
func (s *PostgresStore) CountSilver(ctx context.Context, table string) (int, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, regclassName(table)).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n)
	return n, err
}

// regclassName quotes the table the way it was created so to_regclass does
// not fold its case.
func regclassName(table string) string {
	return quoteIdent(table)
}

func silverDDL(table string) string {
	ctb := sqlbuilder.PostgreSQL.NewCreateTableBuilder()
	ctb.CreateTable(quoteIdent(table))
	for _, c := range silver.Columns {
		ctb.Define(quoteIdent(c.Name), sqlType(c.Type))
	}
	ddl, _ := ctb.Build()
	return ddl
}

func silverInsert(table string, rows []silver.Row) (string, []any, error) {
	cols := make([]string, len(silver.Columns))
	for i, c := range silver.Columns {
		cols[i] = quoteIdent(c.Name)
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(quoteIdent(table))
	ib.Cols(cols...)
	for _, row := range rows {
		values := make([]any, len(row))
		for i, v := range row {
			cell, err := sqlValue(v)
			if err != nil {
				return "", nil, fmt.Errorf("column %s: %w", silver.Columns[i].Name, err)
			}
			values[i] = cell
		}
		ib.Values(values...)
	}
	query, args := ib.Build()
	return query, args, nil
}

func sqlType(t silver.ColumnType) string {
	switch t {
	case silver.TypeInt:
		return "BIGINT"
	case silver.TypeFloat:
		return "DOUBLE PRECISION"
	case silver.TypeBool:
		return "BOOLEAN"
	case silver.TypeTime:
		return "TIMESTAMPTZ"
	case silver.TypeStringList:
		return "JSONB"
	}
	return "TEXT"
}

// sqlValue encodes list cells as JSON text; other cells pass through.
func sqlValue(v any) (any, error) {
	list, ok := v.([]string)
	if !ok {
		return v, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
