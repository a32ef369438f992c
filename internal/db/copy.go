package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFromSchema bulk-inserts rows into a schema-qualified table using PostgreSQL COPY protocol.
func CopyFromSchema(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	copySource := pgx.CopyFromRows(rows)
	n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, copySource)
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.%s", schema, table)
	}

	return n, nil
}

// BatchWriter buffers rows and flushes them to schema.table with COPY
// every Size rows. Call Flush once after the last Add.
type BatchWriter struct {
	Pool    Pool
	Schema  string
	Table   string
	Columns []string
	Size    int

	buf   [][]any
	total int64
}

// Add appends a row and flushes when the buffer is full.
func (w *BatchWriter) Add(ctx context.Context, row []any) error {
	w.buf = append(w.buf, row)
	if w.Size > 0 && len(w.buf) >= w.Size {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered rows.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := CopyFromSchema(ctx, w.Pool, w.Schema, w.Table, w.Columns, w.buf)
	if err != nil {
		return err
	}
	w.total += n
	w.buf = w.buf[:0]
	return nil
}

// Total returns the number of rows written so far.
func (w *BatchWriter) Total() int64 { return w.total }
