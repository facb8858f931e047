// Package db provides shared Postgres helpers for pooling and bulk copy.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFromSchema bulk-inserts rows into a schema-qualified table. The row
// count reported by the server must match len(rows).
func CopyFromSchema(ctx context.Context, c Copier, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := c.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.%s", schema, table)
	}
	if n != int64(len(rows)) {
		return n, eris.Errorf("db: COPY INTO %s.%s wrote %d of %d rows", schema, table, n, len(rows))
	}
	return n, nil
}

// QualifiedName returns a quoted, schema-qualified identifier for use in SQL text.
func QualifiedName(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}
