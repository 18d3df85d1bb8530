package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
	"github.com/roach88/coldfetch/internal/querysql"
)

// ExecuteRaw runs req and returns the matching records in request order.
//
// Returns an empty slice (not nil) when nothing matches. Errors are always
// *fetch.Error: KindValidation when req cannot be compiled, KindStoreAccess
// when the database call or row decoding fails.
func (s *Store) ExecuteRaw(ctx context.Context, req fetch.Request) ([]ir.Record, error) {
	stmt, err := querysql.NewCompiler().Compile(req)
	if err != nil {
		return nil, fetch.AsError(err)
	}

	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fetch.NewStoreAccessError("query records", err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fetch.NewStoreAccessError("scan record", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fetch.NewStoreAccessError("iterate records", err)
	}

	return records, nil
}

// Count returns the number of stored records for entity.
func (s *Store) Count(ctx context.Context, entity string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE entity = ?`, entity).Scan(&n)
	if err != nil {
		return 0, fetch.NewStoreAccessError("count records", err)
	}
	return n, nil
}

func scanRecord(rows *sql.Rows) (ir.Record, error) {
	var (
		rec  ir.Record
		data string
	)
	if err := rows.Scan(&rec.ID, &rec.Entity, &data); err != nil {
		return ir.Record{}, err
	}

	fields, err := ir.DecodeObject([]byte(data))
	if err != nil {
		return ir.Record{}, fmt.Errorf("record %s/%s: %w", rec.Entity, rec.ID, err)
	}
	rec.Fields = fields
	return rec, nil
}
