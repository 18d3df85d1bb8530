package store

import (
	"context"
	"fmt"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
)

// Put inserts or replaces records in one transaction. Each record gets the
// next sequence number; replacing a record moves it to the end.
//
// All-or-nothing: an invalid record aborts the whole batch.
func (s *Store) Put(ctx context.Context, records ...ir.Record) error {
	if len(records) == 0 {
		return nil
	}

	type row struct {
		rec  ir.Record
		data string
	}
	rows := make([]row, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return fetch.NewValidationError("record %d has no id", i)
		}
		if !fetch.ValidIdent(rec.Entity) {
			return fetch.NewValidationError("record %q has invalid entity %q", rec.ID, rec.Entity)
		}
		fields := rec.Fields
		if fields == nil {
			fields = ir.Object{}
		}
		data, err := ir.MarshalCanonical(fields)
		if err != nil {
			return fetch.NewValidationError("record %q: %v", rec.ID, err)
		}
		rows = append(rows, row{rec: rec, data: string(data)})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fetch.NewStoreAccessError("begin transaction", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM records`).Scan(&seq); err != nil {
		return fetch.NewStoreAccessError("read sequence", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (entity, id, seq, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (entity, id) DO UPDATE SET seq = excluded.seq, data = excluded.data
	`)
	if err != nil {
		return fetch.NewStoreAccessError("prepare insert", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		seq++
		if _, err := stmt.ExecContext(ctx, r.rec.Entity, r.rec.ID, seq, r.data); err != nil {
			return fetch.NewStoreAccessError(fmt.Sprintf("insert %s/%s", r.rec.Entity, r.rec.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fetch.NewStoreAccessError("commit", err)
	}
	return nil
}
