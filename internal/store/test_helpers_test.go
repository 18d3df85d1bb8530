package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/coldfetch/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedTasks stores a small fixed set of Task records plus one Note.
func seedTasks(t *testing.T, s *Store) {
	t.Helper()
	err := s.Put(context.Background(),
		task("t1", "write spec", "open", 3, false),
		task("t2", "review", "done", 1, true),
		task("t3", "ship", "open", 5, false),
		task("t4", "triage", "open", 3, false),
		ir.Record{ID: "n1", Entity: "Note", Fields: ir.Object{"status": ir.String("open")}},
	)
	require.NoError(t, err)
}

func task(id, title, status string, priority int64, archived bool) ir.Record {
	return ir.Record{
		ID:     id,
		Entity: "Task",
		Fields: ir.Object{
			"title":    ir.String(title),
			"status":   ir.String(status),
			"priority": ir.Int(priority),
			"archived": ir.Bool(archived),
		},
	}
}

func ids(recs []ir.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
