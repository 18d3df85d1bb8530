package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
)

func TestPut_Upserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, task("t1", "old", "open", 1, false)))
	require.NoError(t, s.Put(ctx, task("t1", "new", "done", 2, false)))

	recs, err := s.ExecuteRaw(ctx, fetch.NewRequest("Task"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ir.String("new"), recs[0].Fields["title"])
}

func TestPut_Empty(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.Put(context.Background()))
}

func TestPut_NilFieldsStoredAsEmptyObject(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, ir.Record{ID: "x", Entity: "Task"}))

	recs, err := s.ExecuteRaw(ctx, fetch.NewRequest("Task"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ir.Object{}, recs[0].Fields)
}

func TestPut_InvalidRecordAbortsBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Put(ctx,
		task("t1", "ok", "open", 1, false),
		ir.Record{ID: "", Entity: "Task"},
	)
	require.Error(t, err)
	assert.True(t, fetch.IsValidation(err))

	n, err := s.Count(ctx, "Task")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPut_RejectsBadEntity(t *testing.T) {
	s := createTestStore(t)

	err := s.Put(context.Background(), ir.Record{ID: "x", Entity: "bad entity"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid entity")
}

func TestPut_RejectsMissingFieldValue(t *testing.T) {
	s := createTestStore(t)

	err := s.Put(context.Background(), ir.Record{ID: "x", Entity: "Task", Fields: ir.Object{"x": nil}})
	require.Error(t, err)
	assert.True(t, fetch.IsValidation(err))
}
