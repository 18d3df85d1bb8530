package querysql

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
)

// render formats a statement for golden comparison.
func render(stmt Statement) []byte {
	var b strings.Builder
	b.WriteString(stmt.SQL)
	b.WriteString("\n")
	for i, a := range stmt.Args {
		fmt.Fprintf(&b, "  %d: %T(%v)\n", i, a, a)
	}
	return []byte(b.String())
}

func assertGolden(t *testing.T, name string, stmt Statement) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, render(stmt))
}

func TestCompile_EntityOnly(t *testing.T) {
	stmt, err := NewCompiler().Compile(fetch.NewRequest("Task"))
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, entity, data FROM records WHERE entity = ? ORDER BY id ASC COLLATE BINARY", stmt.SQL)
	assert.Equal(t, []any{"Task"}, stmt.Args)
}

func TestCompile_FilterSortLimit_Golden(t *testing.T) {
	req := fetch.NewRequest("Task",
		fetch.Where(
			fetch.Eq{Field: "status", Value: ir.String("open")},
			fetch.Cmp{Field: "priority", Op: fetch.OpGte, Value: ir.Int(2)},
			fetch.In{Field: "owner.name", Values: []ir.Value{ir.String("ana"), ir.String("bo")}},
		),
		fetch.SortByDesc("priority"),
		fetch.SortBy("title"),
		fetch.WithLimit(10),
		fetch.WithOffset(20),
	)

	stmt, err := NewCompiler().Compile(req)
	require.NoError(t, err)
	assertGolden(t, "filter_sort_limit", stmt)
}

func TestCompile_NullAndBool_Golden(t *testing.T) {
	req := fetch.NewRequest("Task",
		fetch.Where(
			fetch.Eq{Field: "archived_at", Value: ir.Null{}},
			fetch.Ne{Field: "deleted", Value: ir.Bool(true)},
			fetch.Ne{Field: "owner", Value: ir.Null{}},
		),
	)

	stmt, err := NewCompiler().Compile(req)
	require.NoError(t, err)
	assertGolden(t, "null_and_bool", stmt)
}

func TestCompile_OffsetWithoutLimit(t *testing.T) {
	stmt, err := NewCompiler().Compile(fetch.NewRequest("Task", fetch.WithOffset(3)))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(stmt.SQL, "ORDER BY id ASC COLLATE BINARY LIMIT -1 OFFSET ?"))
	assert.Equal(t, []any{"Task", int64(3)}, stmt.Args)
}

func TestCompile_IDField(t *testing.T) {
	req := fetch.NewRequest("Task",
		fetch.Where(fetch.Eq{Field: "id", Value: ir.String("t1")}),
		fetch.SortByDesc("id"),
	)

	stmt, err := NewCompiler().Compile(req)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, entity, data FROM records WHERE entity = ? AND id = ? ORDER BY id DESC COLLATE BINARY",
		stmt.SQL)
	assert.Equal(t, []any{"Task", "t1"}, stmt.Args)
}

func TestCompile_IDSortKeyKeepsPosition(t *testing.T) {
	req := fetch.NewRequest("Task", fetch.SortBy("id"), fetch.SortByDesc("priority"))

	stmt, err := NewCompiler().Compile(req)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(stmt.SQL, "ORDER BY id ASC COLLATE BINARY, json_extract(data, ?) DESC"), stmt.SQL)
	assert.Equal(t, []any{"Task", "$.priority"}, stmt.Args)
}

func TestCompile_TypedComparisons(t *testing.T) {
	cases := []struct {
		name string
		pred fetch.Predicate
		sql  string
		args []any
	}{
		{
			"bool",
			fetch.Eq{Field: "archived", Value: ir.Bool(true)},
			"(json_type(data, ?) IN ('true', 'false') AND json_extract(data, ?) = ?)",
			[]any{"Task", "$.archived", "$.archived", int64(1)},
		},
		{
			"int",
			fetch.Cmp{Field: "priority", Op: fetch.OpLt, Value: ir.Int(2)},
			"(json_type(data, ?) = 'integer' AND json_extract(data, ?) < ?)",
			[]any{"Task", "$.priority", "$.priority", int64(2)},
		},
		{
			"id is unguarded",
			fetch.Ne{Field: "id", Value: ir.String("t1")},
			"id <> ?",
			[]any{"Task", "t1"},
		},
		{
			"mixed in",
			fetch.In{Field: "flag", Values: []ir.Value{ir.Int(1), ir.Bool(true), ir.Int(2)}},
			"((json_type(data, ?) = 'integer' AND json_extract(data, ?) IN (?, ?)) OR (json_type(data, ?) IN ('true', 'false') AND json_extract(data, ?) IN (?)))",
			[]any{"Task", "$.flag", "$.flag", int64(1), int64(2), "$.flag", "$.flag", int64(1)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stmt, err := NewCompiler().Compile(fetch.NewRequest("Task", fetch.WithFilter(tc.pred)))
			require.NoError(t, err)
			assert.Contains(t, stmt.SQL, "WHERE entity = ? AND "+tc.sql+" ORDER BY")
			assert.Equal(t, tc.args, stmt.Args)
		})
	}
}

func TestCompile_EmptyAndIsTrue(t *testing.T) {
	req := fetch.NewRequest("Task", fetch.WithFilter(fetch.And{}))

	stmt, err := NewCompiler().Compile(req)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "WHERE entity = ? AND 1 = 1 ORDER BY")
}

func TestCompile_ValuesNeverInterpolated(t *testing.T) {
	evil := "x' OR '1'='1"
	req := fetch.NewRequest("Task", fetch.Where(fetch.Eq{Field: "title", Value: ir.String(evil)}))

	stmt, err := NewCompiler().Compile(req)
	require.NoError(t, err)

	assert.NotContains(t, stmt.SQL, evil)
	assert.Contains(t, stmt.Args, evil)
}

func TestCompile_InvalidRequest(t *testing.T) {
	_, err := NewCompiler().Compile(fetch.NewRequest("Task", fetch.WithLimit(-5)))
	require.Error(t, err)
	assert.True(t, fetch.IsValidation(err))
}

func TestCompile_CustomTable(t *testing.T) {
	c := &Compiler{Table: "archive"}

	stmt, err := c.Compile(fetch.NewRequest("Task"))
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "FROM archive WHERE")
}
