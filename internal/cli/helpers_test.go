package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// seededDB returns a temp database loaded with testdata/tasks.yaml.
func seededDB(t *testing.T) string {
	t.Helper()

	db := filepath.Join(t.TempDir(), "tasks.db")
	_, _, err := execute(t, "seed", "testdata/tasks.yaml", "--db", db)
	require.NoError(t, err)
	return db
}
