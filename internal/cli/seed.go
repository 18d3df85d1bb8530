package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/coldfetch/internal/fixture"
)

// SeedResult is the JSON payload of a successful seed.
type SeedResult struct {
	Database string `json:"database"`
	Records  int    `json:"records"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load fixture records into the database",
		Long: `Load records from a YAML fixture file into the SQLite database.

Records are upserted by (entity, id) in one transaction; an invalid record
aborts the whole batch.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	f := a.formatter

	records, err := fixture.Load(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeFixture, fmt.Sprintf("failed to load fixture %s", path), err)
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.Put(ctx, records...); err != nil {
		return f.Fail(ExitFailure, errorCode(err), "failed to store records", err)
	}

	if f.JSON() {
		return f.Success(SeedResult{Database: a.cfg.Database, Records: len(records)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d record(s) into %s\n", len(records), a.cfg.Database)
	return nil
}
