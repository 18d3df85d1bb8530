package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/coldfetch/internal/compiler"
	"github.com/roach88/coldfetch/internal/querysql"
)

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Request string `json:"request"` // canonical request key
	Hash    string `json:"hash"`
	SQL     string `json:"sql"`
	Args    []any  `json:"args"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <request.cue>",
		Short: "Print the SQL a request compiles to",
		Long: `Compile a CUE request file and print the parameterized SQLite query
it runs, without touching a database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}
}

func runExplain(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	req, err := compiler.CompileFile(path)
	if err != nil {
		return f.Fail(ExitCommandError, errorCode(err), fmt.Sprintf("failed to compile %s", path), err)
	}

	stmt, err := querysql.NewCompiler().Compile(req)
	if err != nil {
		return f.Fail(ExitFailure, errorCode(err), "invalid request", err)
	}

	hash, err := req.Hash()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to hash request", err)
	}

	if f.JSON() {
		args := stmt.Args
		if args == nil {
			args = []any{}
		}
		return f.Success(ExplainResult{Request: req.String(), Hash: hash, SQL: stmt.SQL, Args: args})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "request: %s\n", req)
	fmt.Fprintf(w, "hash:    %s\n", hash)
	fmt.Fprintf(w, "sql:     %s\n", stmt.SQL)
	for i, arg := range stmt.Args {
		fmt.Fprintf(w, "  $%d = %T(%v)\n", i+1, arg, arg)
	}
	return nil
}
