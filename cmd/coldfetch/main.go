// Command coldfetch runs read-only fetch requests through a confined
// stream bridge over SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/coldfetch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
