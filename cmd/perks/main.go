// Command perks is the command-line interface to the perks ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/perks/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "perks: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
