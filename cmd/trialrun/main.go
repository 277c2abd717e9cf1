// Command trialrun runs, simulates and inspects behavioral experiments.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/trialrun/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
