// Command interact drives interactive programs with pattern/action rules.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/interact/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
