package main

import (
	"fmt"
	"os"

	"github.com/roach88/filterx/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "filterx:", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
