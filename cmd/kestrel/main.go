package main

import (
	"fmt"
	"os"

	"github.com/kestrel-ci/kestrel/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
