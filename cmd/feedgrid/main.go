// Command feedgrid serves, seeds and browses a sparse content grid.
package main

import (
	"fmt"
	"os"

	"github.com/pawelekbyra/gridfeed/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
