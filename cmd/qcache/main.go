// Command qcache runs cache scenarios and inspects qcache configuration.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/qcache/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
