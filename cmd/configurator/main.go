package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps an error to the process status: 2 for a broken catalog or
// rule set, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case !domain.IsRecoverable(err):
		return 2
	}
	return 1
}
