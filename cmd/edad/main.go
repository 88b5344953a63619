// edad runs the structured-log EDA and imputation stage.
package main

import (
	"fmt"
	"os"

	"github.com/xtxerr/rcaeda/cmd/edad/commands"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup in commands runs
// before exit.
func run() int {
	commands.SetVersion(Version)
	err := commands.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return commands.ExitCode(err)
}
