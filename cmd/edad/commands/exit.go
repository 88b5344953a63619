package commands

import (
	"github.com/xtxerr/rcaeda/internal/errors"
)

// Exit codes reported by edad.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitLoad    = 3
	ExitCluster = 4
)

// ExitCode maps a command error to an exit code. Configuration problems
// are checked first since they stop a run before it starts.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsValidation(err):
		return ExitConfig
	case errors.IsClusterError(err):
		return ExitCluster
	case errors.IsLoadError(err):
		return ExitLoad
	default:
		return ExitFailure
	}
}
