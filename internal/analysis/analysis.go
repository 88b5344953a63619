// Package analysis contains the read-only feature analyzers.
//
// Each analyzer inspects a partitioned frame, produces a Record of named
// metrics and may persist small artifacts through a blob.Sink. Analyzers do
// not modify the frame and do not read each other's output.
package analysis

import (
	"context"
	"log/slog"

	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/frame"
	"github.com/xtxerr/rcaeda/internal/logging"
)

// Env is the input shared by all analyzers of one run.
type Env struct {
	Frame *frame.Frame
	Exec  frame.Executor
	Sink  blob.Sink
	Log   *slog.Logger
}

func (e *Env) logger(ctx context.Context, component string) *slog.Logger {
	if e.Log != nil {
		return logging.FromContext(ctx, e.Log.With("analyzer", component))
	}
	return logging.FromContext(ctx, logging.Component(component))
}

// Outcome is what an analyzer produced.
type Outcome struct {
	Analyzer  string
	Record    *Record
	Artifacts []string

	// Errors holds failures of independent units (one histogram column,
	// for example) that did not stop the analyzer.
	Errors []error
}

// Err joins the per-unit errors, or returns nil.
func (o *Outcome) Err() error {
	if o == nil || len(o.Errors) == 0 {
		return nil
	}
	return errors.Join(o.Errors...)
}

// Analyzer computes one family of metrics.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, env *Env) (*Outcome, error)
}
