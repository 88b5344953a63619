// Package pipeline runs the EDA stage end to end.
//
// A run is a linear sequence of steps:
//
//	connect -> load -> schema, histogram, profile -> identifier pass -> disconnect
//
// connect and load are fatal. The generic analyzers are isolated from each
// other. The identifier pass is chosen once from the loaded schema: when
// the identifier column exists it is analysed (isolated), imputed and the
// dataset written back (both fatal); otherwise nothing is written.
// Disconnect runs on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xtxerr/rcaeda/config"
	"github.com/xtxerr/rcaeda/internal/analysis"
	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/cluster"
	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/frame"
	"github.com/xtxerr/rcaeda/internal/impute"
	"github.com/xtxerr/rcaeda/internal/logging"
)

var log = logging.Component("pipeline")

// Cluster is an open compute handle.
type Cluster interface {
	frame.Executor
	Close() error
}

// Connector opens a cluster handle for an endpoint.
type Connector func(ctx context.Context, endpoint string) (Cluster, error)

// ClusterConnector connects through the cluster package.
func ClusterConnector(ctx context.Context, endpoint string) (Cluster, error) {
	c, err := cluster.Connect(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Recorder receives run telemetry.
type Recorder interface {
	StepFinished(step string, status StepStatus, d time.Duration)
	RunFinished(status Status, d time.Duration)
	ArtifactsWritten(step string, n int)
	ValuesImputed(n int)
}

type nopRecorder struct{}

func (nopRecorder) StepFinished(string, StepStatus, time.Duration) {}
func (nopRecorder) RunFinished(Status, time.Duration)              {}
func (nopRecorder) ArtifactsWritten(string, int)                   {}
func (nopRecorder) ValuesImputed(int)                              {}

// Config holds everything a run needs besides the store.
type Config struct {
	Bucket       string
	SilverKey    string
	Endpoint     string
	OutputPrefix string
	Read         frame.ReadOptions

	// Analyzers are the generic, column-agnostic analyzers.
	Analyzers []analysis.Analyzer

	Identifier analysis.Identifier
	Substitute string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithConnector replaces the cluster connector.
func WithConnector(c Connector) Option {
	return func(r *Runner) { r.connect = c }
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.rec = rec }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes runs. It is safe to reuse but not to run concurrently
// against the same silver blob.
type Runner struct {
	cfg     Config
	store   blob.Store
	connect Connector
	rec     Recorder
	now     func() time.Time
}

// New builds a runner.
func New(cfg Config, store blob.Store, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		store:   store,
		connect: ClusterConnector,
		rec:     nopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.Analyzers == nil {
		r.cfg.Analyzers = DefaultAnalyzers(analysis.Histogram{}, &analysis.Profile{Percentiles: true})
	}
	return r
}

// DefaultAnalyzers returns the generic analyzers in run order. A nil
// profile leaves the numeric profile out.
func DefaultAnalyzers(h analysis.Histogram, p *analysis.Profile) []analysis.Analyzer {
	out := []analysis.Analyzer{analysis.Schema{}, h}
	if p != nil {
		out = append(out, *p)
	}
	return out
}

// Run executes one run and always returns a report.
func (r *Runner) Run(ctx context.Context) (rep *Report) {
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	rlog := logging.FromContext(ctx, log)

	rep = newReport(runID, r.now())
	rlog.Info("run started", "bucket", r.cfg.Bucket, "silver_key", r.cfg.SilverKey, "endpoint", r.cfg.Endpoint)

	defer func() {
		if p := recover(); p != nil {
			rep.Err = fmt.Errorf("%w: %v", errors.ErrPanic, p)
		}
		rep.finalize(r.now())
		r.rec.RunFinished(rep.Status, rep.Duration)
		if rep.Err != nil {
			rlog.Error("run failed", "status", rep.Status, "error", rep.Err, "duration", rep.Duration)
			return
		}
		rlog.Info("run finished", "status", rep.Status, "identifier", rep.Identifier,
			"rows", rep.Rows, "replaced", rep.Replaced, "failed_steps", len(rep.Failed()),
			"duration", rep.Duration)
	}()

	var cl Cluster
	err := r.step(ctx, rep, StepConnect, true, func(ctx context.Context) ([]string, error) {
		c, err := r.connect(ctx, r.cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		cl = c
		if w, ok := c.(interface{ Workers() int }); ok {
			rep.Workers = w.Workers()
		}
		return nil, nil
	})
	if err != nil {
		return rep
	}
	defer r.disconnect(ctx, rep, cl)

	var f *frame.Frame
	err = r.step(ctx, rep, StepLoad, true, func(ctx context.Context) ([]string, error) {
		loaded, err := r.load(ctx, cl)
		if err != nil {
			return nil, err
		}
		f = loaded
		return nil, nil
	})
	if err != nil {
		return rep
	}

	rows, err := frame.NumRows(ctx, cl, f)
	if err != nil {
		rep.Err = fmt.Errorf("count rows: %w", err)
		return rep
	}
	rep.Rows = rows
	rep.Partitions = f.NumPartitions()

	env := &analysis.Env{
		Frame: f,
		Exec:  cl,
		Sink:  blob.Sink{Store: r.store, Bucket: r.cfg.Bucket, Prefix: r.cfg.OutputPrefix},
	}
	for _, a := range r.cfg.Analyzers {
		a := a
		_ = r.step(ctx, rep, a.Name(), false, func(ctx context.Context) ([]string, error) {
			out, err := a.Analyze(ctx, env)
			if out != nil && out.Record != nil {
				rep.Records[a.Name()] = out.Record
			}
			if err != nil {
				return artifactsOf(out), err
			}
			return artifactsOf(out), out.Err()
		})
	}

	r.identifierPass(ctx, rep, cl, env)
	return rep
}

func artifactsOf(o *analysis.Outcome) []string {
	if o == nil {
		return nil
	}
	return o.Artifacts
}

func (r *Runner) load(ctx context.Context, ex frame.Executor) (*frame.Frame, error) {
	data, err := r.store.Get(ctx, r.cfg.Bucket, r.cfg.SilverKey)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", r.cfg.Bucket, r.cfg.SilverKey, err)
	}
	f, err := frame.ReadCSV(data, r.cfg.Read)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.cfg.SilverKey, err)
	}
	keyed, err := frame.EnsureKey(ctx, ex, f)
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", r.cfg.SilverKey, err)
	}
	logging.FromContext(ctx, log).Info("dataset loaded",
		"bytes", len(data),
		"columns", keyed.Schema().Len(),
		"partitions", keyed.NumPartitions(),
		"key", keyed.Key())
	return keyed, nil
}

// identifierPass selects the strategy for the identifier column and runs
// it.
func (r *Runner) identifierPass(ctx context.Context, rep *Report, ex frame.Executor, env *analysis.Env) {
	id := r.cfg.Identifier
	if id.Column == "" {
		id.Column = config.DefaultIdentifierColumn
	}
	plog := logging.FromContext(ctx, log).With("column", id.Column)

	if !env.Frame.Schema().Has(id.Column) {
		rep.Identifier = IdentifierAbsent
		for _, name := range []string{StepIdentifier, StepImpute, StepWriteBack} {
			r.skip(rep, name)
		}
		plog.Info("identifier column absent, dataset left unchanged")
		return
	}

	_ = r.step(ctx, rep, StepIdentifier, false, func(ctx context.Context) ([]string, error) {
		out, err := id.Analyze(ctx, env)
		if err != nil {
			return nil, err
		}
		rep.Records[id.Name()] = out.Record
		return out.Artifacts, nil
	})

	var cleaned *frame.Frame
	var stats impute.Stats
	err := r.step(ctx, rep, StepImpute, true, func(ctx context.Context) ([]string, error) {
		out, st, err := impute.ReplaceSentinel(ctx, ex, env.Frame, impute.Options{
			Column:     id.Column,
			Sentinel:   id.Sentinel,
			Substitute: r.cfg.Substitute,
		})
		if err != nil {
			return nil, err
		}
		cleaned, stats = out, st
		return nil, nil
	})
	if err != nil {
		r.skip(rep, StepWriteBack)
		return
	}
	rep.Replaced = stats.Replaced
	r.rec.ValuesImputed(stats.Replaced)

	if stats.Replaced == 0 {
		rep.Identifier = IdentifierAlreadyClean
		r.skip(rep, StepWriteBack)
		plog.Info("no sentinel values, write-back skipped")
		return
	}

	err = r.step(ctx, rep, StepWriteBack, true, func(ctx context.Context) ([]string, error) {
		data, err := frame.EncodeCSV(ctx, ex, cleaned)
		if err != nil {
			return nil, fmt.Errorf("%w: encode: %w", errors.ErrWriteBackFailed, err)
		}
		if err := r.store.Put(ctx, r.cfg.Bucket, r.cfg.SilverKey, data, blob.ContentTypeCSV); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrWriteBackFailed, err)
		}
		return []string{r.cfg.SilverKey}, nil
	})
	if err == nil {
		rep.Identifier = IdentifierPresent
	}
}

func (r *Runner) disconnect(ctx context.Context, rep *Report, cl Cluster) {
	_ = r.step(ctx, rep, StepDisconnect, false, func(context.Context) ([]string, error) {
		return nil, cl.Close()
	})
}

func (r *Runner) skip(rep *Report, name string) {
	rep.add(StepResult{Name: name, Status: StepSkipped})
	r.rec.StepFinished(name, StepSkipped, 0)
}

// step runs fn under a recover guard and records its result. A failed
// fatal step sets rep.Err.
func (r *Runner) step(ctx context.Context, rep *Report, name string, fatal bool, fn func(context.Context) ([]string, error)) error {
	ctx = logging.ContextWithStep(ctx, name)
	slg := logging.FromContext(ctx, log)
	start := r.now()
	slg.Debug("step started")

	artifacts, err := guard(ctx, fn)
	res := StepResult{
		Name:      name,
		Status:    StepOK,
		Err:       err,
		Duration:  r.now().Sub(start),
		Artifacts: artifacts,
		Fatal:     fatal,
	}
	if err != nil {
		res.Status = StepFailed
	}
	rep.add(res)
	r.rec.StepFinished(name, res.Status, res.Duration)
	if len(artifacts) > 0 {
		r.rec.ArtifactsWritten(name, len(artifacts))
	}

	switch {
	case err == nil:
		slg.Info("step finished", "duration", res.Duration, "artifacts", len(artifacts))
	case fatal:
		rep.Err = fmt.Errorf("%s: %w", name, err)
		slg.Error("step failed", "error", err, "duration", res.Duration)
	default:
		slg.Warn("step failed, continuing", "error", err, "duration", res.Duration)
	}
	return err
}

func guard(ctx context.Context, fn func(context.Context) ([]string, error)) (artifacts []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", errors.ErrPanic, p)
		}
	}()
	return fn(ctx)
}
