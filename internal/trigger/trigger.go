// Package trigger runs the pipeline on a cron schedule.
//
// Only one run is active at a time: a tick that fires while the previous
// run is still going is skipped, not queued.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/logging"
)

var log = logging.Component("trigger")

// Job is the work run on each tick.
type Job func(ctx context.Context)

// Trigger schedules a job with a standard five-field cron expression.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron

	// job is the non-overlapping wrapper shared by ticks and RunNow.
	job cron.Job
	fn  Job

	ctx    context.Context
	cancel context.CancelFunc
	manual sync.WaitGroup

	started atomic.Bool

	fired   atomic.Int64
	runs    atomic.Int64
	skipped atomic.Int64
}

// Validate reports whether spec is a valid five-field cron expression.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("schedule %q: %v: %w", spec, err, errors.ErrInvalidConfig)
	}
	return nil
}

// New validates spec and builds a stopped trigger.
func New(spec string, fn Job) (*Trigger, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %v: %w", spec, err, errors.ErrInvalidConfig)
	}

	t := &Trigger{
		spec:     spec,
		schedule: schedule,
		fn:       fn,
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())

	logger := cronLogger{log: log}
	t.cron = cron.New(cron.WithLogger(logger))

	// SkipIfStillRunning reports each dropped tick as an Info "skip".
	chainLogger := cronLogger{log: log, onSkip: func() { t.skipped.Add(1) }}
	runner := cron.NewChain(cron.Recover(chainLogger), cron.SkipIfStillRunning(chainLogger)).
		Then(cron.FuncJob(func() {
			t.runs.Add(1)
			t.fn(t.ctx)
		}))
	t.job = cron.FuncJob(func() {
		t.fired.Add(1)
		runner.Run()
	})
	t.cron.Schedule(schedule, t.job)
	return t, nil
}

// Spec returns the cron expression.
func (t *Trigger) Spec() string { return t.spec }

// Next returns the next scheduled time after now.
func (t *Trigger) Next(now time.Time) time.Time { return t.schedule.Next(now) }

// Start begins scheduling. parent cancels in-flight runs when done.
func (t *Trigger) Start(parent context.Context) {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		select {
		case <-parent.Done():
			t.cancel()
		case <-t.ctx.Done():
		}
	}()
	t.cron.Start()
	log.Info("trigger started", "schedule", t.spec, "next", t.Next(time.Now()))
}

// RunNow runs the job immediately and blocks until it finishes. It is
// skipped when a run is already active.
func (t *Trigger) RunNow() {
	t.manual.Add(1)
	defer t.manual.Done()
	t.job.Run()
}

// Stop halts scheduling, cancels the job context and waits for any active
// run, or until ctx is done.
func (t *Trigger) Stop(ctx context.Context) error {
	log.Info("trigger stopping")
	done := t.cron.Stop()
	t.cancel()

	finished := make(chan struct{})
	go func() {
		<-done.Done()
		t.manual.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Info("trigger stopped", "runs", t.runs.Load(), "skipped", t.skipped.Load())
		return nil
	case <-ctx.Done():
		log.Warn("trigger stop timed out with a run still active")
		return ctx.Err()
	}
}

// Stats returns how many times the job fired, ran and was skipped.
func (t *Trigger) Stats() (fired, runs, skipped int64) {
	return t.fired.Load(), t.runs.Load(), t.skipped.Load()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log    *slog.Logger
	onSkip func()
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" && l.onSkip != nil {
		l.onSkip()
		l.log.Warn("run still active, tick skipped")
		return
	}
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
