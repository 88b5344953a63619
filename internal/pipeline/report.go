package pipeline

import (
	"time"

	"github.com/xtxerr/rcaeda/internal/analysis"
)

// Status is the overall result of a run.
type Status string

const (
	// StatusSuccess means every step completed.
	StatusSuccess Status = "success"
	// StatusPartial means an isolated step failed; the dataset was still
	// processed.
	StatusPartial Status = "partial"
	// StatusFailed means connect, load, imputation or write-back failed.
	StatusFailed Status = "failed"
)

// StepStatus is the result of one step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step names.
const (
	StepConnect    = "connect"
	StepLoad       = "load"
	StepIdentifier = "identifier"
	StepImpute     = "impute"
	StepWriteBack  = "write-back"
	StepDisconnect = "disconnect"
)

// IdentifierOutcome says what the identifier pass did.
type IdentifierOutcome string

const (
	// IdentifierPresent means sentinels were replaced and the dataset was
	// written back.
	IdentifierPresent IdentifierOutcome = "present"
	// IdentifierAlreadyClean means the column exists but holds no
	// sentinel, so nothing was written.
	IdentifierAlreadyClean IdentifierOutcome = "already-clean"
	// IdentifierAbsent means the column does not exist; nothing was
	// written.
	IdentifierAbsent IdentifierOutcome = "absent"
)

// StepResult records one executed or skipped step.
type StepResult struct {
	Name      string
	Status    StepStatus
	Err       error
	Duration  time.Duration
	Artifacts []string
	Fatal     bool
}

// Report is the structured result of a run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Status   Status

	Steps      []StepResult
	Identifier IdentifierOutcome

	Rows       int
	Partitions int
	Replaced   int

	// Workers is the cluster pool size, zero when the handle does not
	// report one.
	Workers int

	// Records holds each analyzer's metrics by analyzer name.
	Records map[string]*analysis.Record

	// Err is the error that stopped the run, if any.
	Err error
}

func newReport(runID string, started time.Time) *Report {
	return &Report{
		RunID:   runID,
		Started: started,
		Records: make(map[string]*analysis.Record),
	}
}

func (r *Report) add(s StepResult) {
	r.Steps = append(r.Steps, s)
}

// Step returns the result of the named step.
func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Failed returns the failed steps in order.
func (r *Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			out = append(out, s)
		}
	}
	return out
}

// Artifacts returns every key written, in step order.
func (r *Report) Artifacts() []string {
	var out []string
	for _, s := range r.Steps {
		out = append(out, s.Artifacts...)
	}
	return out
}

func (r *Report) finalize(end time.Time) {
	r.Duration = end.Sub(r.Started)
	switch {
	case r.Err != nil:
		r.Status = StatusFailed
	case len(r.Failed()) > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
}
