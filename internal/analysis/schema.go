package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/frame"
)

// SummaryArtifact is the schema/missingness artifact name.
const SummaryArtifact = "eda_summary.csv"

// Schema reports column names, kinds, row count and per-column null counts.
type Schema struct{}

// Name implements Analyzer.
func (Schema) Name() string { return "schema" }

// Analyze implements Analyzer.
func (s Schema) Analyze(ctx context.Context, env *Env) (*Outcome, error) {
	log := env.logger(ctx, s.Name())
	schema := env.Frame.Schema()

	type partStats struct {
		rows  int
		nulls []int
	}
	parts, err := frame.Compute(ctx, env.Exec, env.Frame, func(_ context.Context, _ int, t *frame.Table) (partStats, error) {
		st := partStats{rows: t.NumRows(), nulls: make([]int, schema.Len())}
		for c := range st.nulls {
			st.nulls[c] = t.ColumnAt(c).NullCount()
		}
		return st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("schema summary: %w", err)
	}

	rows := 0
	nulls := make([]int, schema.Len())
	for _, p := range parts {
		rows += p.rows
		for c, n := range p.nulls {
			nulls[c] += n
		}
	}

	metrics := []Metric{
		{Name: "columns", Value: strings.Join(schema.Names(), ", ")},
		{Name: "row_count", Value: rows},
	}
	for c, f := range schema.Fields() {
		metrics = append(metrics,
			Metric{Name: "dtype_" + f.Name, Value: f.Kind.String()},
			Metric{Name: "missing_" + f.Name, Value: nulls[c]},
		)
	}
	rec := NewRecord(metrics...)

	data, err := rec.EncodeCSV()
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	key, err := env.Sink.Put(ctx, SummaryArtifact, data, blob.ContentTypeCSV)
	if err != nil {
		return nil, err
	}

	log.Info("summary written", "key", key, "columns", schema.Len(), "rows", rows)
	return &Outcome{Analyzer: s.Name(), Record: rec, Artifacts: []string{key}}, nil
}
