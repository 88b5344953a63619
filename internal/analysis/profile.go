package analysis

import (
	"context"
	"fmt"

	"github.com/xtxerr/rcaeda/config"
	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/frame"
)

// ProfileArtifact is the numeric profile artifact name.
const ProfileArtifact = "eda_numeric_profile.parquet"

// Profile summarizes every numeric column: count, nulls, sum, bounds, mean
// and, when enabled, sketch percentiles. Aggregates are built per partition
// and merged in partition order.
type Profile struct {
	Percentiles bool
	Accuracy    float64
	Compression CompressionType
}

// Name implements Analyzer.
func (Profile) Name() string { return "profile" }

func (p Profile) accuracy() float64 {
	if !p.Percentiles {
		return 0
	}
	if p.Accuracy <= 0 {
		return config.DefaultPercentileAccuracy
	}
	return p.Accuracy
}

// Compute builds the merged aggregates without writing anything.
func (p Profile) Compute(ctx context.Context, ex frame.Executor, f *frame.Frame) ([]ProfileRow, error) {
	numeric := f.Schema().Numeric()
	if len(numeric) == 0 {
		return nil, nil
	}
	acc := p.accuracy()

	parts, err := frame.Compute(ctx, ex, f, func(_ context.Context, _ int, t *frame.Table) ([]*ColumnAggregate, error) {
		aggs := make([]*ColumnAggregate, len(numeric))
		for i, fld := range numeric {
			agg, err := NewColumnAggregate(fld.Name, acc)
			if err != nil {
				return nil, err
			}
			col, _ := t.Column(fld.Name)
			agg.AddColumn(col)
			aggs[i] = agg
		}
		return aggs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("numeric profile: %w", err)
	}

	rows := make([]ProfileRow, len(numeric))
	for i, fld := range numeric {
		total, err := NewColumnAggregate(fld.Name, acc)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			if err := total.Merge(part[i]); err != nil {
				return nil, err
			}
		}
		rows[i] = total.Result()
	}
	return rows, nil
}

// Analyze implements Analyzer.
func (p Profile) Analyze(ctx context.Context, env *Env) (*Outcome, error) {
	log := env.logger(ctx, p.Name())

	rows, err := p.Compute(ctx, env.Exec, env.Frame)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		log.Info("no numeric columns, profile skipped")
		return &Outcome{Analyzer: p.Name(), Record: NewRecord()}, nil
	}

	data, err := EncodeProfile(rows, p.Compression)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	key, err := env.Sink.Put(ctx, ProfileArtifact, data, blob.ContentTypeParquet)
	if err != nil {
		return nil, err
	}

	metrics := make([]Metric, 0, 2*len(rows))
	for _, r := range rows {
		metrics = append(metrics,
			Metric{Name: "mean_" + r.Column, Value: r.Mean},
			Metric{Name: "count_" + r.Column, Value: r.Count},
		)
	}
	log.Info("profile written", "key", key, "columns", len(rows))
	return &Outcome{Analyzer: p.Name(), Record: NewRecord(metrics...), Artifacts: []string{key}}, nil
}
