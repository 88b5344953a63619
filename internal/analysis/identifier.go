package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/xtxerr/rcaeda/config"
	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/frame"
)

// NullLabel is the frequency-table label for null values.
const NullLabel = "NaN"

// IdentifierArtifact returns the artifact name for an identifier column.
func IdentifierArtifact(column string) string {
	return "eda_analyse_" + column + "_feature.csv"
}

// Identifier measures the quality of a request identifier column: its most
// frequent values, nulls, sentinel placeholders and whether any real value
// repeats anywhere in the dataset.
type Identifier struct {
	Column   string
	Sentinel string
	TopK     int
}

// Name implements Analyzer.
func (Identifier) Name() string { return "identifier" }

func (a Identifier) withDefaults() Identifier {
	if a.Column == "" {
		a.Column = config.DefaultIdentifierColumn
	}
	if a.Sentinel == "" {
		a.Sentinel = config.DefaultSentinel
	}
	if a.TopK <= 0 {
		a.TopK = config.DefaultTopK
	}
	return a
}

// valueCounts is a frequency table that remembers first-seen order.
type valueCounts struct {
	order  []string
	counts map[string]int
	nulls  int
}

func newValueCounts() *valueCounts {
	return &valueCounts{counts: make(map[string]int)}
}

func (vc *valueCounts) add(label string, n int) {
	if _, ok := vc.counts[label]; !ok {
		vc.order = append(vc.order, label)
	}
	vc.counts[label] += n
}

// merge folds other into vc. Labels new to vc keep other's order.
func (vc *valueCounts) merge(other *valueCounts) {
	for _, label := range other.order {
		vc.add(label, other.counts[label])
	}
	vc.nulls += other.nulls
}

// top returns the k most frequent labels, ties in first-seen order.
func (vc *valueCounts) top(k int) Counts {
	out := make(Counts, len(vc.order))
	for i, label := range vc.order {
		out[i] = ValueCount{Value: label, Count: vc.counts[label]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// IdentifierStats is the merged result of an identifier pass.
type IdentifierStats struct {
	Top           Counts
	NullCount     int
	SentinelCount int
	HasDuplicates bool
	Distinct      int
}

// Compute gathers identifier statistics without writing anything.
func (a Identifier) Compute(ctx context.Context, ex frame.Executor, f *frame.Frame) (IdentifierStats, error) {
	a = a.withDefaults()
	if !f.Schema().Has(a.Column) {
		return IdentifierStats{}, errors.NewColumnNotFound(a.Column)
	}

	parts, err := frame.Compute(ctx, ex, f, func(_ context.Context, _ int, t *frame.Table) (*valueCounts, error) {
		col, _ := t.Column(a.Column)
		vc := newValueCounts()
		for r := 0; r < col.Len(); r++ {
			if col.IsNull(r) {
				vc.nulls++
				vc.add(NullLabel, 1)
				continue
			}
			vc.add(col.Text(r), 1)
		}
		return vc, nil
	})
	if err != nil {
		return IdentifierStats{}, fmt.Errorf("identifier %q: %w", a.Column, err)
	}

	total := newValueCounts()
	for _, p := range parts {
		total.merge(p)
	}

	st := IdentifierStats{
		Top:           total.top(a.TopK),
		NullCount:     total.nulls,
		SentinelCount: total.counts[a.Sentinel],
	}
	for label, n := range total.counts {
		if label == a.Sentinel || label == NullLabel {
			continue
		}
		st.Distinct++
		if n > 1 {
			st.HasDuplicates = true
		}
	}
	return st, nil
}

// Analyze implements Analyzer. The column must exist.
func (a Identifier) Analyze(ctx context.Context, env *Env) (*Outcome, error) {
	a = a.withDefaults()
	log := env.logger(ctx, a.Name())

	st, err := a.Compute(ctx, env.Exec, env.Frame)
	if err != nil {
		return nil, err
	}

	col := a.Column
	rec := NewRecord(
		Metric{Name: fmt.Sprintf("%s_top_%d_value_counts", col, a.TopK), Value: st.Top},
		Metric{Name: col + "_null_count", Value: st.NullCount},
		Metric{Name: col + "_dash_count", Value: st.SentinelCount},
		Metric{Name: col + "_has_duplicates", Value: st.HasDuplicates},
	)

	data, err := rec.EncodeCSV()
	if err != nil {
		return nil, fmt.Errorf("encode identifier record: %w", err)
	}
	key, err := env.Sink.Put(ctx, IdentifierArtifact(col), data, blob.ContentTypeCSV)
	if err != nil {
		return nil, err
	}

	log.Info("identifier analysed",
		"column", col,
		"null_count", st.NullCount,
		"dash_count", st.SentinelCount,
		"has_duplicates", st.HasDuplicates,
		"distinct", st.Distinct,
		"key", key)
	return &Outcome{Analyzer: a.Name(), Record: rec, Artifacts: []string{key}}, nil
}
