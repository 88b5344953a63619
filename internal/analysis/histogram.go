package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/xtxerr/rcaeda/config"
	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/frame"
)

// Bin is one histogram bucket. Lo is inclusive; Hi is exclusive except for
// the last bin.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// BinValues splits values into n equal-width bins between their minimum and
// maximum. When all values are equal the range is widened by 0.5 on each
// side. Non-finite values are ignored.
func BinValues(values []float64, n int) []Bin {
	if n <= 0 {
		n = config.DefaultHistogramBins
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return nil
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[n-1].Hi = hi

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		i := int((v - lo) / width)
		if i >= n {
			i = n - 1
		}
		if i < 0 {
			i = 0
		}
		bins[i].Count++
	}
	return bins
}

// HistogramArtifact returns the artifact name for a column.
func HistogramArtifact(column string) string {
	return "histogram_" + column + ".png"
}

// Histogram renders one image per numeric column. Columns are independent:
// a failure on one is recorded in the outcome and the rest still render.
type Histogram struct {
	Bins     int
	Renderer Renderer
}

// Name implements Analyzer.
func (Histogram) Name() string { return "histogram" }

// Analyze implements Analyzer. It fails only when every numeric column
// failed; otherwise per-column failures are reported in Outcome.Errors.
func (h Histogram) Analyze(ctx context.Context, env *Env) (*Outcome, error) {
	log := env.logger(ctx, h.Name())
	bins := h.Bins
	if bins <= 0 {
		bins = config.DefaultHistogramBins
	}
	renderer := h.Renderer
	if renderer == nil {
		renderer = DefaultRenderer
	}

	out := &Outcome{Analyzer: h.Name()}
	var metrics []Metric
	numeric := env.Frame.Schema().Numeric()
	attempted := 0

	for _, f := range numeric {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := columnValues(ctx, env, f.Name)
		if err != nil {
			attempted++
			out.Errors = append(out.Errors, fmt.Errorf("column %q: %w", f.Name, err))
			log.Warn("histogram column failed", "column", f.Name, "error", err)
			continue
		}
		if len(values) == 0 {
			log.Warn("histogram skipped, no values", "column", f.Name)
			continue
		}
		attempted++

		key, table, err := h.renderColumn(ctx, env, renderer, f.Name, values, bins)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Errorf("column %q: %w", f.Name, err))
			log.Warn("histogram column failed", "column", f.Name, "error", err)
			continue
		}
		out.Artifacts = append(out.Artifacts, key)
		metrics = append(metrics, Metric{Name: "histogram_" + f.Name, Value: table})
		log.Debug("histogram written", "column", f.Name, "key", key, "values", len(values))
	}

	out.Record = NewRecord(metrics...)
	if attempted > 0 && len(out.Errors) == attempted {
		return out, fmt.Errorf("all %d histogram columns failed: %w", attempted, out.Err())
	}
	log.Info("histograms rendered", "columns", len(out.Artifacts), "failed", len(out.Errors))
	return out, nil
}

func (h Histogram) renderColumn(ctx context.Context, env *Env, r Renderer, column string, values []float64, bins int) (string, []Bin, error) {
	img, err := r.Render(column, values, bins)
	if err != nil {
		return "", nil, err
	}
	key, err := env.Sink.Put(ctx, HistogramArtifact(column), img, blob.ContentTypePNG)
	if err != nil {
		return "", nil, err
	}
	return key, BinValues(values, bins), nil
}

// columnValues materializes the finite non-null values of a numeric column
// in partition order.
func columnValues(ctx context.Context, env *Env, column string) ([]float64, error) {
	parts, err := frame.ColumnParts(ctx, env.Exec, env.Frame, column)
	if err != nil {
		return nil, err
	}
	var values []float64
	for _, c := range parts {
		for _, v := range c.Floats() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			values = append(values, v)
		}
	}
	return values, nil
}
