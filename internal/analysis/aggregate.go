package analysis

import (
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/rcaeda/internal/frame"
)

// ColumnAggregate keeps running statistics for one numeric column, with
// optional DDSketch percentiles. Aggregates built on separate partitions
// are combined with Merge. Not safe for concurrent use; each partition
// task owns its aggregates until they are merged.
type ColumnAggregate struct {
	column string

	count  int64
	finite int64
	nulls  int64
	sum    float64
	min    float64
	max    float64

	// nil when percentiles are disabled
	sketch *ddsketch.DDSketch
}

// NewColumnAggregate creates an aggregate. accuracy is the sketch's
// relative accuracy; zero or less disables percentiles.
func NewColumnAggregate(column string, accuracy float64) (*ColumnAggregate, error) {
	agg := &ColumnAggregate{
		column: column,
		min:    math.MaxFloat64,
		max:    -math.MaxFloat64,
	}
	if accuracy > 0 {
		sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
		if err != nil {
			return nil, fmt.Errorf("sketch for %q: %w", column, err)
		}
		agg.sketch = sketch
	}
	return agg, nil
}

// Add records one non-null value. Non-finite values count toward the
// total but are kept out of sum, bounds and percentiles.
func (a *ColumnAggregate) Add(v float64) {
	a.count++
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	a.finite++
	a.sum += v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
	if a.sketch != nil {
		// Add only fails for values outside the sketch's indexable range.
		_ = a.sketch.Add(v)
	}
}

// AddNull records one null.
func (a *ColumnAggregate) AddNull() { a.nulls++ }

// AddColumn records every row of c.
func (a *ColumnAggregate) AddColumn(c *frame.Column) {
	for i := 0; i < c.Len(); i++ {
		v, ok := c.Float(i)
		if !ok {
			a.AddNull()
			continue
		}
		a.Add(v)
	}
}

// Merge folds other into a. Both must describe the same column.
func (a *ColumnAggregate) Merge(other *ColumnAggregate) error {
	if other == nil {
		return nil
	}
	if other.column != a.column {
		return fmt.Errorf("merge %q into %q", other.column, a.column)
	}

	a.count += other.count
	a.finite += other.finite
	a.nulls += other.nulls
	a.sum += other.sum
	if other.min < a.min {
		a.min = other.min
	}
	if other.max > a.max {
		a.max = other.max
	}
	if a.sketch != nil && other.sketch != nil {
		if err := a.sketch.MergeWith(other.sketch); err != nil {
			return fmt.Errorf("merge sketch %q: %w", a.column, err)
		}
	}
	return nil
}

// Count returns the number of non-null values.
func (a *ColumnAggregate) Count() int64 { return a.count }

// Result converts the aggregate into a profile row.
func (a *ColumnAggregate) Result() ProfileRow {
	row := ProfileRow{
		Column:    a.column,
		Count:     a.count,
		NullCount: a.nulls,
		Sum:       a.sum,
	}

	if a.finite > 0 {
		row.Min = a.min
		row.Max = a.max
		row.Mean = a.sum / float64(a.finite)
	}

	if a.sketch != nil && !a.sketch.IsEmpty() {
		row.P50 = quantile(a.sketch, 0.50)
		row.P90 = quantile(a.sketch, 0.90)
		row.P95 = quantile(a.sketch, 0.95)
		row.P99 = quantile(a.sketch, 0.99)
	}
	return row
}

func quantile(s *ddsketch.DDSketch, q float64) *float64 {
	v, err := s.GetValueAtQuantile(q)
	if err != nil {
		return nil
	}
	return &v
}
