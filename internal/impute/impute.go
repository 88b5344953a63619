// Package impute substitutes placeholder values in a single column.
package impute

import (
	"context"
	"fmt"

	"github.com/xtxerr/rcaeda/config"
	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/frame"
	"github.com/xtxerr/rcaeda/internal/logging"
)

var log = logging.Component("impute")

// Options names the column and the substitution.
type Options struct {
	Column     string
	Sentinel   string
	Substitute string
}

func (o Options) withDefaults() Options {
	if o.Column == "" {
		o.Column = config.DefaultIdentifierColumn
	}
	if o.Sentinel == "" {
		o.Sentinel = config.DefaultSentinel
	}
	if o.Substitute == "" {
		o.Substitute = config.DefaultSubstitute
	}
	return o
}

// Stats reports what a substitution changed.
type Stats struct {
	Replaced int
	Rows     int
}

// ReplaceSentinel replaces every occurrence of the sentinel in the column
// with the substitute. The column is materialized across all partitions
// and reattached to the original partitions, so the partition count, the
// partition lengths and the key are preserved. Nulls stay null and all
// other columns are untouched. Applying it twice changes nothing the
// second time.
func ReplaceSentinel(ctx context.Context, ex frame.Executor, f *frame.Frame, opts Options) (*frame.Frame, Stats, error) {
	opts = opts.withDefaults()
	if !f.Schema().Has(opts.Column) {
		return nil, Stats{}, fmt.Errorf("impute: %w", errors.NewColumnNotFound(opts.Column))
	}

	// evaluate upstream partitions once for both the read and the reattach
	f, err := frame.Persist(ctx, ex, f)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("impute %q: %w", opts.Column, err)
	}

	parts, err := frame.ColumnParts(ctx, ex, f, opts.Column)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("impute %q: %w", opts.Column, err)
	}

	lengths := make([]int, len(parts))
	for i, p := range parts {
		lengths[i] = p.Len()
	}

	var st Stats
	var replaced []*frame.Column
	if len(parts) > 0 {
		whole, err := frame.ConcatColumns(parts...)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("impute %q: %w", opts.Column, err)
		}
		cleaned, n, err := whole.Replace(opts.Sentinel, opts.Substitute)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("impute %q: %w", opts.Column, err)
		}
		replaced, err = frame.SplitColumn(cleaned, lengths)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("impute %q: %w", opts.Column, err)
		}
		st = Stats{Replaced: n, Rows: whole.Len()}
	}

	out, err := f.ReplaceColumn(opts.Column, replaced)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("impute %q: %w", opts.Column, err)
	}

	logging.FromContext(ctx, log).Info("sentinel replaced",
		"column", opts.Column,
		"sentinel", opts.Sentinel,
		"substitute", opts.Substitute,
		"replaced", st.Replaced,
		"rows", st.Rows,
		"partitions", len(parts))
	return out, st, nil
}
