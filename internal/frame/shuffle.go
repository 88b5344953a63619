package frame

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/xtxerr/rcaeda/internal/errors"
)

// Assign maps a key value to one of n partitions. The same value always
// maps to the same partition for a given n.
func Assign(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}

// SetKey re-partitions f by the value of column so that equal key values
// share a partition. The partition count is preserved, rows keep their
// relative order within each partition, and the key column is kept.
// The result is held in memory.
func SetKey(ctx context.Context, ex Executor, f *Frame, column string) (*Frame, error) {
	idx, ok := f.schema.Index(column)
	if !ok {
		return nil, errors.NewColumnNotFound(column)
	}
	n := f.NumPartitions()
	if n == 0 {
		return New(f.schema, nil, column), nil
	}

	type split struct {
		table   *Table
		buckets [][]int
	}

	splits, err := Compute(ctx, ex, f, func(_ context.Context, _ int, t *Table) (split, error) {
		col := t.ColumnAt(idx)
		buckets := make([][]int, n)
		for r := 0; r < t.NumRows(); r++ {
			b := Assign(col.Text(r), n)
			buckets[b] = append(buckets[b], r)
		}
		return split{table: t, buckets: buckets}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("shuffle by %q: %w", column, err)
	}

	out := make([]*Table, n)
	err = ex.Run(ctx, n, func(_ context.Context, j int) error {
		pieces := make([]*Table, len(splits))
		for i, s := range splits {
			pieces[i] = s.table.Take(s.buckets[j])
		}
		t, err := Concat(f.schema, pieces...)
		if err != nil {
			return fmt.Errorf("partition %d: %w", j, err)
		}
		out[j] = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("shuffle by %q: %w", column, err)
	}

	return FromTables(f.schema, out, column), nil
}

// EnsureKey returns f unchanged when it already has a partitioning key;
// otherwise it re-partitions by the first column.
func EnsureKey(ctx context.Context, ex Executor, f *Frame) (*Frame, error) {
	if f.KnownDivisions() {
		return f, nil
	}
	if f.schema.Len() == 0 {
		return nil, fmt.Errorf("no columns to key on: %w", errors.ErrEmptyDataset)
	}
	return SetKey(ctx, ex, f, f.schema.Field(0).Name)
}
