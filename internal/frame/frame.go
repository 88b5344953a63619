package frame

import (
	"context"
	"fmt"

	"github.com/xtxerr/rcaeda/internal/errors"
)

// Executor runs n independent partition tasks. Implementations may run
// them concurrently; the first error cancels the rest and is returned.
type Executor interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

// Task produces one partition when evaluated.
type Task func(ctx context.Context) (*Table, error)

// Frame is a deferred, horizontally partitioned table.
type Frame struct {
	schema Schema
	tasks  []Task
	key    string
}

// New builds a frame from partition tasks. key names the partitioning key
// column, or "" when partitions have no known ordering.
func New(schema Schema, tasks []Task, key string) *Frame {
	return &Frame{schema: schema, tasks: tasks, key: key}
}

// FromTables wraps already materialized partitions.
func FromTables(schema Schema, tables []*Table, key string) *Frame {
	tasks := make([]Task, len(tables))
	for i, t := range tables {
		t := t
		tasks[i] = func(context.Context) (*Table, error) { return t, nil }
	}
	return New(schema, tasks, key)
}

// Schema returns the column set shared by all partitions.
func (f *Frame) Schema() Schema { return f.schema }

// NumPartitions returns the partition count.
func (f *Frame) NumPartitions() int { return len(f.tasks) }

// Key returns the partitioning key column, or "".
func (f *Frame) Key() string { return f.key }

// KnownDivisions reports whether a partitioning key has been established.
func (f *Frame) KnownDivisions() bool { return f.key != "" }

// MapPartitions returns a frame whose partitions are fn applied to each
// partition of f. Nothing runs until the result is materialized. fn must
// keep the schema.
func (f *Frame) MapPartitions(fn func(ctx context.Context, i int, t *Table) (*Table, error)) *Frame {
	tasks := make([]Task, len(f.tasks))
	for i, parent := range f.tasks {
		i, parent := i, parent
		tasks[i] = func(ctx context.Context) (*Table, error) {
			t, err := parent(ctx)
			if err != nil {
				return nil, err
			}
			out, err := fn(ctx, i, t)
			if err != nil {
				return nil, err
			}
			if !out.Schema().Equal(f.schema) {
				return nil, fmt.Errorf("partition %d: %w", i, errors.ErrSchemaMismatch)
			}
			return out, nil
		}
	}
	return New(f.schema, tasks, f.key)
}

// ReplaceColumn returns a frame in which the named column of partition i is
// replaced by parts[i]. The partition count and key are unchanged.
func (f *Frame) ReplaceColumn(name string, parts []*Column) (*Frame, error) {
	if !f.schema.Has(name) {
		return nil, errors.NewColumnNotFound(name)
	}
	if len(parts) != len(f.tasks) {
		return nil, fmt.Errorf("replace %q: %d parts for %d partitions: %w",
			name, len(parts), len(f.tasks), errors.ErrInvalidPartition)
	}
	return f.MapPartitions(func(_ context.Context, i int, t *Table) (*Table, error) {
		return t.WithColumn(parts[i])
	}), nil
}

// Compute evaluates every partition on ex and applies fn to each. Results
// are returned in partition order.
func Compute[T any](ctx context.Context, ex Executor, f *Frame, fn func(ctx context.Context, i int, t *Table) (T, error)) ([]T, error) {
	out := make([]T, len(f.tasks))
	err := ex.Run(ctx, len(f.tasks), func(ctx context.Context, i int) error {
		t, err := f.tasks[i](ctx)
		if err != nil {
			return fmt.Errorf("partition %d: %w", i, err)
		}
		v, err := fn(ctx, i, t)
		if err != nil {
			return fmt.Errorf("partition %d: %w", i, err)
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Collect materializes every partition.
func Collect(ctx context.Context, ex Executor, f *Frame) ([]*Table, error) {
	return Compute(ctx, ex, f, func(_ context.Context, _ int, t *Table) (*Table, error) {
		return t, nil
	})
}

// Persist materializes f and returns an equivalent frame whose partitions
// are held in memory, so later computations do not repeat upstream work.
func Persist(ctx context.Context, ex Executor, f *Frame) (*Frame, error) {
	tables, err := Collect(ctx, ex, f)
	if err != nil {
		return nil, err
	}
	return FromTables(f.schema, tables, f.key), nil
}

// Gather materializes f into a single table.
func Gather(ctx context.Context, ex Executor, f *Frame) (*Table, error) {
	tables, err := Collect(ctx, ex, f)
	if err != nil {
		return nil, err
	}
	return Concat(f.schema, tables...)
}

// ColumnParts materializes one column of every partition.
func ColumnParts(ctx context.Context, ex Executor, f *Frame, name string) ([]*Column, error) {
	if !f.schema.Has(name) {
		return nil, errors.NewColumnNotFound(name)
	}
	return Compute(ctx, ex, f, func(_ context.Context, _ int, t *Table) (*Column, error) {
		c, _ := t.Column(name)
		return c, nil
	})
}

// NumRows counts rows across all partitions.
func NumRows(ctx context.Context, ex Executor, f *Frame) (int, error) {
	counts, err := Compute(ctx, ex, f, func(_ context.Context, _ int, t *Table) (int, error) {
		return t.NumRows(), nil
	})
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}
