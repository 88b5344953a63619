package frame

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xtxerr/rcaeda/internal/errors"
)

// ReadOptions controls how a CSV blob is split into partitions.
type ReadOptions struct {
	// RowsPerPartition is the target partition size. Defaults to 50000.
	RowsPerPartition int

	// Partitions caps the partition count. Zero means no cap.
	Partitions int
}

func (o ReadOptions) partitionCount(rows int) int {
	per := o.RowsPerPartition
	if per <= 0 {
		per = 50000
	}
	n := (rows + per - 1) / per
	if o.Partitions > 0 && n > o.Partitions {
		n = o.Partitions
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ReadCSV parses a CSV blob with a header row into a Frame. Column kinds are
// inferred from every row, so all partitions share one schema. Partitions
// are parsed lazily; the returned frame has no partitioning key.
func ReadCSV(data []byte, opts ReadOptions) (*Frame, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedCSV, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header row", errors.ErrMalformedCSV)
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", errors.ErrMalformedCSV, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q", errors.ErrMalformedCSV, name)
		}
		seen[name] = true
	}

	rows := records[1:]
	schema := inferSchema(header, rows)

	n := opts.partitionCount(len(rows))
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		lo := i * len(rows) / n
		hi := (i + 1) * len(rows) / n
		chunk := rows[lo:hi]
		tasks[i] = func(context.Context) (*Table, error) {
			return buildTable(schema, chunk)
		}
	}
	return New(schema, tasks, ""), nil
}

// inferSchema picks the narrowest kind that fits every non-null value:
// int64 when all values are integers and none is null, float64 when all
// are numbers (or the column is entirely null), otherwise object.
func inferSchema(header []string, rows [][]string) Schema {
	fields := make([]Field, len(header))
	for c, name := range header {
		allInt, allFloat, hasNull, hasValue := true, true, false, false
		for _, rec := range rows {
			s := rec[c]
			if IsNA(s) {
				hasNull = true
				continue
			}
			hasValue = true
			if allInt {
				if _, err := strconv.ParseInt(s, 10, 64); err != nil {
					allInt = false
				}
			}
			if allFloat {
				if _, err := strconv.ParseFloat(s, 64); err != nil {
					allFloat = false
				}
			}
			if !allInt && !allFloat {
				break
			}
		}

		kind := KindString
		switch {
		case !hasValue:
			kind = KindFloat64
		case allInt && !hasNull:
			kind = KindInt64
		case allFloat:
			kind = KindFloat64
		}
		fields[c] = Field{Name: name, Kind: kind}
	}
	return NewSchema(fields...)
}

func buildTable(schema Schema, rows [][]string) (*Table, error) {
	cols := make([]*Column, schema.Len())
	text := make([]string, len(rows))
	for c := range cols {
		for r, rec := range rows {
			text[r] = rec[c]
		}
		f := schema.Field(c)
		col, err := NewColumn(f.Name, f.Kind, text)
		if err != nil {
			return nil, err
		}
		cols[c] = col
	}
	return NewTable(schema, cols)
}

// WriteCSV consolidates every partition of f into a single CSV stream:
// one header, partitions in order, nulls as empty fields, no index column.
func WriteCSV(ctx context.Context, ex Executor, f *Frame, w io.Writer) error {
	tables, err := Collect(ctx, ex, f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(f.schema.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rec := make([]string, f.schema.Len())
	for _, t := range tables {
		for r := 0; r < t.NumRows(); r++ {
			for c := range rec {
				rec[c] = t.ColumnAt(c).Text(r)
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeCSV is WriteCSV into a byte slice.
func EncodeCSV(ctx context.Context, ex Executor, f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(ctx, ex, f, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
