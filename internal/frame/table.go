package frame

import (
	"fmt"
	"strconv"

	"github.com/xtxerr/rcaeda/internal/errors"
)

// naTokens are the strings read as null. This is the pandas default set,
// so "-" is a regular value.
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsNA reports whether s is read as a null value.
func IsNA(s string) bool {
	_, ok := naTokens[s]
	return ok
}

// Column is one partition's values for a single field.
type Column struct {
	field Field
	text  []string
	valid []bool
	num   []float64 // numeric kinds only
}

// NewColumn builds a column from raw CSV text. NA tokens become nulls.
// Numeric kinds fail if a non-null value does not parse.
func NewColumn(name string, kind Kind, text []string) (*Column, error) {
	c := &Column{
		field: Field{Name: name, Kind: kind},
		text:  make([]string, len(text)),
		valid: make([]bool, len(text)),
	}
	if kind.Numeric() {
		c.num = make([]float64, len(text))
	}

	for i, s := range text {
		if IsNA(s) {
			continue
		}
		c.text[i] = s
		c.valid[i] = true
		if kind.Numeric() {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %q is not %s: %w",
					name, i, s, kind, errors.ErrSchemaMismatch)
			}
			c.num[i] = v
		}
	}
	return c, nil
}

// Name returns the column name.
func (c *Column) Name() string { return c.field.Name }

// Kind returns the column kind.
func (c *Column) Kind() Kind { return c.field.Kind }

// Field returns the column's schema field.
func (c *Column) Field() Field { return c.field }

// Len returns the number of rows.
func (c *Column) Len() int { return len(c.text) }

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool { return !c.valid[i] }

// Text returns the original text of row i, or "" when null.
func (c *Column) Text(i int) string { return c.text[i] }

// Float returns the numeric value of row i. ok is false for nulls and
// non-numeric columns.
func (c *Column) Float(i int) (v float64, ok bool) {
	if c.num == nil || !c.valid[i] {
		return 0, false
	}
	return c.num[i], true
}

// NullCount returns the number of null rows.
func (c *Column) NullCount() int {
	n := 0
	for _, ok := range c.valid {
		if !ok {
			n++
		}
	}
	return n
}

// Floats returns the non-null numeric values in row order.
func (c *Column) Floats() []float64 {
	if c.num == nil {
		return nil
	}
	out := make([]float64, 0, len(c.num))
	for i, v := range c.num {
		if c.valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// Replace returns a copy with every non-null occurrence of old set to repl,
// and the number of rows changed. Nulls are never matched. A numeric
// column only needs repl to parse as a number when old occurs.
func (c *Column) Replace(old, repl string) (*Column, int, error) {
	out := &Column{
		field: c.field,
		text:  make([]string, len(c.text)),
		valid: make([]bool, len(c.valid)),
	}
	copy(out.text, c.text)
	copy(out.valid, c.valid)
	if c.num != nil {
		out.num = make([]float64, len(c.num))
		copy(out.num, c.num)
	}

	var matches []int
	for i, s := range c.text {
		if c.valid[i] && s == old {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return out, 0, nil
	}

	var replVal float64
	if c.field.Kind.Numeric() {
		v, err := strconv.ParseFloat(repl, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("column %q is %s, substitute %q: %w",
				c.field.Name, c.field.Kind, repl, errors.ErrSchemaMismatch)
		}
		replVal = v
	}

	for _, i := range matches {
		out.text[i] = repl
		if out.num != nil {
			out.num[i] = replVal
		}
	}
	return out, len(matches), nil
}

// take returns a new column holding the given rows in order.
func (c *Column) take(rows []int) *Column {
	out := &Column{
		field: c.field,
		text:  make([]string, len(rows)),
		valid: make([]bool, len(rows)),
	}
	if c.num != nil {
		out.num = make([]float64, len(rows))
	}
	for j, r := range rows {
		out.text[j] = c.text[r]
		out.valid[j] = c.valid[r]
		if c.num != nil {
			out.num[j] = c.num[r]
		}
	}
	return out
}

// slice returns rows [lo, hi) as a new column sharing no storage.
func (c *Column) slice(lo, hi int) *Column {
	rows := make([]int, hi-lo)
	for i := range rows {
		rows[i] = lo + i
	}
	return c.take(rows)
}

// ConcatColumns joins columns of the same field end to end.
func ConcatColumns(cols ...*Column) (*Column, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("concat: no columns: %w", errors.ErrInvalidPartition)
	}
	field := cols[0].field
	total := 0
	for _, c := range cols {
		if c.field != field {
			return nil, fmt.Errorf("concat %q with %q: %w", field.Name, c.field.Name, errors.ErrSchemaMismatch)
		}
		total += c.Len()
	}

	out := &Column{
		field: field,
		text:  make([]string, 0, total),
		valid: make([]bool, 0, total),
	}
	if field.Kind.Numeric() {
		out.num = make([]float64, 0, total)
	}
	for _, c := range cols {
		out.text = append(out.text, c.text...)
		out.valid = append(out.valid, c.valid...)
		if out.num != nil {
			out.num = append(out.num, c.num...)
		}
	}
	return out, nil
}

// SplitColumn cuts c into consecutive pieces of the given lengths.
func SplitColumn(c *Column, lengths []int) ([]*Column, error) {
	total := 0
	for _, n := range lengths {
		total += n
	}
	if total != c.Len() {
		return nil, fmt.Errorf("split %q: %d rows into %d: %w", c.Name(), c.Len(), total, errors.ErrInvalidPartition)
	}

	out := make([]*Column, len(lengths))
	lo := 0
	for i, n := range lengths {
		out[i] = c.slice(lo, lo+n)
		lo += n
	}
	return out, nil
}

// Table is one materialized partition.
type Table struct {
	schema Schema
	cols   []*Column
	rows   int
}

// NewTable assembles columns into a table. Columns must match the schema
// and have equal lengths.
func NewTable(schema Schema, cols []*Column) (*Table, error) {
	if len(cols) != schema.Len() {
		return nil, fmt.Errorf("table has %d columns, schema %d: %w", len(cols), schema.Len(), errors.ErrSchemaMismatch)
	}
	rows := 0
	for i, c := range cols {
		if c.field != schema.Field(i) {
			return nil, fmt.Errorf("column %d is %s:%s, schema wants %s:%s: %w",
				i, c.Name(), c.Kind(), schema.Field(i).Name, schema.Field(i).Kind, errors.ErrSchemaMismatch)
		}
		if i == 0 {
			rows = c.Len()
		} else if c.Len() != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d: %w", c.Name(), c.Len(), rows, errors.ErrInvalidPartition)
		}
	}
	return &Table{schema: schema, cols: cols, rows: rows}, nil
}

// Schema returns the table schema.
func (t *Table) Schema() Schema { return t.schema }

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.schema.Index(name)
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// WithColumn returns a table with the same-named column replaced by c.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	i, ok := t.schema.Index(c.Name())
	if !ok {
		return nil, errors.NewColumnNotFound(c.Name())
	}
	cols := make([]*Column, len(t.cols))
	copy(cols, t.cols)
	cols[i] = c
	return NewTable(t.schema, cols)
}

// Take returns a table holding the given rows in order.
func (t *Table) Take(rows []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.take(rows)
	}
	return &Table{schema: t.schema, cols: cols, rows: len(rows)}
}

// Concat stacks tables with the given schema. Zero tables yields an empty table.
func Concat(schema Schema, tables ...*Table) (*Table, error) {
	cols := make([]*Column, schema.Len())
	for i := range cols {
		parts := make([]*Column, 0, len(tables)+1)
		parts = append(parts, &Column{field: schema.Field(i)})
		if schema.Field(i).Kind.Numeric() {
			parts[0].num = []float64{}
		}
		for _, t := range tables {
			if !t.schema.Equal(schema) {
				return nil, fmt.Errorf("concat: %w", errors.ErrSchemaMismatch)
			}
			parts = append(parts, t.cols[i])
		}
		c, err := ConcatColumns(parts...)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return NewTable(schema, cols)
}
