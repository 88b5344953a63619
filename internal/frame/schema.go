package frame

import "strings"

// Kind is the inferred type of a column.
type Kind int

const (
	// KindString holds arbitrary text. Reported as "object".
	KindString Kind = iota
	// KindInt64 holds integers with no nulls.
	KindInt64
	// KindFloat64 holds floats, or integers mixed with nulls.
	KindFloat64
)

// String returns the dtype name used in analysis output.
func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	default:
		return "object"
	}
}

// Numeric reports whether values of this kind are numbers.
func (k Kind) Numeric() bool {
	return k == KindInt64 || k == KindFloat64
}

// Field is a named, typed column slot.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered column set shared by every partition of a Frame.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from fields in order.
func NewSchema(fields ...Field) Schema {
	s := Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)
	for i, f := range fields {
		s.index[f.Name] = i
	}
	return s
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the i-th field.
func (s Schema) Field(i int) Field { return s.fields[i] }

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named column.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Lookup returns the named field.
func (s Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether the named column exists.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Numeric returns the numeric fields in order.
func (s Schema) Numeric() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Kind.Numeric() {
			out = append(out, f)
		}
	}
	return out
}

// Equal reports whether both schemas have the same fields in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

// String renders the schema as "name:dtype" pairs.
func (s Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + ":" + f.Kind.String()
	}
	return strings.Join(parts, ", ")
}
