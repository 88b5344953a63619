package analysis

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
)

// Metric is one named value of a Record.
type Metric struct {
	Name  string
	Value any
}

// Record is an ordered set of metrics. It is immutable once built.
type Record struct {
	metrics []Metric
	index   map[string]int
}

// NewRecord builds a record. A later metric with a repeated name replaces
// the earlier value in place.
func NewRecord(metrics ...Metric) *Record {
	r := &Record{index: make(map[string]int, len(metrics))}
	for _, m := range metrics {
		if i, ok := r.index[m.Name]; ok {
			r.metrics[i].Value = m.Value
			continue
		}
		r.index[m.Name] = len(r.metrics)
		r.metrics = append(r.metrics, m)
	}
	return r
}

// Len returns the number of metrics.
func (r *Record) Len() int { return len(r.metrics) }

// Names returns metric names in order.
func (r *Record) Names() []string {
	names := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		names[i] = m.Name
	}
	return names
}

// Get returns the value of a metric.
func (r *Record) Get(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.metrics[i].Value, true
}

// Metrics returns a copy of the metrics in order.
func (r *Record) Metrics() []Metric {
	return append([]Metric(nil), r.metrics...)
}

// EncodeCSV renders the record as a header row of names and a single row of
// values.
func (r *Record) EncodeCSV() ([]byte, error) {
	values := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		s, err := formatValue(m.Value)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", m.Name, err)
		}
		values[i] = s
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(r.Names()); err != nil {
		return nil, err
	}
	if err := w.Write(values); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case json.Marshaler:
		b, err := x.MarshalJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string
	Count int
}

// Counts is an ordered frequency table. It encodes as a JSON object whose
// keys keep the table order.
type Counts []ValueCount

// Get returns the count for value.
func (c Counts) Get(value string) (int, bool) {
	for _, vc := range c {
		if vc.Value == value {
			return vc.Count, true
		}
	}
	return 0, false
}

// MarshalJSON implements json.Marshaler.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, vc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(vc.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(vc.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
