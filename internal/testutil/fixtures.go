// Package testutil provides fixtures shared by package tests: CSV
// builders, a fault-injecting store and a connector that tracks cluster
// clients.
package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"
)

// CSV builds a CSV blob row by row.
type CSV struct {
	header []string
	rows   [][]string
}

// NewCSV starts a blob with the given header.
func NewCSV(header ...string) *CSV {
	return &CSV{header: header}
}

// Row appends a record. It panics when the field count does not match the
// header.
func (c *CSV) Row(values ...string) *CSV {
	if len(values) != len(c.header) {
		panic(fmt.Sprintf("testutil: row has %d fields, header %d", len(values), len(c.header)))
	}
	c.rows = append(c.rows, values)
	return c
}

// Len returns the number of data rows.
func (c *CSV) Len() int { return len(c.rows) }

// Bytes encodes the blob.
func (c *CSV) Bytes() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(c.header)
	_ = w.WriteAll(c.rows)
	return buf.Bytes()
}

// Scenario constants for LogScenario.
const (
	ScenarioRows    = 100
	ScenarioUnique  = 90
	ScenarioDashes  = 5
	ScenarioNulls   = 5
	ScenarioColumns = 6
)

// LogScenario returns a structured log with 100 rows: 90 distinct request
// identifiers, 5 "-" placeholders and 5 empty identifiers, plus a numeric
// latency_ms column with no nulls.
func LogScenario() *CSV {
	c := NewCSV("line_id", "timestamp", "level", "component", "latency_ms", "request_id")
	levels := []string{"INFO", "INFO", "WARNING", "ERROR"}
	components := []string{"nova.compute.manager", "nova.osapi_compute.wsgi.server", "nova.metadata.wsgi.server"}
	for i := 0; i < ScenarioRows; i++ {
		var req string
		switch {
		case i%20 == 3:
			req = "-"
		case i%20 == 11:
			req = ""
		default:
			req = fmt.Sprintf("req-%08x-%04d", 0x5f3a0000+i, i)
		}
		c.Row(
			fmt.Sprint(i+1),
			fmt.Sprintf("2017-05-16 00:%02d:%02d.%03d", i/60, i%60, (i*37)%1000),
			levels[i%len(levels)],
			components[i%len(components)],
			fmt.Sprint(10+(i*7)%90),
			req,
		)
	}
	return c
}

// NoIdentifierScenario is LogScenario without the request_id column.
func NoIdentifierScenario() *CSV {
	src := LogScenario()
	c := NewCSV(src.header[:len(src.header)-1]...)
	for _, r := range src.rows {
		c.Row(r[:len(r)-1]...)
	}
	return c
}

// MustEqualBytes fails the test when got and want differ.
func MustEqualBytes(t testing.TB, got, want []byte) {
	t.Helper()
	if !bytes.Equal(got, want) {
		t.Fatalf("bytes differ:\n got %d bytes: %.200q\nwant %d bytes: %.200q", len(got), got, len(want), want)
	}
}
