package analysis

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// ProfileRow is one numeric column's profile in Parquet form.
type ProfileRow struct {
	Column    string   `parquet:"column,zstd"`
	Count     int64    `parquet:"count"`
	NullCount int64    `parquet:"null_count"`
	Sum       float64  `parquet:"sum"`
	Min       float64  `parquet:"min"`
	Max       float64  `parquet:"max"`
	Mean      float64  `parquet:"mean"`
	P50       *float64 `parquet:"p50,optional"`
	P90       *float64 `parquet:"p90,optional"`
	P95       *float64 `parquet:"p95,optional"`
	P99       *float64 `parquet:"p99,optional"`
}

// CompressionType names a Parquet compression codec.
type CompressionType string

// Supported codecs.
const (
	CompressionNone   CompressionType = "none"
	CompressionSnappy CompressionType = "snappy"
	CompressionZstd   CompressionType = "zstd"
	CompressionGzip   CompressionType = "gzip"
)

func codec(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionGzip:
		return &parquet.Gzip
	case CompressionNone:
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// EncodeProfile writes rows as a single Parquet file.
func EncodeProfile(rows []ProfileRow, ct CompressionType) ([]byte, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[ProfileRow](&buf, parquet.Compression(codec(ct)))
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			w.Close()
			return nil, fmt.Errorf("write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeProfile reads every row of a profile file.
func DecodeProfile(data []byte) ([]ProfileRow, error) {
	r := parquet.NewGenericReader[ProfileRow](bytes.NewReader(data))
	defer r.Close()

	rows := make([]ProfileRow, r.NumRows())
	n, err := r.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:n], nil
}
