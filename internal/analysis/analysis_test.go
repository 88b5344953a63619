package analysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/frame"
	"github.com/xtxerr/rcaeda/internal/testutil"
)

type serial struct{}

func (serial) Run(ctx context.Context, n int, fn func(context.Context, int) error) error {
	for i := 0; i < n; i++ {
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func newEnv(t *testing.T, data []byte, opts frame.ReadOptions) (*Env, *blob.MemoryStore) {
	t.Helper()
	f, err := frame.ReadCSV(data, opts)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	mem := blob.NewMemoryStore()
	return &Env{
		Frame: f,
		Exec:  serial{},
		Sink:  blob.Sink{Store: mem, Bucket: "bkt", Prefix: "logs/eda_output"},
	}, mem
}

func readRecordCSV(t *testing.T, data []byte) map[string]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse record csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("record csv has %d rows, want 2", len(rows))
	}
	out := make(map[string]string, len(rows[0]))
	for i, name := range rows[0] {
		out[name] = rows[1][i]
	}
	return out
}

func TestRecordEncodeCSV(t *testing.T) {
	rec := NewRecord(
		Metric{Name: "b", Value: true},
		Metric{Name: "a", Value: 3},
		Metric{Name: "top", Value: Counts{{Value: "z", Count: 2}, {Value: "a", Count: 1}}},
		Metric{Name: "mean", Value: 1.5},
		Metric{Name: "a", Value: 4},
	)
	if got := strings.Join(rec.Names(), ","); got != "b,a,top,mean" {
		t.Errorf("Names = %s", got)
	}

	data, err := rec.EncodeCSV()
	if err != nil {
		t.Fatal(err)
	}
	want := "b,a,top,mean\ntrue,4,\"{\"\"z\"\":2,\"\"a\"\":1}\",1.5\n"
	if string(data) != want {
		t.Errorf("EncodeCSV =\n%s\nwant\n%s", data, want)
	}
}

func TestSchemaSummary(t *testing.T) {
	env, mem := newEnv(t, testutil.LogScenario().Bytes(), frame.ReadOptions{RowsPerPartition: 30})

	out, err := Schema{}.Analyze(context.Background(), env)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0] != "logs/eda_output/eda_summary.csv" {
		t.Fatalf("Artifacts = %v", out.Artifacts)
	}

	obj, ok := mem.Object("bkt", out.Artifacts[0])
	if !ok {
		t.Fatal("summary not written")
	}
	if obj.ContentType != blob.ContentTypeCSV {
		t.Errorf("content type = %q", obj.ContentType)
	}
	got := readRecordCSV(t, obj.Data)

	want := map[string]string{
		"columns":            "line_id, timestamp, level, component, latency_ms, request_id",
		"row_count":          "100",
		"dtype_line_id":      "int64",
		"dtype_latency_ms":   "int64",
		"dtype_request_id":   "object",
		"missing_request_id": "5",
		"missing_latency_ms": "0",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if n := out.Record.Len(); n != 2+2*testutil.ScenarioColumns {
		t.Errorf("record has %d metrics", n)
	}
}

func TestIdentifierScenario(t *testing.T) {
	env, mem := newEnv(t, testutil.LogScenario().Bytes(), frame.ReadOptions{})

	out, err := Identifier{}.Analyze(context.Background(), env)
	if err != nil {
		t.Fatal(err)
	}
	key := "logs/eda_output/eda_analyse_request_id_feature.csv"
	if len(out.Artifacts) != 1 || out.Artifacts[0] != key {
		t.Fatalf("Artifacts = %v", out.Artifacts)
	}

	obj, _ := mem.Object("bkt", key)
	got := readRecordCSV(t, obj.Data)
	if got["request_id_null_count"] != "5" {
		t.Errorf("null count = %q", got["request_id_null_count"])
	}
	if got["request_id_dash_count"] != "5" {
		t.Errorf("dash count = %q", got["request_id_dash_count"])
	}
	if got["request_id_has_duplicates"] != "false" {
		t.Errorf("has_duplicates = %q", got["request_id_has_duplicates"])
	}
	if !strings.HasPrefix(got["request_id_top_50_value_counts"], `{"-":5,"NaN":5,"req-`) {
		t.Errorf("top counts = %.80s", got["request_id_top_50_value_counts"])
	}

	v, ok := out.Record.Get("request_id_top_50_value_counts")
	if !ok {
		t.Fatal("top counts missing from record")
	}
	top := v.(Counts)
	if len(top) != 50 {
		t.Errorf("top has %d entries, want 50", len(top))
	}
	if n, _ := top.Get(NullLabel); n != 5 {
		t.Errorf("NaN count = %d", n)
	}
}

func TestIdentifierDuplicatesAcrossPartitions(t *testing.T) {
	data := testutil.NewCSV("line_id", "request_id").
		Row("1", "req-a").
		Row("2", "req-b").
		Row("3", "req-c").
		Row("4", "req-a").
		Bytes()
	env, _ := newEnv(t, data, frame.ReadOptions{RowsPerPartition: 2})
	if env.Frame.NumPartitions() != 2 {
		t.Fatalf("partitions = %d", env.Frame.NumPartitions())
	}

	st, err := Identifier{}.Compute(context.Background(), env.Exec, env.Frame)
	if err != nil {
		t.Fatal(err)
	}
	if !st.HasDuplicates {
		t.Error("duplicate split across partitions not detected")
	}
	if st.Distinct != 3 {
		t.Errorf("Distinct = %d", st.Distinct)
	}
	if st.Top[0].Value != "req-a" || st.Top[0].Count != 2 {
		t.Errorf("Top[0] = %+v", st.Top[0])
	}
}

func TestIdentifierSentinelRepeatsAreNotDuplicates(t *testing.T) {
	data := testutil.NewCSV("line_id", "request_id").
		Row("1", "-").
		Row("2", "-").
		Row("3", "").
		Row("4", "x").
		Bytes()
	env, _ := newEnv(t, data, frame.ReadOptions{})

	st, err := Identifier{}.Compute(context.Background(), env.Exec, env.Frame)
	if err != nil {
		t.Fatal(err)
	}
	if st.HasDuplicates {
		t.Error("repeated sentinel reported as duplicate")
	}
	if st.SentinelCount != 2 || st.NullCount != 1 {
		t.Errorf("sentinel %d null %d", st.SentinelCount, st.NullCount)
	}
}

func TestIdentifierMissingColumn(t *testing.T) {
	env, _ := newEnv(t, testutil.NoIdentifierScenario().Bytes(), frame.ReadOptions{})
	_, err := Identifier{}.Analyze(context.Background(), env)
	if !errors.Is(err, errors.ErrColumnNotFound) {
		t.Fatalf("error = %v, want ErrColumnNotFound", err)
	}
}

func TestBinValues(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = float64(i)
	}
	bins := BinValues(values, 10)
	if len(bins) != 10 {
		t.Fatalf("bins = %d", len(bins))
	}
	for i, b := range bins {
		if b.Count != 1 {
			t.Errorf("bin %d count = %d", i, b.Count)
		}
	}
	if bins[9].Hi != 9 {
		t.Errorf("last bin Hi = %v", bins[9].Hi)
	}

	same := BinValues([]float64{4, 4, 4}, 30)
	total := 0
	for _, b := range same {
		total += b.Count
	}
	if total != 3 || same[0].Lo != 3.5 || same[29].Hi != 4.5 {
		t.Errorf("constant column bins: total %d range [%v, %v]", total, same[0].Lo, same[29].Hi)
	}

	if BinValues(nil, 30) != nil {
		t.Error("no values should produce no bins")
	}
	if got := BinValues([]float64{math.NaN(), math.Inf(1)}, 5); got != nil {
		t.Errorf("non-finite values produced %d bins", len(got))
	}
}

type fakeRenderer struct {
	fail map[string]bool
	seen []string
}

func (r *fakeRenderer) Render(column string, values []float64, bins int) ([]byte, error) {
	r.seen = append(r.seen, column)
	if r.fail[column] {
		return nil, fmt.Errorf("%w: %s", errors.ErrRenderFailed, column)
	}
	return []byte("png:" + column), nil
}

func TestHistogramIsolatesColumns(t *testing.T) {
	data := testutil.NewCSV("a", "b", "c", "name").
		Row("1", "2.5", "", "x").
		Row("2", "3.5", "", "y").
		Bytes()
	env, mem := newEnv(t, data, frame.ReadOptions{})
	r := &fakeRenderer{fail: map[string]bool{"a": true}}

	out, err := Histogram{Renderer: r}.Analyze(context.Background(), env)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(out.Errors) != 1 || !errors.Is(out.Errors[0], errors.ErrRenderFailed) {
		t.Fatalf("Errors = %v", out.Errors)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0] != "logs/eda_output/histogram_b.png" {
		t.Errorf("Artifacts = %v", out.Artifacts)
	}
	// c is all null and is skipped without rendering
	if strings.Join(r.seen, ",") != "a,b" {
		t.Errorf("rendered %v", r.seen)
	}
	obj, ok := mem.Object("bkt", "logs/eda_output/histogram_b.png")
	if !ok || obj.ContentType != blob.ContentTypePNG {
		t.Errorf("histogram_b.png = %+v, %v", obj, ok)
	}
	if _, ok := out.Record.Get("histogram_b"); !ok {
		t.Error("bin table missing for b")
	}
}

func TestHistogramAllColumnsFail(t *testing.T) {
	data := testutil.NewCSV("a", "b").Row("1", "2").Bytes()
	env, _ := newEnv(t, data, frame.ReadOptions{})
	r := &fakeRenderer{fail: map[string]bool{"a": true, "b": true}}

	_, err := Histogram{Renderer: r}.Analyze(context.Background(), env)
	if !errors.Is(err, errors.ErrRenderFailed) {
		t.Fatalf("error = %v, want ErrRenderFailed", err)
	}
}

func TestPlotRendererPNG(t *testing.T) {
	img, err := DefaultRenderer.Render("latency_ms", []float64{1, 2, 2, 3, 3, 3, 10}, 30)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("not a PNG: % x", img[:8])
	}
}

func TestProfileAcrossPartitions(t *testing.T) {
	c := testutil.NewCSV("latency_ms", "ratio", "name")
	for i := 1; i <= 1000; i++ {
		ratio := ""
		if i%10 != 0 {
			ratio = fmt.Sprint(float64(i) / 4)
		}
		c.Row(fmt.Sprint(i), ratio, "n")
	}
	env, mem := newEnv(t, c.Bytes(), frame.ReadOptions{RowsPerPartition: 128})
	if env.Frame.NumPartitions() < 2 {
		t.Fatalf("partitions = %d", env.Frame.NumPartitions())
	}

	out, err := Profile{Percentiles: true, Accuracy: 0.01}.Analyze(context.Background(), env)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0] != "logs/eda_output/eda_numeric_profile.parquet" {
		t.Fatalf("Artifacts = %v", out.Artifacts)
	}

	obj, _ := mem.Object("bkt", out.Artifacts[0])
	if obj.ContentType != blob.ContentTypeParquet {
		t.Errorf("content type = %q", obj.ContentType)
	}
	rows, err := DecodeProfile(obj.Data)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("profile rows = %d, want 2", len(rows))
	}

	lat := rows[0]
	if lat.Column != "latency_ms" || lat.Count != 1000 || lat.NullCount != 0 {
		t.Errorf("latency row = %+v", lat)
	}
	if lat.Min != 1 || lat.Max != 1000 || lat.Mean != 500.5 {
		t.Errorf("latency bounds min %v max %v mean %v", lat.Min, lat.Max, lat.Mean)
	}
	if lat.P50 == nil || math.Abs(*lat.P50-500)/500 > 0.02 {
		t.Errorf("p50 = %v, want about 500", lat.P50)
	}
	if lat.P99 == nil || math.Abs(*lat.P99-990)/990 > 0.02 {
		t.Errorf("p99 = %v, want about 990", lat.P99)
	}

	ratio := rows[1]
	if ratio.Column != "ratio" || ratio.Count != 900 || ratio.NullCount != 100 {
		t.Errorf("ratio row = %+v", ratio)
	}
}

func TestProfileWithoutPercentiles(t *testing.T) {
	data := testutil.NewCSV("x").Row("1").Row("3").Bytes()
	env, _ := newEnv(t, data, frame.ReadOptions{})

	rows, err := Profile{}.Compute(context.Background(), env.Exec, env.Frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Mean != 2 || rows[0].P50 != nil {
		t.Errorf("rows = %+v", rows)
	}
}

func TestProfileNoNumericColumns(t *testing.T) {
	data := testutil.NewCSV("name").Row("a").Bytes()
	env, mem := newEnv(t, data, frame.ReadOptions{})

	out, err := Profile{Percentiles: true}.Analyze(context.Background(), env)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Artifacts) != 0 || len(mem.Keys("bkt")) != 0 {
		t.Errorf("profile written for a dataset without numeric columns")
	}
}

func TestColumnAggregateMerge(t *testing.T) {
	a, _ := NewColumnAggregate("x", 0.01)
	b, _ := NewColumnAggregate("x", 0.01)
	for i := 1; i <= 50; i++ {
		a.Add(float64(i))
	}
	for i := 51; i <= 100; i++ {
		b.Add(float64(i))
	}
	b.AddNull()
	if err := a.Merge(b); err != nil {
		t.Fatal(err)
	}
	r := a.Result()
	if r.Count != 100 || r.NullCount != 1 || r.Min != 1 || r.Max != 100 || r.Sum != 5050 {
		t.Errorf("merged = %+v", r)
	}

	other, _ := NewColumnAggregate("y", 0.01)
	if err := a.Merge(other); err == nil {
		t.Error("merging different columns should fail")
	}
}
