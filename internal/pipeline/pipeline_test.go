package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/rcaeda/internal/analysis"
	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/cluster"
	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/frame"
	"github.com/xtxerr/rcaeda/internal/testutil"
)

const (
	testBucket = "rca.logs.openstack"
	testSilver = "silver/OpenStack_structured.csv"
	testPrefix = "logs/eda_output"
)

func testConfig() Config {
	return Config{
		Bucket:       testBucket,
		SilverKey:    testSilver,
		Endpoint:     "local://eda-test?workers=4",
		OutputPrefix: testPrefix,
		Read:         frame.ReadOptions{RowsPerPartition: 30},
	}
}

func connectorFor(c *testutil.Connector) Connector {
	return func(ctx context.Context, endpoint string) (Cluster, error) {
		cl, err := c.Connect(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		return cl, nil
	}
}

type fixture struct {
	mem   *blob.MemoryStore
	store *testutil.FaultStore
	conn  *testutil.Connector
	rec   *fakeRecorder
}

func newFixture(t *testing.T, silver []byte) *fixture {
	t.Helper()
	mem := blob.NewMemoryStore()
	if silver != nil {
		require.NoError(t, mem.Put(context.Background(), testBucket, testSilver, silver, blob.ContentTypeCSV))
	}
	return &fixture{
		mem:   mem,
		store: testutil.NewFaultStore(mem),
		conn:  &testutil.Connector{},
		rec:   newFakeRecorder(),
	}
}

func (fx *fixture) runner(cfg Config) *Runner {
	return New(cfg, fx.store, WithConnector(connectorFor(fx.conn)), WithRecorder(fx.rec))
}

func (fx *fixture) silver(t *testing.T) []byte {
	t.Helper()
	obj, ok := fx.mem.Object(testBucket, testSilver)
	require.True(t, ok, "silver blob missing")
	return obj.Data
}

func stepStatus(t *testing.T, rep *Report, name string) StepStatus {
	t.Helper()
	s, ok := rep.Step(name)
	require.True(t, ok, "step %s not recorded", name)
	return s.Status
}

func columnValues(t *testing.T, data []byte, column string) []string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	idx := -1
	for i, name := range rows[0] {
		if name == column {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0, "column %s missing", column)
	out := make([]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		out = append(out, r[idx])
	}
	return out
}

func TestRunScenario(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	active := cluster.Active()

	rep := fx.runner(testConfig()).Run(context.Background())

	require.NoError(t, rep.Err)
	assert.Equal(t, StatusSuccess, rep.Status)
	assert.Equal(t, IdentifierPresent, rep.Identifier)
	assert.Equal(t, testutil.ScenarioRows, rep.Rows)
	assert.Equal(t, 4, rep.Partitions)
	assert.Equal(t, testutil.ScenarioDashes, rep.Replaced)
	assert.Equal(t, 4, rep.Workers)
	assert.NotEmpty(t, rep.RunID)
	assert.Empty(t, rep.Failed())

	// write-back keeps every row and replaces only the placeholders
	ids := columnValues(t, fx.silver(t), "request_id")
	require.Len(t, ids, testutil.ScenarioRows)
	counts := map[string]int{}
	for _, id := range ids {
		counts[id]++
	}
	assert.Equal(t, 0, counts["-"])
	assert.Equal(t, testutil.ScenarioDashes, counts["rca-system"])
	assert.Equal(t, testutil.ScenarioNulls, counts[""])
	assert.Len(t, counts, testutil.ScenarioUnique+2)

	keys := fx.mem.Keys(testBucket)
	for _, want := range []string{
		testPrefix + "/eda_summary.csv",
		testPrefix + "/histogram_line_id.png",
		testPrefix + "/histogram_latency_ms.png",
		testPrefix + "/eda_numeric_profile.parquet",
		testPrefix + "/eda_analyse_request_id_feature.csv",
		testSilver,
	} {
		assert.Contains(t, keys, want)
	}

	feature, _ := fx.mem.Object(testBucket, testPrefix+"/eda_analyse_request_id_feature.csv")
	assert.Contains(t, string(feature.Data), "request_id_has_duplicates")
	assert.Equal(t, []string{"false"}, columnValues(t, feature.Data, "request_id_has_duplicates"))
	assert.Equal(t, []string{"5"}, columnValues(t, feature.Data, "request_id_null_count"))
	assert.Equal(t, []string{"5"}, columnValues(t, feature.Data, "request_id_dash_count"))

	summary, _ := fx.mem.Object(testBucket, testPrefix+"/eda_summary.csv")
	assert.Equal(t, []string{"100"}, columnValues(t, summary.Data, "row_count"))

	assert.Equal(t, 1, fx.conn.Connects())
	assert.Equal(t, 0, fx.conn.Open())
	assert.Equal(t, active, cluster.Active())
	assert.Equal(t, StepOK, stepStatus(t, rep, StepDisconnect))

	assert.Contains(t, rep.Records, "schema")
	assert.Contains(t, rep.Records, "identifier")
	assert.Equal(t, 1, fx.rec.runs[StatusSuccess])
	assert.Equal(t, testutil.ScenarioDashes, fx.rec.imputed)
}

func TestRunTwiceIsAlreadyClean(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	r := fx.runner(testConfig())

	first := r.Run(context.Background())
	require.Equal(t, StatusSuccess, first.Status)
	cleaned := fx.silver(t)
	puts := len(fx.store.Puts())

	second := r.Run(context.Background())
	require.Equal(t, StatusSuccess, second.Status)
	assert.Equal(t, IdentifierAlreadyClean, second.Identifier)
	assert.Equal(t, 0, second.Replaced)
	assert.Equal(t, StepSkipped, stepStatus(t, second, StepWriteBack))
	assert.NotEqual(t, first.RunID, second.RunID)

	testutil.MustEqualBytes(t, fx.silver(t), cleaned)
	// artifacts are rewritten, the silver blob is not
	assert.NotContains(t, fx.store.Puts()[puts:], testSilver)
}

func TestRunNumericIdentifierIsAlreadyClean(t *testing.T) {
	tests := []struct {
		name   string
		silver []byte
	}{
		{"all null", []byte("line_id,request_id,latency_ms\n1,,10\n2,,20\n3,,30\n")},
		{"integers", []byte("line_id,request_id,latency_ms\n1,101,10\n2,102,20\n3,103,30\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.silver)

			rep := fx.runner(testConfig()).Run(context.Background())

			require.NoError(t, rep.Err)
			assert.Equal(t, StatusSuccess, rep.Status)
			assert.Equal(t, IdentifierAlreadyClean, rep.Identifier)
			assert.Equal(t, 0, rep.Replaced)
			assert.Equal(t, StepOK, stepStatus(t, rep, StepIdentifier))
			assert.Equal(t, StepOK, stepStatus(t, rep, StepImpute))
			assert.Equal(t, StepSkipped, stepStatus(t, rep, StepWriteBack))
			testutil.MustEqualBytes(t, fx.silver(t), tt.silver)
			assert.Equal(t, 0, fx.conn.Open())
		})
	}
}

func TestRunWithoutIdentifier(t *testing.T) {
	original := testutil.NoIdentifierScenario().Bytes()
	fx := newFixture(t, original)

	rep := fx.runner(testConfig()).Run(context.Background())

	assert.Equal(t, StatusSuccess, rep.Status)
	assert.Equal(t, IdentifierAbsent, rep.Identifier)
	for _, name := range []string{StepIdentifier, StepImpute, StepWriteBack} {
		assert.Equal(t, StepSkipped, stepStatus(t, rep, name), name)
	}
	testutil.MustEqualBytes(t, fx.silver(t), original)
	assert.NotContains(t, fx.mem.Keys(testBucket), testPrefix+"/eda_analyse_request_id_feature.csv")
	assert.Contains(t, fx.mem.Keys(testBucket), testPrefix+"/eda_summary.csv")
	assert.Equal(t, 0, fx.conn.Open())
}

func TestRunConnectFailure(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	fx.conn.Err = fmt.Errorf("scheduler unreachable: %w", errors.ErrConnectionFailed)

	rep := fx.runner(testConfig()).Run(context.Background())

	assert.Equal(t, StatusFailed, rep.Status)
	assert.ErrorIs(t, rep.Err, errors.ErrConnectionFailed)
	require.Len(t, rep.Steps, 1)
	assert.Equal(t, StepConnect, rep.Steps[0].Name)
	assert.Equal(t, 0, fx.store.Gets())
	assert.Empty(t, fx.store.Puts())
	assert.Equal(t, 1, fx.rec.runs[StatusFailed])
}

func TestRunUnsupportedEndpoint(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	cfg := testConfig()
	cfg.Endpoint = "tcp://eda-scheduler:8786"
	active := cluster.Active()

	rep := New(cfg, fx.store).Run(context.Background())

	assert.Equal(t, StatusFailed, rep.Status)
	assert.ErrorIs(t, rep.Err, errors.ErrConnectionFailed)
	assert.Equal(t, active, cluster.Active())
}

func TestRunLoadFailures(t *testing.T) {
	tests := []struct {
		name   string
		silver []byte
		want   error
	}{
		{name: "missing blob", silver: nil, want: errors.ErrBlobNotFound},
		{name: "malformed csv", silver: []byte("a,b\n1,2,3\n"), want: errors.ErrMalformedCSV},
		{name: "empty blob", silver: []byte{}, want: errors.ErrMalformedCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.silver)
			rep := fx.runner(testConfig()).Run(context.Background())

			assert.Equal(t, StatusFailed, rep.Status)
			assert.ErrorIs(t, rep.Err, tt.want)
			assert.Equal(t, StepFailed, stepStatus(t, rep, StepLoad))
			assert.Equal(t, StepOK, stepStatus(t, rep, StepDisconnect))
			assert.Equal(t, 0, fx.conn.Open())
			assert.Empty(t, fx.store.Puts())
		})
	}
}

func TestHistogramFailureDoesNotBlockIdentifierPass(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	fx.store.FailPut("histogram_latency_ms.png", fmt.Errorf("access denied: %w", errors.ErrStorage))

	rep := fx.runner(testConfig()).Run(context.Background())

	assert.Equal(t, StatusPartial, rep.Status)
	assert.NoError(t, rep.Err)
	assert.Equal(t, StepFailed, stepStatus(t, rep, "histogram"))
	assert.Equal(t, StepOK, stepStatus(t, rep, "schema"))
	assert.Equal(t, StepOK, stepStatus(t, rep, StepIdentifier))
	assert.Equal(t, StepOK, stepStatus(t, rep, StepWriteBack))
	assert.Equal(t, IdentifierPresent, rep.Identifier)

	// the other numeric column still rendered
	assert.Contains(t, fx.mem.Keys(testBucket), testPrefix+"/histogram_line_id.png")
	assert.Equal(t, 0, fx.conn.Open())
}

func TestIdentifierAnalysisFailureStillImputes(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	fx.store.FailPut("eda_analyse_request_id_feature.csv", fmt.Errorf("quota: %w", errors.ErrStorage))

	rep := fx.runner(testConfig()).Run(context.Background())

	assert.Equal(t, StatusPartial, rep.Status)
	assert.Equal(t, StepFailed, stepStatus(t, rep, StepIdentifier))
	assert.Equal(t, IdentifierPresent, rep.Identifier)
	assert.NotContains(t, string(fx.silver(t)), ",-\n")
}

func TestRunWriteBackFailure(t *testing.T) {
	original := testutil.LogScenario().Bytes()
	fx := newFixture(t, original)
	fx.store.FailPut(testSilver, fmt.Errorf("throttled: %w", errors.ErrStorage))

	rep := fx.runner(testConfig()).Run(context.Background())

	assert.Equal(t, StatusFailed, rep.Status)
	assert.ErrorIs(t, rep.Err, errors.ErrWriteBackFailed)
	assert.ErrorIs(t, rep.Err, errors.ErrStorage)
	assert.Empty(t, rep.Identifier)
	testutil.MustEqualBytes(t, fx.silver(t), original)
	assert.Equal(t, 0, fx.conn.Open())
}

type panicAnalyzer struct{}

func (panicAnalyzer) Name() string { return "panics" }

func (panicAnalyzer) Analyze(context.Context, *analysis.Env) (*analysis.Outcome, error) {
	panic("analyzer bug")
}

type partitionPanicAnalyzer struct{}

func (partitionPanicAnalyzer) Name() string { return "partition-panics" }

func (partitionPanicAnalyzer) Analyze(ctx context.Context, env *analysis.Env) (*analysis.Outcome, error) {
	_, err := frame.Compute(ctx, env.Exec, env.Frame, func(context.Context, int, *frame.Table) (int, error) {
		panic("task bug")
	})
	return nil, err
}

func TestAnalyzerPanicIsIsolated(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	cfg := testConfig()
	cfg.Analyzers = []analysis.Analyzer{panicAnalyzer{}, partitionPanicAnalyzer{}, analysis.Schema{}}

	rep := fx.runner(cfg).Run(context.Background())

	assert.Equal(t, StatusPartial, rep.Status)
	for _, name := range []string{"panics", "partition-panics"} {
		s, ok := rep.Step(name)
		require.True(t, ok)
		assert.Equal(t, StepFailed, s.Status)
		assert.ErrorIs(t, s.Err, errors.ErrPanic)
	}
	assert.Equal(t, StepOK, stepStatus(t, rep, "schema"))
	assert.Equal(t, IdentifierPresent, rep.Identifier)
	assert.Equal(t, 0, fx.conn.Open())
}

func TestRunCancelled(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := fx.runner(testConfig()).Run(ctx)

	assert.Equal(t, StatusFailed, rep.Status)
	assert.Equal(t, 0, fx.conn.Open())
}

func TestStepOrder(t *testing.T) {
	fx := newFixture(t, testutil.LogScenario().Bytes())
	rep := fx.runner(testConfig()).Run(context.Background())

	var names []string
	for _, s := range rep.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t,
		"connect,load,schema,histogram,profile,identifier,impute,write-back,disconnect",
		strings.Join(names, ","))
	assert.Equal(t, len(names), fx.rec.stepCount())
}

type fakeRecorder struct {
	mu      sync.Mutex
	steps   []string
	runs    map[Status]int
	written map[string]int
	imputed int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{runs: make(map[Status]int), written: make(map[string]int)}
}

func (f *fakeRecorder) StepFinished(step string, _ StepStatus, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
}

func (f *fakeRecorder) RunFinished(status Status, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[status]++
}

func (f *fakeRecorder) ArtifactsWritten(step string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written[step] += n
}

func (f *fakeRecorder) ValuesImputed(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imputed += n
}

func (f *fakeRecorder) stepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.steps)
}
