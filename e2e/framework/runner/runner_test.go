package runner

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/fixtures"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/matrix"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/objectstore"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/readiness"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/results"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql/sparqltest"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/steps"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/telemetry"
)

type recordingUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *recordingUploader) Upload(_ context.Context, key string, _ string) (objectstore.ObjectInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	return objectstore.ObjectInfo{Key: key}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		RunID:          "run-1",
		ArtifactDir:    dir,
		Parallelism:    3,
		DefaultTimeout: 30 * time.Second,
		GraphNamespace: "http://example.com/e2e/",
		Dataset:        "ds",
		HealthPath:     readiness.DefaultHealthPath,
		ReadyTimeout:   2 * time.Second,
		ReadyInterval:  10 * time.Millisecond,
		MetricsEnabled: true,
		MetricsPath:    filepath.Join(dir, "metrics.prom"),
		ReportEnabled:  true,
	}
}

func newTestRunner(t *testing.T, cfg *config.Config, store *sparqltest.Store, opts ...Option) *Runner {
	t.Helper()
	registry, err := fixtures.LoadRegistry("../../fixtures/registry.yaml")
	require.NoError(t, err)
	loader, err := fixtures.NewLoader(registry, t.TempDir(), 0)
	require.NoError(t, err)
	r, err := NewRunner(cfg, nil, steps.DefaultRegistry(), loader, sparql.NewClient(store.Endpoint()), &telemetry.Telemetry{}, opts...)
	require.NoError(t, err)
	return r
}

func statuses(run *results.RunResult) map[string]results.Status {
	out := make(map[string]results.Status, len(run.Tests))
	for _, test := range run.Tests {
		out[test.Name] = test.Status
	}
	return out
}

func TestRunAllRepositorySpecs(t *testing.T) {
	store := sparqltest.NewStore("ds", "admin", "secret")
	defer store.Close()
	registry, err := fixtures.LoadRegistry("../../fixtures/registry.yaml")
	require.NoError(t, err)
	specs, err := spec.NewLoader(
		spec.WithActions(steps.DefaultRegistry().Has),
		spec.WithFixtures(func(name string) bool {
			_, ok := registry.Get(name)
			return ok
		}),
	).Load("../../specs")
	require.NoError(t, err)

	cfg := testConfig(t)
	r := newTestRunner(t, cfg, store)
	run, err := r.RunAll(context.Background(), specs)
	require.NoError(t, err)

	for _, test := range run.Tests {
		for _, step := range test.Steps {
			assert.Empty(t, step.Error, "%s/%s", test.Name, step.Name)
		}
		for _, assertion := range test.Assertions {
			assert.Empty(t, assertion.Error, "%s/%s", test.Name, assertion.Name)
		}
	}
	assert.Equal(t, map[string]results.Status{
		"insert-data-construct":     results.StatusPassed,
		"catalog-insert-per-triple": results.StatusPassed,
		"catalog-insert-bulk":       results.StatusPassed,
		"describe-catalog":          results.StatusPassed,
		"construct-catalog-graph":   results.StatusPassed,
		"bulk-graph-upload":         results.StatusPending,
		"construct-all-catalogs":    results.StatusPassed,
	}, statuses(run))

	require.NotNil(t, run.Readiness)
	assert.True(t, run.Readiness.Ready)
	assert.False(t, run.Failed())
	assert.Empty(t, store.GraphNames(), "test graphs are dropped after each test")

	summary := run.Summarize()
	assert.Equal(t, 6, summary.Passed)
	assert.Equal(t, 1, summary.Pending)

	require.NoError(t, r.FlushArtifacts(context.Background(), run))
	for _, name := range []string{"results.json", "summary.json", "report.ttl", "metrics.prom", "tests/construct-catalog-graph/constructed.ttl"} {
		assert.FileExists(t, filepath.Join(cfg.ArtifactDir, name))
	}
}

func TestRunAllMatrixSpecs(t *testing.T) {
	store := sparqltest.NewStore("ds", "admin", "secret")
	defer store.Close()
	m, err := matrix.Load("../../matrix/roundtrip.yaml")
	require.NoError(t, err)
	specs, err := matrix.NewGenerator(m).Generate()
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.ReportEnabled = false
	r := newTestRunner(t, cfg, store)
	run, err := r.RunAll(context.Background(), specs)
	require.NoError(t, err)

	require.Len(t, run.Tests, len(specs))
	for _, test := range run.Tests {
		assert.Equal(t, results.StatusPassed, test.Status, test.Name)
	}
	assert.Empty(t, store.GraphNames())
}

func TestRunAllStoreNeverReady(t *testing.T) {
	store := sparqltest.NewStore("ds", "admin", "secret")
	defer store.Close()
	store.SetPingStatus(http.StatusServiceUnavailable)

	cfg := testConfig(t)
	cfg.ReadyTimeout = 100 * time.Millisecond
	r := newTestRunner(t, cfg, store)

	run, err := r.RunAll(context.Background(), []spec.TestSpec{{Metadata: spec.Metadata{Name: "never-run"}, Steps: []spec.StepSpec{{Action: "sleep"}}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready after")
	assert.Empty(t, run.Tests)
	require.NotNil(t, run.Readiness)
	assert.False(t, run.Readiness.Ready)
	assert.Greater(t, run.Readiness.Attempts, 1)
	assert.True(t, run.Failed())
}

func TestRunAllFailureKeepsDiffAndFilters(t *testing.T) {
	store := sparqltest.NewStore("ds", "admin", "secret")
	defer store.Close()
	cfg := testConfig(t)
	cfg.ExcludeTags = []string{"slow"}
	cfg.KeepGraphs = true
	r := newTestRunner(t, cfg, store, WithReadinessOptions(func(o *readiness.Options) { o.Settle = 0 }))

	mismatch := spec.TestSpec{
		Metadata: spec.Metadata{Name: "mismatch"},
		Fixtures: []spec.FixtureRef{{Name: "catalog_1_describe", As: "expected"}},
		Steps: []spec.StepSpec{
			{Name: "insert", Action: "sparql.insert", With: map[string]interface{}{"fixture": "publisher_2"}},
			{Name: "construct", Action: "sparql.construct", With: map[string]interface{}{"as": "actual"}},
		},
		Assertions: []spec.AssertSpec{
			{Name: "isomorphic", Type: "graph.isomorphic", With: map[string]interface{}{"expected": "expected", "actual": "actual"}},
			{Name: "never-reached", Type: "graph.size", With: map[string]interface{}{"graph": "actual", "count": 0}},
		},
	}
	filtered := spec.TestSpec{Metadata: spec.Metadata{Name: "filtered", Tags: []string{"slow"}}, Steps: []spec.StepSpec{{Action: "sleep"}}}

	run, err := r.RunAll(context.Background(), []spec.TestSpec{mismatch, filtered})
	require.NoError(t, err)
	require.Len(t, run.Tests, 2)

	failed := run.Tests[0]
	assert.Equal(t, results.StatusFailed, failed.Status)
	require.Len(t, failed.Assertions, 1)
	assert.Equal(t, "graph.isomorphic", failed.Assertions[0].Type)
	assert.Contains(t, failed.Assertions[0].Error, "is not isomorphic")
	assert.FileExists(t, failed.Artifacts["diff"])
	assert.Equal(t, "1", failed.Metadata["graphs_kept"])
	assert.Equal(t, []string{failed.Graph}, store.GraphNames())

	assert.Equal(t, results.StatusSkipped, run.Tests[1].Status)
	assert.Equal(t, "tag filtered", run.Tests[1].Metadata["skip_reason"])
	assert.True(t, run.Failed())
}

func TestRunSpecSetupAndTimeout(t *testing.T) {
	store := sparqltest.NewStore("ds", "admin", "secret")
	defer store.Close()
	cfg := testConfig(t)
	cfg.ReadySettle = 0
	r := newTestRunner(t, cfg, store)

	run, err := r.RunAll(context.Background(), []spec.TestSpec{
		{Metadata: spec.Metadata{Name: "unknown-fixture"}, Fixtures: []spec.FixtureRef{{Name: "nope"}}, Steps: []spec.StepSpec{{Action: "sleep"}}},
		{Metadata: spec.Metadata{Name: "too-slow"}, Timeout: "20ms", Steps: []spec.StepSpec{{Action: "sleep", With: map[string]interface{}{"duration": "5s"}}}},
	})
	require.NoError(t, err)

	setup := run.Tests[0]
	assert.Equal(t, results.StatusFailed, setup.Status)
	assert.Contains(t, setup.Metadata["setup_error"], `unknown fixture "nope"`)
	assert.Empty(t, setup.Steps)

	slow := run.Tests[1]
	assert.Equal(t, results.StatusFailed, slow.Status)
	assert.Equal(t, "true", slow.Metadata["timeout"])
	assert.Less(t, slow.Duration, 5*time.Second)
}

func TestFlushArtifactsUploads(t *testing.T) {
	store := sparqltest.NewStore("ds", "admin", "secret")
	defer store.Close()
	cfg := testConfig(t)
	cfg.UploadArtifacts = true
	cfg.MetricsEnabled = false
	up := &recordingUploader{}
	r := newTestRunner(t, cfg, store, WithUploader(up))

	run := &results.RunResult{RunID: "run-1", Tests: []results.TestResult{{Name: "a", Status: results.StatusPassed}}}
	require.NoError(t, r.FlushArtifacts(context.Background(), run))

	sort.Strings(up.keys)
	assert.Equal(t, []string{"run-1/report.ttl", "run-1/results.json", "run-1/summary.json"}, up.keys)
	_, err := os.Stat(cfg.MetricsPath)
	assert.True(t, os.IsNotExist(err))
}
