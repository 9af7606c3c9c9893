package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/results"
)

func writeRun(t *testing.T, root string, run *results.RunResult) {
	t.Helper()
	dir := filepath.Join(root, run.RunID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(run)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ResultsFile), data, 0o644))
}

func historyFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writeRun(t, root, &results.RunResult{
		RunID:     "b",
		StartTime: start.Add(time.Hour),
		Readiness: &results.Readiness{Ready: true, Elapsed: 4 * time.Second},
		Tests: []results.TestResult{
			{Name: "describe", Tags: []string{"describe"}, Status: results.StatusPassed, Duration: 3 * time.Second,
				Steps: []results.StepResult{{Action: "sparql.describe", Duration: time.Second}}},
			{Name: "construct", Tags: []string{"construct"}, Status: results.StatusFailed, Duration: time.Second,
				Metadata: map[string]string{"setup_error": `unknown fixture "nope"`}},
		},
	})
	writeRun(t, root, &results.RunResult{
		RunID:     "a",
		StartTime: start,
		Readiness: &results.Readiness{Ready: true, Elapsed: 2 * time.Second},
		Tests: []results.TestResult{
			{Name: "describe", Tags: []string{"describe"}, Status: results.StatusFailed, Duration: time.Second,
				Steps: []results.StepResult{{Action: "sparql.describe", Duration: 3 * time.Second}},
				Assertions: []results.AssertionResult{{Status: results.StatusFailed,
					Error: `graph "actual" is not isomorphic to "expected"`}}},
			{Name: "construct", Tags: []string{"construct"}, Status: results.StatusPassed, Duration: 3 * time.Second},
			{Name: "bulk", Status: results.StatusPending},
		},
	})
	writeRun(t, root, &results.RunResult{
		RunID:     "c",
		StartTime: start.Add(2 * time.Hour),
		Readiness: &results.Readiness{Ready: false, Attempts: 300, Elapsed: 30 * time.Second, LastError: "connection refused"},
	})
	return root
}

func TestLoadHistoryOrdersRuns(t *testing.T) {
	h, err := LoadHistory(historyFixture(t))
	require.NoError(t, err)
	require.Len(t, h.Runs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{h.Runs[0].RunID, h.Runs[1].RunID, h.Runs[2].RunID})

	single, err := LoadHistory(filepath.Join(historyFixture(t), "a"))
	require.NoError(t, err)
	assert.Len(t, single.Runs, 1)

	_, err = LoadHistory(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestHistoryFailures(t *testing.T) {
	h, err := LoadHistory(historyFixture(t))
	require.NoError(t, err)

	all := h.Failures("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "readiness", all[0].TestName)
	assert.Equal(t, CategoryNotReady, all[0].Category)
	assert.Equal(t, CategoryFixture, all[1].Category)
	assert.Equal(t, CategoryNotIsomorphic, all[2].Category)

	assert.Len(t, h.Failures(CategoryNotIsomorphic, 0), 1)
	assert.Len(t, h.Failures("", 2), 2)

	matched, err := h.ByErrorPattern(`fixture "\w+"`)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "b", matched[0].RunID)

	_, err = h.ByErrorPattern("(")
	assert.Error(t, err)
}

func TestHistoryRates(t *testing.T) {
	h, err := LoadHistory(historyFixture(t))
	require.NoError(t, err)

	rate := h.SuccessRate("")
	assert.Equal(t, 5, rate.Total)
	assert.Equal(t, 2, rate.Passed)
	assert.Equal(t, 2, rate.Failed)
	assert.Equal(t, 1, rate.Pending)
	assert.InDelta(t, 50.0, rate.SuccessRate, 0.001)

	assert.Equal(t, 2, h.SuccessRate("describe").Total)

	flaky := h.FlakyTests(0.2)
	require.Len(t, flaky, 2)
	assert.Equal(t, "construct", flaky[0].TestName)
	assert.InDelta(t, 0.5, flaky[0].PassRate, 0.001)
	assert.Empty(t, h.FlakyTests(0.6))
}

func TestAverageTimings(t *testing.T) {
	h, err := LoadHistory(historyFixture(t))
	require.NoError(t, err)

	timings := h.AverageTimings("")
	assert.Equal(t, 2*time.Second, timings["sparql.describe"])
	assert.Equal(t, 2*time.Second, timings["test"])
	assert.Equal(t, 12*time.Second, timings["readiness"])

	describe := h.AverageTimings("describe")
	assert.Equal(t, 2*time.Second, describe["test"])
	_, ok := describe["readiness"]
	assert.False(t, ok)
}
