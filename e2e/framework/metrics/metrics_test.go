package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	c.ObserveTest("describe", "passed", time.Second)
	c.ObserveTest("drop", "failed", time.Second)
	c.ObserveTest("typed", "passed", time.Second)
	c.ObserveStep("describe", "sparql.describe", "passed", 20*time.Millisecond)
	c.ObserveComparison(true)
	c.ObserveComparison(false)
	c.ObserveComparison(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.testsTotal.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.testsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stepsTotal.WithLabelValues("passed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.comparisonsTotal.WithLabelValues("isomorphic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.comparisonsTotal.WithLabelValues("different")))
}

func TestCollectorWrite(t *testing.T) {
	c := NewCollector()
	c.ObserveReadiness("http://localhost:3030", true, 21, 5*time.Second)
	c.ObserveTestInfo(TestInfo{Test: "describe", Status: "passed", Graph: "http://example.com/e2e/1", StoreURL: "http://localhost:3030", Dataset: "ds"})

	path := filepath.Join(t.TempDir(), "out", "metrics.prom")
	require.NoError(t, c.Write(path))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `e2e_store_ready_attempts{ready="true",url="http://localhost:3030"} 21`)
	assert.Contains(t, string(body), `e2e_store_ready_seconds{ready="true",url="http://localhost:3030"} 5`)
	assert.Contains(t, string(body), `e2e_test_info{dataset="ds",graph="http://example.com/e2e/1"`)
}
