package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Collector captures metrics for E2E runs.
type Collector struct {
	registry         *prometheus.Registry
	testsTotal       *prometheus.CounterVec
	stepsTotal       *prometheus.CounterVec
	comparisonsTotal *prometheus.CounterVec
	testDuration     *prometheus.HistogramVec
	stepDuration     *prometheus.HistogramVec
	readyAttempts    *prometheus.GaugeVec
	readySeconds     *prometheus.GaugeVec
	testInfo         *prometheus.GaugeVec
}

// NewCollector initializes a new metrics registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	collector := &Collector{
		registry: registry,
		testsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "e2e_tests_total", Help: "Total number of tests"},
			[]string{"status"},
		),
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "e2e_steps_total", Help: "Total number of steps"},
			[]string{"status"},
		),
		comparisonsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "e2e_graph_comparisons_total", Help: "Graph equivalence checks by verdict"},
			[]string{"verdict"},
		),
		testDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "e2e_test_duration_seconds",
				Help:    "Test duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"test", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "e2e_step_duration_seconds",
				Help:    "Step duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"test", "action", "status"},
		),
		readyAttempts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "e2e_store_ready_attempts", Help: "Health checks sent before the store was ready"},
			[]string{"url", "ready"},
		),
		readySeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "e2e_store_ready_seconds", Help: "Time spent in the readiness gate, including settle time"},
			[]string{"url", "ready"},
		),
		testInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "e2e_test_info",
				Help: "E2E test metadata for traceability",
			},
			[]string{"test", "status", "graph", "store_url", "dataset"},
		),
	}

	registry.MustRegister(
		collector.testsTotal,
		collector.stepsTotal,
		collector.comparisonsTotal,
		collector.testDuration,
		collector.stepDuration,
		collector.readyAttempts,
		collector.readySeconds,
		collector.testInfo,
	)
	return collector
}

// ObserveTest records a test outcome.
func (c *Collector) ObserveTest(testName, status string, duration time.Duration) {
	c.testsTotal.WithLabelValues(status).Inc()
	c.testDuration.WithLabelValues(testName, status).Observe(duration.Seconds())
}

// ObserveStep records a step outcome.
func (c *Collector) ObserveStep(testName, action, status string, duration time.Duration) {
	c.stepsTotal.WithLabelValues(status).Inc()
	c.stepDuration.WithLabelValues(testName, action, status).Observe(duration.Seconds())
}

// ObserveComparison records an oracle verdict.
func (c *Collector) ObserveComparison(isomorphic bool) {
	verdict := "different"
	if isomorphic {
		verdict = "isomorphic"
	}
	c.comparisonsTotal.WithLabelValues(verdict).Inc()
}

// ObserveReadiness records the outcome of the readiness gate.
func (c *Collector) ObserveReadiness(url string, ready bool, attempts int, elapsed time.Duration) {
	label := "false"
	if ready {
		label = "true"
	}
	c.readyAttempts.WithLabelValues(url, label).Set(float64(attempts))
	c.readySeconds.WithLabelValues(url, label).Set(elapsed.Seconds())
}

// ObserveTestInfo records metadata for a test.
func (c *Collector) ObserveTestInfo(info TestInfo) {
	c.testInfo.WithLabelValues(info.Test, info.Status, info.Graph, info.StoreURL, info.Dataset).Set(1)
}

// TestInfo is a structured view of test metadata for metrics.
type TestInfo struct {
	Test     string
	Status   string
	Graph    string
	StoreURL string
	Dataset  string
}

// Encode renders all metrics in the Prometheus text format.
func (c *Collector) Encode() ([]byte, error) {
	metricFamilies, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range metricFamilies {
		if err := enc.Encode(family); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Write writes all metrics to a Prometheus text file.
func (c *Collector) Write(path string) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}
