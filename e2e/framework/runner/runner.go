package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/artifacts"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/fixtures"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/logging"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/metrics"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/objectstore"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/readiness"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/report"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/results"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/steps"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/telemetry"
)

const cleanupTimeout = time.Minute

// Option customizes a Runner.
type Option func(*Runner)

// WithUploader publishes the run directory after FlushArtifacts.
func WithUploader(up objectstore.Uploader) Option {
	return func(r *Runner) { r.uploader = up }
}

// WithReadinessOptions overrides how the store is polled before the run.
func WithReadinessOptions(fn func(*readiness.Options)) Option {
	return func(r *Runner) { r.readyOverride = fn }
}

// Runner executes E2E specs against a SPARQL store.
type Runner struct {
	cfg           *config.Config
	logger        *zap.Logger
	registry      *steps.Registry
	artifacts     *artifacts.Writer
	metrics       *metrics.Collector
	fixtures      *fixtures.Loader
	client        *sparql.Client
	telemetry     *telemetry.Telemetry
	uploader      objectstore.Uploader
	readyOverride func(*readiness.Options)
}

// NewRunner constructs a Runner.
func NewRunner(cfg *config.Config, logger *zap.Logger, registry *steps.Registry, loader *fixtures.Loader, client *sparql.Client, telemetryClient *telemetry.Telemetry, opts ...Option) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("sparql client is required")
	}
	writer, err := artifacts.NewWriter(cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		artifacts: writer,
		metrics:   metrics.NewCollector(),
		fixtures:  loader,
		client:    client,
		telemetry: telemetryClient,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Metrics returns the collector the runner records into.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// Artifacts returns the run directory writer.
func (r *Runner) Artifacts() *artifacts.Writer {
	return r.artifacts
}

// RunAll gates on store readiness, then executes all specs. When the store
// never becomes ready no test is run and the readiness error is returned
// together with the partial result.
func (r *Runner) RunAll(ctx context.Context, specs []spec.TestSpec) (*results.RunResult, error) {
	runCtx, runSpan := r.startRunSpan(ctx, specs)
	start := time.Now().UTC()
	run := &results.RunResult{RunID: r.cfg.RunID, StoreURL: r.client.Endpoint.BaseURL, StartTime: start}

	ready, err := r.WaitForStore(runCtx)
	run.Readiness = &ready
	if err == nil {
		run.Tests = r.runPerTest(runCtx, specs)
	}
	run.EndTime = time.Now().UTC()
	run.Duration = run.EndTime.Sub(run.StartTime)

	r.finishRunSpan(runSpan, run, err)
	return run, err
}

// WaitForStore runs the readiness gate against the store base URL.
func (r *Runner) WaitForStore(ctx context.Context) (results.Readiness, error) {
	opts := readiness.Options{
		HealthPath:   r.cfg.HealthPath,
		Timeout:      r.cfg.ReadyTimeout,
		PollInterval: r.cfg.ReadyInterval,
		Settle:       r.cfg.ReadySettle,
		Logger:       logging.Logr(r.logger),
	}
	if r.readyOverride != nil {
		r.readyOverride(&opts)
	}
	baseURL := r.client.Endpoint.BaseURL
	r.logger.Info("waiting for store", zap.String("url", baseURL), zap.Duration("timeout", opts.Timeout))

	res, err := readiness.WaitUntilReady(ctx, baseURL, opts)
	out := results.Readiness{URL: res.URL, Ready: res.Ready, Attempts: res.Attempts, Elapsed: res.Elapsed}
	if out.URL == "" {
		out.URL = baseURL
	}
	if res.LastError != nil {
		out.LastError = res.LastError.Error()
	}
	r.metrics.ObserveReadiness(out.URL, out.Ready, out.Attempts, out.Elapsed)
	if err != nil {
		out.LastError = err.Error()
		return out, errors.Wrap(err, "readiness gate")
	}
	if !res.Ready {
		return out, res.Err()
	}
	r.logger.Info("store ready", zap.String("url", out.URL), zap.Int("attempts", out.Attempts), zap.Duration("elapsed", out.Elapsed))
	return out, nil
}

func (r *Runner) runPerTest(ctx context.Context, specs []spec.TestSpec) []results.TestResult {
	out := make([]results.TestResult, len(specs))
	sem := make(chan struct{}, max(r.cfg.Parallelism, 1))
	var wg sync.WaitGroup

	for i, testSpec := range specs {
		switch {
		case !testSpec.MatchesTags(r.cfg.IncludeTags, r.cfg.ExcludeTags):
			out[i] = r.skipResult(testSpec, results.StatusSkipped, "tag filtered")
			r.observeTestMetrics(out[i])
			continue
		case testSpec.IsPending():
			out[i] = r.skipResult(testSpec, results.StatusPending, testSpec.Pending)
			r.observeTestMetrics(out[i])
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, testSpec spec.TestSpec) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = r.runSpec(ctx, testSpec)
		}(i, testSpec)
	}

	wg.Wait()
	return out
}

func (r *Runner) runSpec(ctx context.Context, testSpec spec.TestSpec) results.TestResult {
	writer, err := r.artifacts.ForTest(testSpec.Metadata.Name)
	if err != nil {
		writer = r.artifacts
	}
	exec := steps.NewContext(r.cfg.RunID, testSpec.Metadata.Name, r.logger, writer, r.fixtures, r.cfg, r.client, &testSpec)
	exec.Metrics = r.metrics
	return r.runSpecWithExec(ctx, testSpec, exec)
}

func (r *Runner) runSpecWithExec(ctx context.Context, testSpec spec.TestSpec, exec *steps.Context) results.TestResult {
	result := results.TestResult{
		Name:        testSpec.Metadata.Name,
		Description: testSpec.Metadata.Description,
		Tags:        testSpec.Metadata.Tags,
		Graph:       exec.TestGraph(),
		StartTime:   time.Now().UTC(),
		Metadata: map[string]string{
			"store_url": r.client.Endpoint.BaseURL,
			"dataset":   r.client.Endpoint.Dataset,
		},
	}

	timeout, err := testSpec.TimeoutOr(r.cfg.DefaultTimeout)
	if err != nil || timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx, span := r.startTestSpan(ctx, testSpec, exec)
	defer r.finishTestSpan(span, testSpec, exec, &result)

	r.logger.Info("test started", zap.String("test", result.Name), zap.String("graph", result.Graph))
	result.Status = r.execute(ctx, testSpec, exec, &result)
	result.EndTime = time.Now().UTC()
	result.Duration = result.EndTime.Sub(result.StartTime)
	r.finalizeTest(ctx, exec, &result)
	r.observeTestMetrics(result)
	r.logger.Info("test finished", zap.String("test", result.Name), zap.String("status", string(result.Status)), zap.Duration("duration", result.Duration))
	return result
}

// execute runs fixtures, steps and assertions in order and stops at the
// first failure.
func (r *Runner) execute(ctx context.Context, testSpec spec.TestSpec, exec *steps.Context, result *results.TestResult) results.Status {
	if err := steps.LoadFixtures(ctx, exec); err != nil {
		result.Metadata["setup_error"] = err.Error()
		return results.StatusFailed
	}

	for _, step := range testSpec.Steps {
		stepResult := r.runStep(ctx, exec, step)
		result.Steps = append(result.Steps, stepResult)
		if stepResult.Status == results.StatusFailed {
			return results.StatusFailed
		}
	}

	for _, assertion := range testSpec.Assertions {
		stepSpec := spec.StepSpec{
			Name:   assertion.Name,
			Action: fmt.Sprintf("assert.%s", assertion.Type),
			With:   assertion.With,
		}
		stepResult := r.runStep(ctx, exec, stepSpec)
		result.Assertions = append(result.Assertions, results.AssertionResult{
			Name:     assertion.Name,
			Type:     assertion.Type,
			Status:   stepResult.Status,
			Error:    stepResult.Error,
			Duration: stepResult.Duration,
			Metadata: stepResult.Metadata,
		})
		if diff := stepResult.Metadata["diff"]; diff != "" {
			if result.Artifacts == nil {
				result.Artifacts = make(map[string]string)
			}
			result.Artifacts["diff"] = diff
		}
		if stepResult.Status == results.StatusFailed {
			return results.StatusFailed
		}
	}
	return results.StatusPassed
}

func (r *Runner) runStep(ctx context.Context, exec *steps.Context, step spec.StepSpec) results.StepResult {
	start := time.Now().UTC()
	stepCtx, span := r.startStepSpan(ctx, exec, step)
	metadata, err := r.registry.Execute(stepCtx, exec, step)
	end := time.Now().UTC()

	stepResult := results.StepResult{
		Name:      step.Name,
		Action:    step.Action,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Metadata:  metadata,
	}
	if err != nil {
		stepResult.Status = results.StatusFailed
		stepResult.Error = err.Error()
		r.logger.Warn("step failed", zap.String("test", exec.TestName), zap.String("step", step.Name), zap.String("action", step.Action), zap.Error(err))
	} else {
		stepResult.Status = results.StatusPassed
	}

	r.finishStepSpan(span, exec, step, stepResult, err)
	r.metrics.ObserveStep(exec.TestName, step.Action, string(stepResult.Status), stepResult.Duration)
	return stepResult
}

func (r *Runner) skipResult(testSpec spec.TestSpec, status results.Status, reason string) results.TestResult {
	now := time.Now().UTC()
	return results.TestResult{
		Name:        testSpec.Metadata.Name,
		Description: testSpec.Metadata.Description,
		Tags:        testSpec.Metadata.Tags,
		Status:      status,
		StartTime:   now,
		EndTime:     now,
		Metadata: map[string]string{
			"skip_reason": reason,
		},
	}
}

func (r *Runner) observeTestMetrics(result results.TestResult) {
	r.metrics.ObserveTest(result.Name, string(result.Status), result.Duration)
	r.metrics.ObserveTestInfo(metrics.TestInfo{
		Test:     result.Name,
		Status:   string(result.Status),
		Graph:    result.Graph,
		StoreURL: r.client.Endpoint.BaseURL,
		Dataset:  r.client.Endpoint.Dataset,
	})
}

// finalizeTest records a timeout and drops the named graphs the test
// wrote, unless KeepGraphs is set.
func (r *Runner) finalizeTest(ctx context.Context, exec *steps.Context, result *results.TestResult) {
	if ctx.Err() == context.DeadlineExceeded {
		result.Metadata["timeout"] = "true"
		result.Metadata["timeout_error"] = ctx.Err().Error()
	}
	if writer := exec.Artifacts; writer != nil {
		if result.Artifacts == nil {
			result.Artifacts = make(map[string]string)
		}
		result.Artifacts["dir"] = writer.RunDir
	}
	if r.cfg.KeepGraphs {
		result.Metadata["graphs_kept"] = fmt.Sprintf("%d", len(exec.TouchedGraphs()))
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := steps.DropTouchedGraphs(cleanupCtx, exec); err != nil {
		result.Metadata["teardown_error"] = err.Error()
	}
}

// FlushArtifacts writes results, summary, metrics and the EARL report to
// the run directory and uploads it when an uploader is configured.
func (r *Runner) FlushArtifacts(ctx context.Context, run *results.RunResult) error {
	if _, err := r.artifacts.WriteJSON("results.json", run); err != nil {
		return err
	}
	if _, err := r.artifacts.WriteJSON("summary.json", run.Summarize()); err != nil {
		return err
	}
	if r.cfg.ReportEnabled {
		if _, err := report.Write(r.artifacts, run, ""); err != nil {
			return errors.Wrap(err, "write report")
		}
	}
	if r.cfg.MetricsEnabled {
		if err := r.metrics.Write(r.cfg.MetricsPath); err != nil {
			return err
		}
	}
	if r.cfg.UploadArtifacts && r.uploader != nil {
		uploaded, err := objectstore.UploadDir(ctx, r.uploader, r.artifacts.RunDir, r.cfg.RunID)
		if err != nil {
			return errors.Wrap(err, "upload artifacts")
		}
		r.logger.Info("artifacts uploaded", zap.Int("files", len(uploaded)), zap.String("prefix", r.cfg.RunID))
	}
	return nil
}
