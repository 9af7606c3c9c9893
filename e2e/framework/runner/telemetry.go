package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/results"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/steps"
)

func (r *Runner) startRunSpan(ctx context.Context, specs []spec.TestSpec) (context.Context, trace.Span) {
	if !r.telemetry.Enabled() {
		return ctx, nil
	}
	attrs := map[string]string{
		"e2e.run_id":      r.cfg.RunID,
		"e2e.parallelism": fmt.Sprintf("%d", r.cfg.Parallelism),
		"e2e.spec_count":  fmt.Sprintf("%d", len(specs)),
		"store.url":       r.client.Endpoint.BaseURL,
		"store.dataset":   r.client.Endpoint.Dataset,
	}
	return r.telemetry.StartSpan(ctx, "e2e.run", attrs)
}

func (r *Runner) finishRunSpan(span trace.Span, run *results.RunResult, runErr error) {
	if span == nil || !r.telemetry.Enabled() {
		return
	}
	attrs := map[string]string{}
	status := "passed"
	if run != nil {
		summary := run.Summarize()
		attrs["e2e.run_id"] = run.RunID
		attrs["e2e.duration_ms"] = fmt.Sprintf("%d", run.Duration.Milliseconds())
		attrs["e2e.total"] = fmt.Sprintf("%d", summary.Total)
		attrs["e2e.passed"] = fmt.Sprintf("%d", summary.Passed)
		attrs["e2e.failed"] = fmt.Sprintf("%d", summary.Failed)
		attrs["e2e.skipped"] = fmt.Sprintf("%d", summary.Skipped)
		attrs["e2e.pending"] = fmt.Sprintf("%d", summary.Pending)
		if run.Readiness != nil {
			attrs["store.ready"] = fmt.Sprintf("%t", run.Readiness.Ready)
			attrs["store.ready_attempts"] = fmt.Sprintf("%d", run.Readiness.Attempts)
		}
		if run.Failed() {
			status = "failed"
		}
	}
	if runErr != nil {
		r.telemetry.MarkSpan(span, "failed", runErr, attrs)
		return
	}
	if status == "failed" {
		r.telemetry.MarkSpan(span, status, errors.New("run failed"), attrs)
		return
	}
	r.telemetry.MarkSpan(span, status, nil, attrs)
}

func (r *Runner) startTestSpan(ctx context.Context, testSpec spec.TestSpec, exec *steps.Context) (context.Context, trace.Span) {
	if !r.telemetry.Enabled() {
		return ctx, nil
	}
	spanName := "e2e.test"
	if testSpec.Metadata.Name != "" {
		spanName = "e2e.test:" + testSpec.Metadata.Name
	}
	return r.telemetry.StartSpan(ctx, spanName, r.baseTestAttributes(testSpec, exec))
}

func (r *Runner) finishTestSpan(span trace.Span, testSpec spec.TestSpec, exec *steps.Context, result *results.TestResult) {
	if span == nil || !r.telemetry.Enabled() || result == nil {
		return
	}
	attrs := mergeAttrs(r.baseTestAttributes(testSpec, exec), testResultAttributes(result))
	r.telemetry.MarkSpan(span, string(result.Status), testFailureError(*result), attrs)
}

func (r *Runner) startStepSpan(ctx context.Context, exec *steps.Context, step spec.StepSpec) (context.Context, trace.Span) {
	if !r.telemetry.Enabled() {
		return ctx, nil
	}
	spanName := "e2e.step"
	if step.Action != "" {
		spanName = "e2e.step:" + step.Action
	} else if step.Name != "" {
		spanName = "e2e.step:" + step.Name
	}
	return r.telemetry.StartSpan(ctx, spanName, r.baseStepAttributes(exec, step))
}

func (r *Runner) finishStepSpan(span trace.Span, exec *steps.Context, step spec.StepSpec, result results.StepResult, stepErr error) {
	if span == nil || !r.telemetry.Enabled() {
		return
	}
	attrs := mergeAttrs(r.baseStepAttributes(exec, step), stepResultAttributes(result))
	r.telemetry.MarkSpan(span, string(result.Status), stepErr, attrs)
}

func (r *Runner) baseTestAttributes(testSpec spec.TestSpec, exec *steps.Context) map[string]string {
	attrs := map[string]string{
		"e2e.run_id":    r.cfg.RunID,
		"e2e.test":      testSpec.Metadata.Name,
		"store.url":     r.client.Endpoint.BaseURL,
		"store.dataset": r.client.Endpoint.Dataset,
	}
	if testSpec.Metadata.Owner != "" {
		attrs["e2e.owner"] = testSpec.Metadata.Owner
	}
	if testSpec.Metadata.Component != "" {
		attrs["e2e.component"] = testSpec.Metadata.Component
	}
	if len(testSpec.Metadata.Tags) > 0 {
		attrs["e2e.tags"] = strings.Join(testSpec.Metadata.Tags, ",")
	}
	if len(testSpec.Fixtures) > 0 {
		attrs["e2e.fixtures"] = joinFixtureNames(testSpec.Fixtures)
	}
	if exec != nil {
		attrs["e2e.test_graph"] = exec.TestGraph()
	}
	return attrs
}

func (r *Runner) baseStepAttributes(exec *steps.Context, step spec.StepSpec) map[string]string {
	attrs := map[string]string{
		"e2e.run_id": r.cfg.RunID,
	}
	if exec != nil {
		attrs["e2e.test"] = exec.TestName
		attrs["e2e.test_graph"] = exec.TestGraph()
	}
	if step.Name != "" {
		attrs["e2e.step"] = step.Name
	}
	if step.Action != "" {
		attrs["e2e.action"] = step.Action
	}
	return attrs
}

func joinFixtureNames(refs []spec.FixtureRef) string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Alias())
	}
	return strings.Join(names, ",")
}

func testResultAttributes(result *results.TestResult) map[string]string {
	attrs := map[string]string{
		"e2e.status":      string(result.Status),
		"e2e.duration_ms": fmt.Sprintf("%d", result.Duration.Milliseconds()),
	}
	if result.Metadata != nil && result.Metadata["timeout"] == "true" {
		attrs["e2e.timeout"] = "true"
	}
	if diff := result.Artifacts["diff"]; diff != "" {
		attrs["e2e.diff"] = diff
	}
	return attrs
}

func stepResultAttributes(result results.StepResult) map[string]string {
	return map[string]string{
		"e2e.status":      string(result.Status),
		"e2e.duration_ms": fmt.Sprintf("%d", result.Duration.Milliseconds()),
	}
}

func testFailureError(result results.TestResult) error {
	if result.Status != results.StatusFailed {
		return nil
	}
	if result.Metadata != nil {
		if msg := strings.TrimSpace(result.Metadata["timeout_error"]); msg != "" {
			return errors.New(msg)
		}
		if msg := strings.TrimSpace(result.Metadata["setup_error"]); msg != "" {
			return errors.New(msg)
		}
	}
	for _, step := range result.Steps {
		if step.Status == results.StatusFailed && step.Error != "" {
			return errors.New(step.Error)
		}
	}
	for _, assertion := range result.Assertions {
		if assertion.Status == results.StatusFailed && assertion.Error != "" {
			return errors.New(assertion.Error)
		}
	}
	return errors.New("test failed")
}

func mergeAttrs(values ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, attrs := range values {
		for key, value := range attrs {
			if value == "" {
				continue
			}
			out[key] = value
		}
	}
	return out
}
