package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
)

const (
	instrumentationName = "fdk-fuseki-service-e2e"
	defaultServiceName  = "fdk-fuseki-service-e2e"
)

// Telemetry wraps the OTel tracer used for run, test and step spans.
type Telemetry struct {
	enabled bool
	tracer  trace.Tracer
}

// Init configures the OTLP trace exporter and provider. When telemetry is
// not configured it returns a disabled Telemetry and a no-op shutdown.
func Init(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Telemetry, func(context.Context) error, error) {
	enabled := cfg.OTelEnabled || strings.TrimSpace(cfg.OTelEndpoint) != ""
	if !enabled {
		return &Telemetry{enabled: false}, func(context.Context) error { return nil }, nil
	}
	if strings.TrimSpace(cfg.OTelEndpoint) == "" {
		return nil, nil, fmt.Errorf("otel endpoint required when telemetry is enabled")
	}

	traceExporter, err := newTraceExporter(ctx, cfg, parseKeyValueList(cfg.OTelHeaders))
	if err != nil {
		return nil, nil, err
	}
	res, err := resource.New(ctx, resource.WithFromEnv(), resource.WithAttributes(buildResourceAttributes(cfg)...))
	if err != nil {
		return nil, nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)

	logger.Info("otel enabled", zap.String("endpoint", cfg.OTelEndpoint))
	return New(tracerProvider), tracerProvider.Shutdown, nil
}

// New wraps an existing tracer provider.
func New(provider trace.TracerProvider) *Telemetry {
	return &Telemetry{enabled: true, tracer: provider.Tracer(instrumentationName)}
}

// Enabled reports whether telemetry is active.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.enabled
}

// StartSpan starts a new span with string attributes. It returns a nil span
// when telemetry is disabled.
func (t *Telemetry) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	if !t.Enabled() {
		return ctx, nil
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
}

// MarkSpan sets span status, records errors, adds attributes and ends the span.
func (t *Telemetry) MarkSpan(span trace.Span, status string, err error, attrs map[string]string) {
	if !t.Enabled() || span == nil {
		return
	}
	if len(attrs) > 0 {
		span.SetAttributes(toAttributes(attrs)...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, status)
	}
	span.End()
}

func newTraceExporter(ctx context.Context, cfg *config.Config, headers map[string]string) (*otlptrace.Exporter, error) {
	options := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTelEndpoint)}
	if cfg.OTelInsecure {
		options = append(options, otlptracegrpc.WithInsecure())
	}
	if len(headers) > 0 {
		options = append(options, otlptracegrpc.WithHeaders(headers))
	}
	return otlptracegrpc.New(ctx, options...)
}

func buildResourceAttributes(cfg *config.Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", defaultIfEmpty(cfg.OTelServiceName, defaultServiceName)),
		attribute.String("e2e.run_id", cfg.RunID),
		attribute.String("e2e.dataset", cfg.Dataset),
	}
	extra := parseKeyValueList(cfg.OTelResourceAttrs)
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		attrs = append(attrs, attribute.String(key, extra[key]))
	}
	return attrs
}

func parseKeyValueList(value string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(kv[1])
	}
	return out
}

func toAttributes(attrs map[string]string) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for key, value := range attrs {
		kvs = append(kvs, attribute.String(key, value))
	}
	return kvs
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
