package observability

import (
	"context"
	"errors"
	"fmt"

	"checkoutservice/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the OpenTelemetry providers installed for the process.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	shutdownFuncs  []func(context.Context) error
}

// Shutdown flushes and stops every provider that was started.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var err error
	for _, fn := range t.shutdownFuncs {
		err = errors.Join(err, fn(ctx))
	}
	t.shutdownFuncs = nil
	return err
}

// SetupTelemetry installs the W3C propagators and, when an endpoint is
// configured, the OTLP/HTTP log and trace pipelines. Exporter failures are
// returned joined but do not stop the providers that did start.
func SetupTelemetry(ctx context.Context, cfg *config.Config) (*Telemetry, error) {
	// Kafka headers and HTTP requests both carry trace context
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Telemetry{TracerProvider: otel.GetTracerProvider()}
	if !cfg.TelemetryEnabled() {
		return t, nil
	}

	res, err := newResource()
	if err != nil {
		return t, fmt.Errorf("failed to create resource: %w", err)
	}

	var setupErr error
	if err := t.setupLogging(ctx, cfg, res); err != nil {
		setupErr = errors.Join(setupErr, fmt.Errorf("OTLP Log Exporter: %w", err))
	}
	if err := t.setupTracing(ctx, cfg, res); err != nil {
		setupErr = errors.Join(setupErr, fmt.Errorf("OTLP Trace Exporter: %w", err))
	}
	return t, setupErr
}

func newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
}

func (t *Telemetry) setupLogging(ctx context.Context, cfg *config.Config, res *resource.Resource) error {
	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.OtelEndpoint),
		otlploghttp.WithURLPath(config.LogsPath),
		otlploghttp.WithHeaders(map[string]string{"Authorization": cfg.OtelAuthHeader}),
	)
	if err != nil {
		return err
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter,
			sdklog.WithExportTimeout(config.ExportTimeout),
			sdklog.WithMaxQueueSize(config.MaxQueueSize),
		)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(loggerProvider)
	t.shutdownFuncs = append(t.shutdownFuncs, loggerProvider.Shutdown)
	return nil
}

func (t *Telemetry) setupTracing(ctx context.Context, cfg *config.Config, res *resource.Resource) error {
	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OtelEndpoint),
		otlptracehttp.WithURLPath(config.TracesPath),
		otlptracehttp.WithHeaders(map[string]string{"Authorization": cfg.OtelAuthHeader}),
	)
	if err != nil {
		return err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter,
			sdktrace.WithExportTimeout(config.ExportTimeout),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		)),
	)
	otel.SetTracerProvider(tracerProvider)
	t.TracerProvider = tracerProvider
	t.shutdownFuncs = append(t.shutdownFuncs, tracerProvider.Shutdown)
	return nil
}
