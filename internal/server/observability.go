package server

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider *sdktrace.TracerProvider

	JobCounter      metric.Int64Counter
	JobDuration     metric.Int64Histogram
	ExamplesLoaded  metric.Int64Counter
	ControlsDropped metric.Int64Counter
}

func SetupObservability(ctx context.Context, cfg ObservabilityConfig) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tomi-api"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Info("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	meter := otel.Meter(serviceName)
	tracer := otel.Tracer(serviceName)
	jobCounter, _ := meter.Int64Counter("tomi_job_total")
	jobDuration, _ := meter.Int64Histogram("tomi_job_duration_ms")
	examplesLoaded, _ := meter.Int64Counter("tomi_examples_loaded_total")
	controlsDropped, _ := meter.Int64Counter("tomi_control_questions_dropped_total")
	return &Observability{
		Tracer:          tracer,
		Meter:           meter,
		traceProvider:   tp,
		JobCounter:      jobCounter,
		JobDuration:     jobDuration,
		ExamplesLoaded:  examplesLoaded,
		ControlsDropped: controlsDropped,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

func (o *Observability) MarkJob(ctx context.Context, status string) {
	if o == nil {
		return
	}
	o.JobCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) MarkJobDuration(ctx context.Context, split string, durationMS int64) {
	if o == nil {
		return
	}
	o.JobDuration.Record(ctx, durationMS, metric.WithAttributes(
		attribute.String("split", split),
	))
}

func (o *Observability) MarkExamplesLoaded(ctx context.Context, split string, count int64) {
	if o == nil {
		return
	}
	o.ExamplesLoaded.Add(ctx, count, metric.WithAttributes(
		attribute.String("split", split),
	))
}

func (o *Observability) MarkControlsDropped(ctx context.Context, count int64) {
	if o == nil || count <= 0 {
		return
	}
	o.ControlsDropped.Add(ctx, count)
}
