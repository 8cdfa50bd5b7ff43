package otelcol

import (
	"context"

	"fogsly/pkg/config"
	"fogsly/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otelcol",
	fx.Provide(
		NewTracerProvider,
		NewMeterProvider,
	),
)

func defaultTraceProviderOption(cfg *config.Config) []sdktrace.TracerProviderOption {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		res = resource.Default()
	}
	return []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
}

func ProvideTrace(exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append(opts, sdktrace.WithBatcher(exporter))
	return sdktrace.NewTracerProvider(opts...)
}

// NewTracerProvider exports spans over OTLP when OTEL.ADDR is set; otherwise the
// global (no-op) provider is returned.
func NewTracerProvider(lc fx.Lifecycle, cfg *config.Config) trace.TracerProvider {
	if cfg.Otel.Addr == "" {
		return otel.GetTracerProvider()
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	if cfg.Otel.Protocol == "http" {
		exporter, err = exporters.ProvideHttp(cfg)
	} else {
		exporter, err = exporters.ProvideGrpc(cfg)
	}
	if err != nil {
		zap.L().Error("failed to create otlp exporter, tracing disabled", zap.Error(err))
		return otel.GetTracerProvider()
	}

	tp := ProvideTrace(exporter, defaultTraceProviderOption(cfg)...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	zap.L().Info("otel tracing enabled", zap.String("addr", cfg.Otel.Addr), zap.String("protocol", cfg.Otel.Protocol))
	return tp
}

func NewMeterProvider() metric.MeterProvider {
	return otel.GetMeterProvider()
}
