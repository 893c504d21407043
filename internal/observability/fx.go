package observability

import (
	"github.com/smallbiznis/pawnshop/internal/observability/logger"
	"github.com/smallbiznis/pawnshop/internal/observability/metrics"
	"github.com/smallbiznis/pawnshop/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires logging, tracing and metrics from the application config.
// The tracer provider is invoked eagerly so spans from the first request
// are exported.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.LoggerConfig,
		Config.TracingConfig,
		Config.MetricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.Workflow,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
