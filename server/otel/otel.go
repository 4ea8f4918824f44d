package otel

import (
	"context"
	"fmt"

	config "github.com/a2aruntime/a2a/server/config"
	otel "go.opentelemetry.io/otel"
	attribute "go.opentelemetry.io/otel/attribute"
	prometheus "go.opentelemetry.io/otel/exporters/prometheus"
	metric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	resource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	zap "go.uber.org/zap"
)

// OpenTelemetry defines the runtime's ambient metrics surface. Span-per-RPC
// tracing and token/prompt metrics are not in scope; this is deliberately
// thin: one counter/histogram per ambient concern.
type OpenTelemetry interface {
	RecordRPCRequest(ctx context.Context, method string)
	RecordRPCDuration(ctx context.Context, method string, durationMs float64)
	RecordTaskTransition(ctx context.Context, from, to string)
	RecordSSESubscription(ctx context.Context, delta int)
	RecordWebhookDelivery(ctx context.Context, success bool, attempt int)

	ShutDown(ctx context.Context) error
}

type OpenTelemetryImpl struct {
	logger        *zap.Logger
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	rpcRequestCounter     metric.Int64Counter
	rpcDurationHistogram  metric.Float64Histogram
	taskTransitionCounter metric.Int64Counter
	sseSubscriptionGauge  metric.Int64UpDownCounter
	webhookDeliveryCounter metric.Int64Counter
}

// NewOpenTelemetry creates a new OpenTelemetry implementation with proper dependency injection
func NewOpenTelemetry(cfg *config.Config, logger *zap.Logger) (OpenTelemetry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	o := &OpenTelemetryImpl{logger: logger}

	if err := o.initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize opentelemetry: %w", err)
	}

	return o, nil
}

func (o *OpenTelemetryImpl) initialize(cfg *config.Config) error {
	o.logger.Info("initializing opentelemetry",
		zap.String("agent_name", cfg.AgentName),
		zap.String("version", cfg.AgentVersion))

	exporter, err := prometheus.New()
	if err != nil {
		o.logger.Error("failed to create prometheus exporter", zap.Error(err))
		return err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AgentName),
		semconv.ServiceVersion(cfg.AgentVersion),
	)

	histogramBoundaries := []float64{1, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}

	latencyView := sdkmetric.NewView(
		sdkmetric.Instrument{Kind: sdkmetric.InstrumentKindHistogram},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: histogramBoundaries},
		},
	)

	o.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(latencyView),
	)
	otel.SetMeterProvider(o.meterProvider)

	o.meter = o.meterProvider.Meter(cfg.AgentName)

	if err := o.initializeMetrics(); err != nil {
		o.logger.Error("failed to initialize metrics", zap.Error(err))
		return err
	}

	o.logger.Info("opentelemetry initialized successfully")
	return nil
}

func (o *OpenTelemetryImpl) RecordRPCRequest(ctx context.Context, method string) {
	o.rpcRequestCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

func (o *OpenTelemetryImpl) RecordRPCDuration(ctx context.Context, method string, durationMs float64) {
	o.rpcDurationHistogram.Record(ctx, durationMs, metric.WithAttributes(attribute.String("method", method)))
}

func (o *OpenTelemetryImpl) RecordTaskTransition(ctx context.Context, from, to string) {
	o.taskTransitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (o *OpenTelemetryImpl) RecordSSESubscription(ctx context.Context, delta int) {
	o.sseSubscriptionGauge.Add(ctx, int64(delta))
}

func (o *OpenTelemetryImpl) RecordWebhookDelivery(ctx context.Context, success bool, attempt int) {
	o.webhookDeliveryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.Int("attempt", attempt),
	))
}

func (o *OpenTelemetryImpl) ShutDown(ctx context.Context) error {
	return o.meterProvider.Shutdown(ctx)
}

// initializeMetrics initializes all the OpenTelemetry metrics
func (o *OpenTelemetryImpl) initializeMetrics() error {
	var err error

	o.rpcRequestCounter, err = o.meter.Int64Counter(
		"a2a.rpc.requests.total",
		metric.WithDescription("Total number of JSON-RPC requests dispatched"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rpc request counter: %w", err)
	}

	o.rpcDurationHistogram, err = o.meter.Float64Histogram(
		"a2a.rpc.duration",
		metric.WithDescription("Duration of JSON-RPC method dispatch"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rpc duration histogram: %w", err)
	}

	o.taskTransitionCounter, err = o.meter.Int64Counter(
		"a2a.task.transitions.total",
		metric.WithDescription("Total number of task state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create task transition counter: %w", err)
	}

	o.sseSubscriptionGauge, err = o.meter.Int64UpDownCounter(
		"a2a.sse.subscriptions.active",
		metric.WithDescription("Number of currently open SSE subscriptions"),
		metric.WithUnit("{subscription}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sse subscription gauge: %w", err)
	}

	o.webhookDeliveryCounter, err = o.meter.Int64Counter(
		"a2a.webhook.deliveries.total",
		metric.WithDescription("Total number of webhook delivery attempts"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook delivery counter: %w", err)
	}

	o.logger.Debug("all opentelemetry metrics initialized successfully")
	return nil
}
