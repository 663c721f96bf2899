package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/netmanager/logger"
	"github.com/kbukum/netmanager/version"
)

// MeterConfig describes where client metrics are exported and how the
// exporting process identifies itself.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is an OTLP/HTTP collector host:port.
	Endpoint string
	Insecure bool
	// Interval between exports. Zero uses the SDK default.
	Interval time.Duration
}

// DefaultMeterConfig targets a local collector with plaintext transport.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.Get().Short(),
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a periodic OTLP/HTTP meter provider as the global one.
// Call Shutdown on the returned provider to flush pending points.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter for %s: %w", config.Endpoint, err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("metric resource: %w", err)
	}

	var reader sdkmetric.Reader
	if config.Interval > 0 {
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(config.Interval))
	} else {
		reader = sdkmetric.NewPeriodicReader(exporter)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	logger.Debug("otlp meter provider installed", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Instrument names recorded by Metrics.
const (
	MetricClientRequests = "http.client.requests"
	MetricClientDuration = "http.client.request.duration"
	MetricClientInFlight = "http.client.requests.in_flight"
	MetricClientFailures = "http.client.failures"
)

// Metric attribute keys.
const (
	metricAttrTarget     = "netmanager.target"
	metricAttrOperation  = "netmanager.operation"
	metricAttrOutcome    = "netmanager.outcome"
	metricAttrErrorClass = "error.type"
)

// Metrics records one set of instruments per outbound call.
type Metrics struct {
	sent     metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	failures metric.Int64Counter
}

// NewMetrics registers the client instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.sent, err = meter.Int64Counter(MetricClientRequests,
		metric.WithDescription("Outbound HTTP calls completed, by target, operation and outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricClientRequests, err)
	}
	if m.latency, err = meter.Float64Histogram(MetricClientDuration,
		metric.WithDescription("Time from dispatch until the outcome of an outbound HTTP call is known"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricClientDuration, err)
	}
	if m.inFlight, err = meter.Int64UpDownCounter(MetricClientInFlight,
		metric.WithDescription("Outbound HTTP calls awaiting a response"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricClientInFlight, err)
	}
	if m.failures, err = meter.Int64Counter(MetricClientFailures,
		metric.WithDescription("Outbound HTTP calls that ended in a failure outcome, by error class"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricClientFailures, err)
	}
	return &m, nil
}

// CallStarted marks a call as in flight.
func (m *Metrics) CallStarted(ctx context.Context) {
	m.inFlight.Add(ctx, 1)
}

// CallFinished clears the in-flight mark and records the call's outcome and latency.
func (m *Metrics) CallFinished(ctx context.Context, target, operation, outcome string, elapsed time.Duration) {
	m.inFlight.Add(ctx, -1)
	tgt := attribute.String(metricAttrTarget, target)
	op := attribute.String(metricAttrOperation, operation)
	m.sent.Add(ctx, 1, metric.WithAttributes(tgt, op, attribute.String(metricAttrOutcome, outcome)))
	m.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(tgt, op))
}

// CallFailed counts a failed call under its error class.
func (m *Metrics) CallFailed(ctx context.Context, errClass, target string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(metricAttrErrorClass, errClass),
		attribute.String(metricAttrTarget, target),
	))
}
