// Package observability provides OpenTelemetry tracing and metrics for
// outbound requests.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-service"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("my-service"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("my-service"))
//
// Per request:
//
//	oc := observability.NewOperationContext("my-service", "GET", requestID, metrics)
//	ctx, span := oc.StartSpanForOperation(ctx, observability.SpanHTTPRequest)
//	defer oc.EndOperation(ctx, span, "ok", nil)
//
// Without InitTracer/InitMeter the global no-op providers are used, so
// instrumented code costs next to nothing.
package observability
