// Package observability sets up OpenTelemetry tracing for the push service
// and holds the span conventions shared by the delivery path.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-chat-push/internal/config"
)

// ServiceNamespace groups this service with the rest of the chat backend.
const ServiceNamespace = "chat"

// Test seams.
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		return resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version),
				semconv.ServiceNamespace(ServiceNamespace),
			),
		)
	}
)

// SetupOTel configures OpenTelemetry tracing and returns a shutdown function.
// Globals are only replaced once the exporter and resource are built.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(opts...))
	if err != nil {
		return nil, err
	}
	res, err := newServiceResourceFn(ctx, cfg.ServiceName, version)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// ChannelOutcome is the per-channel tally recorded on a delivery span.
type ChannelOutcome struct {
	Channel string
	Sent    int
	Failed  int
	Total   int
	Error   string
}

// RecordDelivery annotates span with each channel's counts. The span status
// is Error only when no channel delivered anything and at least one failed
// with a reason.
func RecordDelivery(span trace.Span, success bool, outcomes ...ChannelOutcome) {
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, 1+4*len(outcomes))
	attrs = append(attrs, attribute.Bool("push.success", success))
	var reason string
	for _, o := range outcomes {
		p := "push." + o.Channel + "."
		attrs = append(attrs,
			attribute.Int(p+"sent", o.Sent),
			attribute.Int(p+"failed", o.Failed),
			attribute.Int(p+"total", o.Total),
		)
		if o.Error != "" {
			attrs = append(attrs, attribute.String(p+"error", o.Error))
			if reason == "" {
				reason = o.Channel + ": " + o.Error
			}
		}
	}
	span.SetAttributes(attrs...)
	if !success && reason != "" {
		span.SetStatus(codes.Error, reason)
	}
}
