// Package tracing sets up OpenTelemetry tracing for the service.
package tracing

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	hostPortRe = regexp.MustCompile(`^[\w.-]+:\d+$`)
	uriRe      = regexp.MustCompile(`^(http|https)://`)
)

// Provider owns the process tracer provider.
type Provider struct {
	trace.TracerProvider
}

// Init builds a tracer provider exporting over OTLP gRPC, or a noop provider
// when endpoint is empty. The provider is installed globally.
func Init(ctx context.Context, serviceName, endpoint string, headers map[string]string) (*Provider, error) {
	if endpoint == "" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return &Provider{tp}, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(stripScheme(endpoint))}

	isLocal, err := isLoopbackAddress(endpoint)
	if err != nil {
		return nil, fmt.Errorf("figuring out if %q is a local address: %w", endpoint, err)
	} else if isLocal {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating otlp trace grpc exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp}, nil
}

// Shutdown flushes pending spans. It is a no-op for the noop provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if sdk, ok := p.TracerProvider.(*sdktrace.TracerProvider); ok {
		return sdk.Shutdown(ctx)
	}
	return nil
}

// End records err on the span, sets its status and ends it.
// Call as: defer tracing.End(span, &err)
func End(span trace.Span, err *error) {
	defer span.End()
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

func stripScheme(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if uriRe.MatchString(endpoint) {
		if u, err := url.Parse(endpoint); err == nil {
			return u.Host
		}
	}
	return endpoint
}

// isLoopbackAddress reports whether every address the endpoint resolves to is
// loopback or private, in which case TLS is skipped.
func isLoopbackAddress(endpoint string) (bool, error) {
	endpoint = strings.TrimSpace(endpoint)

	var hostname string
	if hostPortRe.MatchString(endpoint) {
		hostname, _, _ = strings.Cut(endpoint, ":")
	} else if uriRe.MatchString(endpoint) {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false, err
		}
		hostname = u.Hostname()
	} else {
		return false, fmt.Errorf("unrecognized endpoint format")
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return false, err
	}

	for _, ip := range ips {
		if !ip.IsLoopback() && !ip.IsPrivate() {
			return false, nil
		}
	}
	return true, nil
}
