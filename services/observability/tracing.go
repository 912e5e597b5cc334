// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability wires OpenTelemetry tracing and Prometheus
// metrics into the server, the same two-signal setup the teacher uses
// for its own egress tracing: spans for request flow, counters and
// histograms for the numbers an operator dashboards.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig controls span export. Pretty is meant for local
// development; production deployments would swap the exporter for an
// OTLP one without touching call sites, since everything here goes
// through the global otel.Tracer.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Pretty         bool
}

// InitTracing installs a process-wide TracerProvider and returns a
// shutdown func the caller must invoke before exit to flush pending
// spans.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	var exporterOpts []stdouttrace.Option
	if cfg.Pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: build trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Tracer returns the named tracer from the global provider. Components
// call this once at construction time rather than on every span.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
