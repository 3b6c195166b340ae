// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package tracer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/geckoboard/honeytrace/trace/traceheader"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceHTTPHeader is the name of the header that carries trace context to downstream services.
const TraceHTTPHeader = traceheader.Header

const libraryName = "github.com/geckoboard/honeytrace"

// Propagator names accepted by SetPropagators.
const (
	PropagatorHoneycomb    = "honeycomb"
	PropagatorTraceContext = "tracecontext"
	PropagatorB3           = "b3"
	PropagatorB3Multi      = "b3multi"
	PropagatorBaggage      = "baggage"
)

type state struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

var current atomic.Pointer[state]

func init() {
	current.Store(&state{tracer: otel.Tracer(libraryName), propagator: traceheader.Propagator{}})
}

func load() *state {
	return current.Load()
}

// SetTraceProvider sets global Open Telemetry trace provider to be used.
func SetTraceProvider(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	s := *load()
	s.tracer = tp.Tracer(libraryName)
	current.Store(&s)
}

// SetPropagators selects the propagators used on outgoing requests, in the order given.
// With no names the Honeycomb header is used alone.
func SetPropagators(names ...string) error {
	propagator, err := NewPropagator(names...)
	if err != nil {
		return err
	}
	SetPropagator(propagator)
	return nil
}

// NewPropagator builds the composite of the named propagators, without installing it.
func NewPropagator(names ...string) (propagation.TextMapPropagator, error) {
	if len(names) == 0 {
		names = []string{PropagatorHoneycomb}
	}

	var propagators []propagation.TextMapPropagator
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case PropagatorHoneycomb:
			propagators = append(propagators, traceheader.Propagator{})
		case PropagatorTraceContext:
			propagators = append(propagators, propagation.TraceContext{})
		case PropagatorB3:
			propagators = append(propagators, b3.New())
		case PropagatorB3Multi:
			propagators = append(propagators, b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)))
		case PropagatorBaggage:
			propagators = append(propagators, propagation.Baggage{})
		default:
			return nil, fmt.Errorf("unknown propagator: %q", name)
		}
	}
	return propagation.NewCompositeTextMapPropagator(propagators...), nil
}

// SetPropagator sets the propagator used on outgoing requests.
func SetPropagator(propagator propagation.TextMapPropagator) {
	otel.SetTextMapPropagator(propagator)
	s := *load()
	s.propagator = propagator
	current.Store(&s)
}

// TraceActive tells whether ctx belongs to a trace.
func TraceActive(ctx context.Context) bool {
	return trace.SpanContextFromContext(ctx).IsValid()
}

// StartSpan starts a child span of the span in ctx, with fields added as attributes.
// The returned context carries the new span.
func StartSpan(ctx context.Context, name string, fields map[string]any) (context.Context, trace.Span) {
	return load().tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(Attributes(fields)...))
}

// AddContext adds fields to the span.
func AddContext(span trace.Span, fields map[string]any) {
	span.SetAttributes(Attributes(fields)...)
}

// FinishSpan ends the span, recording why it was finished.
// Span status is left unset.
func FinishSpan(span trace.Span, reason string) {
	if reason != "" {
		span.SetAttributes(attribute.String("meta.reason", reason))
	}
	span.End()
}

// GetTraceContext returns the trace data to be propagated from ctx.
func GetTraceContext(ctx context.Context) traceheader.Context {
	return traceheader.FromContext(ctx)
}

// MarshalTraceContext makes the value of TraceHTTPHeader.
func MarshalTraceContext(c traceheader.Context) string {
	return traceheader.Marshal(c)
}

// Inject sets the configured propagation headers for the span in ctx.
// Input headers object must not be nil.
func Inject(ctx context.Context, headers http.Header) {
	load().propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}

// Attributes converts a field map to span attributes.
func Attributes(fields map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for key, value := range fields {
		attrs = append(attrs, attributeFor(key, value))
	}
	return attrs
}

func attributeFor(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case []int:
		return attribute.IntSlice(key, v)
	case []int64:
		return attribute.Int64Slice(key, v)
	case []float64:
		return attribute.Float64Slice(key, v)
	case []bool:
		return attribute.BoolSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
