// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package tracer

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Event is the flat key/value view of a finished span, as sent to Honeycomb.
type Event struct {
	Data map[string]any
}

// PresendHook may modify an event before it is sent.
type PresendHook func(ev *Event)

// Event fields derived from the span itself. Hooks may read them; only "name" is written back.
const (
	FieldName       = "name"
	FieldTraceID    = "trace.trace_id"
	FieldSpanID     = "trace.span_id"
	FieldParentID   = "trace.parent_id"
	FieldDurationMs = "duration_ms"
	FieldService    = "service.name"
)

var derivedFields = map[string]bool{
	FieldName:       true,
	FieldTraceID:    true,
	FieldSpanID:     true,
	FieldParentID:   true,
	FieldDurationMs: true,
	FieldService:    true,
}

type presendExporter struct {
	next  sdktrace.SpanExporter
	hooks []PresendHook
}

// NewPresendExporter wraps an exporter so that hooks run on every span before it is exported.
// Hooks are called in order. Changes they make to event data become span attributes.
func NewPresendExporter(next sdktrace.SpanExporter, hooks ...PresendHook) sdktrace.SpanExporter {
	return &presendExporter{next: next, hooks: hooks}
}

// ExportSpans runs the hooks, then exports.
func (e *presendExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(e.hooks) == 0 {
		return e.next.ExportSpans(ctx, spans)
	}

	out := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, span := range spans {
		stub := tracetest.SpanStubFromReadOnlySpan(span)
		ev := eventFromStub(stub)
		for _, hook := range e.hooks {
			if hook != nil {
				hook(&ev)
			}
		}
		applyEvent(&stub, ev)
		out = append(out, stub.Snapshot())
	}
	return e.next.ExportSpans(ctx, out)
}

// Shutdown shuts the wrapped exporter down.
func (e *presendExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// EventFromSpan makes the event view of a span.
func EventFromSpan(span sdktrace.ReadOnlySpan) Event {
	return eventFromStub(tracetest.SpanStubFromReadOnlySpan(span))
}

func eventFromStub(stub tracetest.SpanStub) Event {
	data := make(map[string]any, len(stub.Attributes)+len(derivedFields))
	data[FieldName] = stub.Name
	data[FieldTraceID] = stub.SpanContext.TraceID().String()
	data[FieldSpanID] = stub.SpanContext.SpanID().String()
	if stub.Parent.IsValid() {
		data[FieldParentID] = stub.Parent.SpanID().String()
	}
	if !stub.EndTime.IsZero() {
		data[FieldDurationMs] = float64(stub.EndTime.Sub(stub.StartTime).Microseconds()) / 1000
	}
	if stub.Resource != nil {
		if service, ok := stub.Resource.Set().Value(attribute.Key(FieldService)); ok {
			data[FieldService] = service.AsString()
		}
	}
	for _, kv := range stub.Attributes {
		data[string(kv.Key)] = kv.Value.AsInterface()
	}
	return Event{Data: data}
}

func applyEvent(stub *tracetest.SpanStub, ev Event) {
	if name, ok := ev.Data[FieldName].(string); ok && name != "" {
		stub.Name = name
	}

	keys := make([]string, 0, len(ev.Data))
	for key := range ev.Data {
		if !derivedFields[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, attributeFor(key, ev.Data[key]))
	}
	stub.Attributes = attrs
}
