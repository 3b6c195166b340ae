// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package tracer

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(hooks ...PresendHook) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	SetTraceProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewPresendExporter(exporter, hooks...))))
	return exporter
}

func TestTraceActive(t *testing.T) {
	newRecorder()
	assert.False(t, TraceActive(context.Background()))

	ctx, span := StartSpan(context.Background(), "root", nil)
	defer span.End()
	assert.True(t, TraceActive(ctx))
}

func TestStartAddFinish(t *testing.T) {
	assert := assert.New(t)
	exporter := newRecorder()

	ctx, root := StartSpan(context.Background(), "root", nil)
	_, span := StartSpan(ctx, "http_client", map[string]any{"meta.type": "http_client"})
	AddContext(span, map[string]any{"response.status_code": 404, "flag": true, "values": []string{"a", "b"}})
	FinishSpan(span, "request")

	spans := exporter.GetSpans()
	assert.Len(spans, 1)
	ev := EventFromSpan(spans.Snapshots()[0])
	assert.Equal("http_client", ev.Data[FieldName])
	assert.Equal("http_client", ev.Data["meta.type"])
	assert.Equal("request", ev.Data["meta.reason"])
	assert.Equal(int64(404), ev.Data["response.status_code"])
	assert.Equal(true, ev.Data["flag"])
	assert.Equal([]string{"a", "b"}, ev.Data["values"])
	assert.Equal(root.SpanContext().SpanID().String(), ev.Data[FieldParentID])
	assert.Equal(root.SpanContext().TraceID().String(), ev.Data[FieldTraceID])
}

func TestPresendHooks(t *testing.T) {
	assert := assert.New(t)
	exporter := newRecorder(
		func(ev *Event) { ev.Data["app_sha"] = "abc123" },
		func(ev *Event) {
			delete(ev.Data, "secret")
			ev.Data[FieldName] = "renamed"
			ev.Data["seen_sha"] = ev.Data["app_sha"]
		},
	)

	_, span := StartSpan(context.Background(), "original", map[string]any{"secret": "x"})
	span.End()

	spans := exporter.GetSpans()
	assert.Len(spans, 1)
	assert.Equal("renamed", spans[0].Name)
	ev := EventFromSpan(spans.Snapshots()[0])
	assert.Equal("abc123", ev.Data["app_sha"])
	assert.Equal("abc123", ev.Data["seen_sha"])
	assert.NotContains(ev.Data, "secret")
}

func TestInjectPropagators(t *testing.T) {
	assert := assert.New(t)
	newRecorder()
	defer func() { assert.NoError(SetPropagators()) }()

	assert.NoError(SetPropagators(PropagatorHoneycomb, PropagatorTraceContext, PropagatorB3))
	ctx, span := StartSpan(context.Background(), "root", nil)
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)
	assert.Contains(headers.Get(TraceHTTPHeader), "trace_id="+span.SpanContext().TraceID().String())
	assert.Contains(headers.Get("traceparent"), span.SpanContext().SpanID().String())
	assert.Contains(headers.Get("b3"), span.SpanContext().TraceID().String())

	headers = http.Header{}
	Inject(context.Background(), headers)
	assert.Empty(headers)
}

func TestUnknownPropagator(t *testing.T) {
	assert.Error(t, SetPropagators("jaeger"))

	_, err := NewPropagator(PropagatorB3, "jaeger")
	assert.Error(t, err)
	propagator, err := NewPropagator(PropagatorTraceContext, PropagatorBaggage)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, propagator.Fields())
}

func TestGetTraceContext(t *testing.T) {
	newRecorder()
	ctx, span := StartSpan(context.Background(), "root", nil)
	defer span.End()

	c := GetTraceContext(ctx)
	assert.Equal(t, span.SpanContext().SpanID().String(), c.ParentID)
	assert.Equal(t, "1;trace_id="+c.TraceID+",parent_id="+c.ParentID+",context=e30=", MarshalTraceContext(c))
}

func TestNewExporter(t *testing.T) {
	exporter, err := NewExporter(context.Background(), ExporterConfig{Protocol: ProtocolHTTP, Endpoint: "localhost:4318", Insecure: true})
	assert.NoError(t, err)
	assert.NoError(t, exporter.Shutdown(context.Background()))

	_, err = NewExporter(context.Background(), ExporterConfig{Protocol: "thrift"})
	assert.Error(t, err)
}

func TestEnsureScheme(t *testing.T) {
	assert.Equal(t, "https://api.honeycomb.io:443", ensureScheme("api.honeycomb.io:443"))
	assert.Equal(t, "http://localhost:4317", ensureScheme("http://localhost:4317"))
}
