// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package traceheader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Header is the name of the HTTP header carrying Honeycomb trace data.
const Header = "X-Honeycomb-Trace"

const version = "1"

// Context is the trace data carried by the header.
// Fields are the trace-level fields, propagated as an opaque base64 JSON blob.
type Context struct {
	TraceID  string
	ParentID string
	Fields   map[string]any
}

// FromContext builds header data from the span context and baggage of ctx.
// Parent ID is the span ID of the span in ctx, i.e. the span the receiver is to continue.
func FromContext(ctx context.Context) Context {
	spanCtx := trace.SpanContextFromContext(ctx)
	c := Context{Fields: map[string]any{}}
	if spanCtx.IsValid() {
		c.TraceID = spanCtx.TraceID().String()
		c.ParentID = spanCtx.SpanID().String()
	}
	for _, member := range baggage.FromContext(ctx).Members() {
		c.Fields[member.Key()] = member.Value()
	}
	return c
}

// Marshal makes the header value, e.g. "1;trace_id=...,parent_id=...,context=e30=".
func Marshal(c Context) string {
	fields := c.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	blob, err := json.Marshal(fields)
	if err != nil {
		blob = []byte("{}")
	}
	return fmt.Sprintf("%s;trace_id=%s,parent_id=%s,context=%s", version, c.TraceID, c.ParentID, base64.StdEncoding.EncodeToString(blob))
}

// Unmarshal parses a header value. Returns nil if value is not a known version or has no trace ID.
func Unmarshal(value string) *Context {
	ver, rest, ok := strings.Cut(value, ";")
	if !ok || ver != version {
		return nil
	}

	var c Context
	for _, kv := range strings.Split(rest, ",") {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case "trace_id":
			c.TraceID = val
		case "parent_id":
			c.ParentID = val
		case "context":
			if blob, err := base64.StdEncoding.DecodeString(val); err == nil {
				_ = json.Unmarshal(blob, &c.Fields)
			}
		}
	}

	if c.TraceID == "" {
		return nil
	}
	return &c
}

// Propagator is an OpenTelemetry text map propagator for the Honeycomb trace header.
type Propagator struct{}

var _ propagation.TextMapPropagator = Propagator{}

// Inject sets the header if ctx holds a valid span context.
func (Propagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return
	}
	carrier.Set(Header, Marshal(FromContext(ctx)))
}

// Extract returns a context with the remote span context and baggage found in carrier.
// IDs that are not OpenTelemetry compatible hex strings are ignored.
func (Propagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	c := Unmarshal(carrier.Get(Header))
	if c == nil {
		return ctx
	}

	traceID, err := trace.TraceIDFromHex(c.TraceID)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(c.ParentID)
	if err != nil {
		return ctx
	}
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx = trace.ContextWithRemoteSpanContext(ctx, spanCtx)

	var members []baggage.Member
	for key, val := range c.Fields {
		s, ok := val.(string)
		if !ok {
			s = fmt.Sprint(val)
		}
		if member, err := baggage.NewMemberRaw(key, s); err == nil {
			members = append(members, member)
		}
	}
	if len(members) > 0 {
		if bag, err := baggage.New(members...); err == nil {
			ctx = baggage.ContextWithBaggage(ctx, bag)
		}
	}
	return ctx
}

// Fields returns the header names Inject may set.
func (Propagator) Fields() []string {
	return []string{Header}
}
