// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package traceheader

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func spanCtx(t *testing.T) trace.SpanContext {
	traceID, err := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	assert.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("b9c7c989f97918e1")
	assert.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
}

func TestMarshalEmptyFields(t *testing.T) {
	assert.Equal(t, "1;trace_id=0,parent_id=51001,context=e30=", Marshal(Context{TraceID: "0", ParentID: "51001"}))
}

func TestUnmarshal(t *testing.T) {
	assert := assert.New(t)
	c := Unmarshal(`1;trace_id=abc,parent_id=def,context=eyJ1c2VyIjoiNDIifQ==`)
	assert.NotNil(c)
	assert.Equal("abc", c.TraceID)
	assert.Equal("def", c.ParentID)
	assert.Equal(map[string]any{"user": "42"}, c.Fields)
}

func TestUnmarshalBad(t *testing.T) {
	assert.Nil(t, Unmarshal(""))
	assert.Nil(t, Unmarshal("2;trace_id=abc"))
	assert.Nil(t, Unmarshal("1;parent_id=def"))
}

func TestInjectNoSpan(t *testing.T) {
	headers := http.Header{}
	Propagator{}.Inject(context.Background(), propagation.HeaderCarrier(headers))
	assert.Empty(t, headers)
}

func TestInjectExtract(t *testing.T) {
	assert := assert.New(t)
	member, err := baggage.NewMemberRaw("user", "42")
	assert.NoError(err)
	bag, err := baggage.New(member)
	assert.NoError(err)
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx(t))
	ctx = baggage.ContextWithBaggage(ctx, bag)

	headers := http.Header{}
	Propagator{}.Inject(ctx, propagation.HeaderCarrier(headers))
	assert.Equal("1;trace_id=0af7651916cd43dd8448eb211c80319c,parent_id=b9c7c989f97918e1,context=eyJ1c2VyIjoiNDIifQ==", headers.Get(Header))

	extracted := Propagator{}.Extract(context.Background(), propagation.HeaderCarrier(headers))
	remote := trace.SpanContextFromContext(extracted)
	assert.True(remote.IsRemote())
	assert.Equal("0af7651916cd43dd8448eb211c80319c", remote.TraceID().String())
	assert.Equal("b9c7c989f97918e1", remote.SpanID().String())
	assert.Equal("42", baggage.FromContext(extracted).Member("user").Value())
}

func TestExtractNonHexIDs(t *testing.T) {
	headers := http.Header{}
	headers.Set(Header, Marshal(Context{TraceID: "0", ParentID: "51001"}))
	ctx := Propagator{}.Extract(context.Background(), propagation.HeaderCarrier(headers))
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())
}
