// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"fmt"
	"net/http"
	"time"

	"github.com/geckoboard/honeytrace/trace/tracer"
	"go.opentelemetry.io/otel/trace"
)

const spanName = "http_client"

// Transport is an http.RoundTripper making an http_client span for each request sent within a trace.
// Requests outside of a trace are passed to the base transport untouched.
type Transport struct {
	base http.RoundTripper
}

// NewTransport wraps base, http.DefaultTransport if nil.
func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base}
}

// RoundTrip sends the request.
// The span ends when the response body is read till EOF or closed.
// If no response is received, the span is left open.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !tracer.TraceActive(req.Context()) {
		return t.base.RoundTrip(req)
	}

	ctx, span := tracer.StartSpan(req.Context(), spanName, map[string]any{"meta.type": spanName})
	traced := req.Clone(ctx) // RoundTripper must not modify the caller's request.
	tracer.Inject(ctx, traced.Header)

	d, err := Describe(traced)
	if err != nil {
		log.WithContext(ctx).WithError(err).Debug("Cannot describe request")
	} else {
		tracer.AddContext(span, d.Fields())
	}
	recordSpanStarted(d)
	start := time.Now()

	resp, err := t.base.RoundTrip(traced)
	if err != nil {
		log.WithContext(ctx).Debugf("[%s] Fail req: %s %s: %v", span.SpanContext().SpanID(), d.Method, d.URL, err)
		return resp, err
	}

	finishOnResponseEnd(span, resp, func() { recordSpanFinished(d, resp.StatusCode, start) })
	return resp, nil
}

func finishOnResponseEnd(span trace.Span, resp *http.Response, finished func()) {
	finish := func(body []byte) {
		fields := ResponseHeaderFields(resp.Header)
		fields["response.http_version"] = fmt.Sprintf("%d.%d", resp.ProtoMajor, resp.ProtoMinor)
		fields["response.status_code"] = resp.StatusCode
		if resp.StatusCode >= 400 {
			fields["response.body"] = string(body)
		}
		tracer.AddContext(span, fields)
		tracer.FinishSpan(span, "request")
		finished()
	}

	if resp.Body == nil || resp.StatusCode == http.StatusSwitchingProtocols {
		finish(nil)
		return
	}
	resp.Body = captureBody(resp.Body, finish)
}
