// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	clientRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "honeytrace_http_client_latency_ms",
			Help:    "Latency of traced HTTP client requests in milliseconds, until the response body is consumed.",
			Buckets: []float64{1, 2, 5, 10, 100, 250, 500, 1000, 2000},
		},
		[]string{"method", "endpoint"},
	)
	clientSpansStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytrace_http_client_spans_started_total",
			Help: "Total number of http_client spans started.",
		},
		[]string{"method", "endpoint"},
	)
	clientSpansFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytrace_http_client_spans_finished_total",
			Help: "Total number of http_client spans finished, by response status code.",
		},
		[]string{"method", "endpoint", "status"},
	)
)

func init() {
	prometheus.MustRegister(clientRequestLatency)
	prometheus.MustRegister(clientSpansStarted)
	prometheus.MustRegister(clientSpansFinished)
}

func recordSpanStarted(d RequestDescriptor) {
	clientSpansStarted.WithLabelValues(d.Method, d.endpoint()).Inc()
}

func recordSpanFinished(d RequestDescriptor, statusCode int, start time.Time) {
	endpoint := d.endpoint()
	clientRequestLatency.WithLabelValues(d.Method, endpoint).Observe(float64(time.Since(start).Milliseconds()))
	clientSpansFinished.WithLabelValues(d.Method, endpoint, strconv.Itoa(statusCode)).Inc()
}
