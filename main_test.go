// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"testing"

	"github.com/geckoboard/honeytrace/trace/tracer"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

var beeline *Beeline

func TestMain(m *testing.M) {
	var err error
	beeline, err = Setup("tests", "?", Mock)
	if err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// testHandler echoes the received trace header. Query with_error=1 answers 400.
func testHandler() http.Handler {
	r := mux.NewRouter()
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received := r.Header.Get(tracer.TraceHTTPHeader)
		if received == "" {
			received = "MISSING!"
		}
		w.Header().Set("Received-Trace-Header", received)
		w.Header().Set("Received-Method", r.Method)
		w.Header().Set("Received-Host", r.Host)
		w.Header().Set("Received-URI", r.RequestURI)
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Custom", "yes")

		if r.URL.Query().Get("with_error") != "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Bad Request"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			_, _ = w.Write(body)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func newTestServer(t *testing.T) (*httptest.Server, int) {
	srv := httptest.NewServer(testHandler())
	t.Cleanup(srv.Close)
	return srv, serverPort(t, srv)
}

func serverPort(t *testing.T, srv *httptest.Server) int {
	u, err := url.Parse(srv.URL)
	assert.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	assert.NoError(t, err)
	return port
}

// dialTo makes a Dial override connecting to srv whatever the address requested.
func dialTo(srv *httptest.Server) DialFunc {
	return func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, srv.Listener.Addr().String())
	}
}

// startTrace forgets previous events and starts a root span.
func startTrace(t *testing.T) (context.Context, trace.Span) {
	beeline.ResetEvents()
	return beeline.StartTrace(context.Background(), t.Name())
}

// clientEvents returns the http_client events sent so far.
func clientEvents() []Event {
	var events []Event
	for _, ev := range beeline.SentEvents() {
		if ev.Data[tracer.FieldName] == spanName {
			events = append(events, ev)
		}
	}
	return events
}

// singleClientEvent expects exactly one http_client event.
func singleClientEvent(t *testing.T) Event {
	events := clientEvents()
	if !assert.Len(t, events, 1) {
		t.FailNow()
	}
	return events[0]
}

func readBody(t *testing.T, resp *http.Response) string {
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.NoError(t, resp.Body.Close())
	return string(body)
}
