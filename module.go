// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DialTimeout defines the default timeout for dialing connections.
var DialTimeout = 2 * time.Second

// Requester is the pair of entry points outbound HTTP calls go through.
// Both accept the argument shapes described at Intent.
// Get sends a GET request without body.
type Requester interface {
	Request(ctx context.Context, args ...any) (*http.Response, error)
	Get(ctx context.Context, args ...any) (*http.Response, error)
}

// Module is an HTTP client module serving one scheme.
// It is safe for concurrent requests. Transport settings are to be made at startup.
type Module struct {
	scheme string
	client *http.Client

	mu                 sync.Mutex
	nonTracedTransport http.RoundTripper // Kept to allow transport changes after instrumentation.
}

var _ Requester = (*Module)(nil)

// Default modules. Setup instruments both.
var (
	HTTP  = NewModule("http")
	HTTPS = NewModule("https")
)

// ModuleFor returns the default module of the scheme, or nil.
func ModuleFor(scheme string) *Module {
	switch scheme {
	case "http":
		return HTTP
	case "https":
		return HTTPS
	}
	return nil
}

// NewModule creates a client module for scheme "http" or "https".
// The instance has a semi-permanent transport TCP connection.
func NewModule(scheme string) *Module {
	m := &Module{scheme: scheme, client: &http.Client{}}
	m.SetTransport(newTransport())
	return m
}

func newDialer() *net.Dialer {
	return &net.Dialer{Timeout: DialTimeout, KeepAlive: 30 * time.Second}
}

// dialContext dials with the function found in ctx, if any.
func dialContext(dialer *net.Dialer) DialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if dial := dialFromContext(ctx); dial != nil {
			return dial(ctx, network, addr)
		}
		return dialer.DialContext(ctx, network, addr)
	}
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxConnsPerHost = 1000
	t.MaxIdleConnsPerHost = 100
	t.DialContext = dialContext(newDialer())
	return t
}

func newH2Transport() *http2.Transport {
	return &http2.Transport{DialTLSContext: getDialTLSCallback(true)}
}

func newH2CTransport() *http2.Transport {
	return &http2.Transport{AllowHTTP: true, DialTLSContext: getDialTLSCallback(false)}
}

func getDialTLSCallback(withTLS bool) func(context.Context, string, string, *tls.Config) (net.Conn, error) {
	dial := dialContext(&net.Dialer{Timeout: DialTimeout})
	return func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		// Skip TLS if it is the H2C
		if !withTLS {
			return conn, nil
		}

		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if p := tlsConn.ConnectionState().NegotiatedProtocol; p != http2.NextProtoTLS {
			_ = tlsConn.Close()
			return nil, fmt.Errorf("http2: unexpected ALPN protocol %q; want %q", p, http2.NextProtoTLS)
		}
		return tlsConn, nil
	}
}

// Scheme returns the scheme the module serves.
func (m *Module) Scheme() string {
	return m.scheme
}

// Client returns the http.Client of the module.
// Requests sent by it are traced the same way as those of Request and Get.
func (m *Module) Client() *http.Client {
	return m.client
}

// GetTransport returns the module's underlying transport, not wrapped by instrumentation.
func (m *Module) GetTransport() http.RoundTripper {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonTracedTransport
}

// SetTransport sets the underlying transport, wrapping it with instrumentation if the module is instrumented.
// It is not the same as setting Client().Transport directly.
func (m *Module) SetTransport(transport http.RoundTripper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonTracedTransport = transport
	if isWrapped(m) {
		m.client.Transport = NewTransport(transport)
	} else {
		m.client.Transport = transport
	}
}

// H2 forces HTTP2 over TLS (a.k.a. prior knowledge).
func (m *Module) H2() *Module {
	m.SetTransport(newH2Transport())
	return m
}

// H2C forces HTTP2 cleartext.
func (m *Module) H2C() *Module {
	m.SetTransport(newH2CTransport())
	return m
}

// TLS sets TLS setting of the transport, e.g. server cert or whether to accept untrusted certs.
func (m *Module) TLS(tlsConfig *tls.Config) *Module {
	switch transport := m.GetTransport().(type) {
	case *http2.Transport:
		transport.TLSClientConfig = tlsConfig
	case *http.Transport:
		transport.TLSClientConfig = tlsConfig
	default:
		m.SetTransport(&http.Transport{TLSClientConfig: tlsConfig, DialContext: dialContext(newDialer())})
	}
	return m
}

// OAuth2 sets an access token of the client credentials grant on each request.
// Tokens are obtained with the current underlying transport and cached till expiry.
// Set transport options, such as TLS, before calling this.
//
// Make sure encrypted transport is used, e.g. the link is https.
func (m *Module) OAuth2(config clientcredentials.Config) *Module {
	base := m.GetTransport()
	tokenClient := &http.Client{Timeout: 10 * time.Second, Transport: base}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, tokenClient)
	m.SetTransport(&oauth2.Transport{Source: config.TokenSource(ctx), Base: base})
	return m
}

// Timeout sets client timeout.
func (m *Module) Timeout(timeout time.Duration) *Module {
	m.client.Timeout = timeout
	return m
}

// Instrument makes modules produce http_client spans, HTTP and HTTPS if none given.
// Instrumenting a module again has no effect.
func Instrument(mods ...*Module) {
	if len(mods) == 0 {
		mods = []*Module{HTTP, HTTPS}
	}
	for _, m := range mods {
		m.instrument()
	}
}

func (m *Module) instrument() {
	if alreadyWrapped(m) {
		return
	}
	m.mu.Lock()
	m.client.Transport = NewTransport(m.nonTracedTransport)
	m.mu.Unlock()
	log.Debugf("Instrumented %s module", m.scheme)
}

// Request sends a request and returns the response.
// Method is taken from options, GET by default.
// The callback, if any, is called with the response before returning.
// It is the caller's responsibility to close http.Response.Body.
func (m *Module) Request(ctx context.Context, args ...any) (*http.Response, error) {
	in, err := NewIntent(args...)
	if err != nil {
		return nil, err
	}
	return m.do(ctx, in, false)
}

// Get sends a GET request without body, whatever the options say.
func (m *Module) Get(ctx context.Context, args ...any) (*http.Response, error) {
	in, err := NewIntent(args...)
	if err != nil {
		return nil, err
	}
	return m.do(ctx, in, true)
}

// Do sends a request already built.
func (m *Module) Do(req *http.Request) (*http.Response, error) {
	return m.client.Do(req)
}

func (m *Module) do(ctx context.Context, in Intent, get bool) (*http.Response, error) {
	if err := ctx.Err(); err != nil { // Do not start the Dial if context cancelled/deadlined already.
		return nil, err
	}

	req, err := in.NewRequest(ctx, m.scheme, get)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	if in.Callback != nil {
		in.Callback(resp)
	}
	return resp, nil
}
