// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Options are request parameters given instead of, or on top of, a URL.
// Non-empty fields override the corresponding part of the URL.
type Options struct {
	Method string
	// Protocol is "http:" or "https:". The trailing colon is optional.
	Protocol string
	// Hostname is the host name without port. Takes precedence over Host.
	Hostname string
	// Host is a host name, optionally with port.
	Host string
	Port int
	// Path is the path and query to be sent, e.g. "/test?something=true". Overrides Pathname and Search.
	Path     string
	Pathname string
	Search   string
	// Header is added to the request. A "Host" entry sets the Host header to be sent.
	Header http.Header
	// Body is the request body. Ignored by Get.
	Body io.Reader
	// Dial opens the connection for this request, instead of dialing the URL's address.
	Dial DialFunc
}

// Intent is a request call resolved from the argument shapes the entry points accept:
// (url), (url, options), (url, callback), (url, options, callback), (options), (options, callback).
// A url is a string, *url.URL or url.URL; options are Options or *Options; callback is func(*http.Response).
type Intent struct {
	URL      *url.URL
	Options  *Options
	Callback func(*http.Response)
}

func badArguments(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrBadArguments, fmt.Sprintf(format, a...))
}

// NewIntent resolves entry point arguments.
func NewIntent(args ...any) (Intent, error) {
	var in Intent
	if len(args) == 0 || len(args) > 3 {
		return in, badArguments("%d arguments", len(args))
	}

	for i, arg := range args {
		switch a := arg.(type) {
		case string:
			if i != 0 {
				return in, badArguments("URL must be the first argument")
			}
			u, err := url.Parse(a)
			if err != nil {
				return in, badArguments("%v", err)
			}
			if !u.IsAbs() || u.Host == "" {
				return in, badArguments("URL %q is not absolute", a)
			}
			in.URL = u
		case *url.URL:
			if i != 0 || a == nil {
				return in, badArguments("URL must be the first argument")
			}
			u := *a
			in.URL = &u
		case url.URL:
			if i != 0 {
				return in, badArguments("URL must be the first argument")
			}
			in.URL = &a
		case Options:
			if i > 1 || (i == 1 && in.URL == nil) {
				return in, badArguments("options must follow the URL")
			}
			in.Options = &a
		case *Options:
			if a == nil || i > 1 || (i == 1 && in.URL == nil) {
				return in, badArguments("options must follow the URL")
			}
			o := *a
			in.Options = &o
		case func(*http.Response):
			if i == 0 || i != len(args)-1 {
				return in, badArguments("callback must be the last argument")
			}
			in.Callback = a
		default:
			return in, badArguments("unsupported argument type %T", arg)
		}
	}
	return in, nil
}

// NewRequest makes the HTTP request the intent stands for, on a module serving scheme.
// Defaults are scheme, "localhost", "/" and GET. If get is set, then method is GET and no body is sent.
func (in Intent) NewRequest(ctx context.Context, scheme string, get bool) (*http.Request, error) {
	o := in.Options
	if o == nil {
		o = &Options{}
	}

	target := url.URL{Scheme: scheme, Host: "localhost"}
	path := "/"
	if in.URL != nil {
		if in.URL.Scheme != "" {
			target.Scheme = strings.ToLower(in.URL.Scheme)
		}
		if in.URL.Host != "" {
			target.Host = in.URL.Host
		}
		path = in.URL.RequestURI()
	}

	if o.Protocol != "" {
		target.Scheme = strings.TrimSuffix(strings.ToLower(o.Protocol), ":")
	}
	if target.Scheme != scheme {
		return nil, fmt.Errorf("%w: %q, expected %q", ErrProtocolNotSupported, target.Scheme, scheme)
	}

	hostname, port := target.Hostname(), target.Port()
	if o.Host != "" {
		if h, p, err := net.SplitHostPort(o.Host); err == nil {
			hostname, port = h, p
		} else {
			hostname = o.Host
		}
	}
	if o.Hostname != "" {
		hostname = o.Hostname
	}
	if o.Port != 0 {
		port = strconv.Itoa(o.Port)
	}
	target.Host = hostname
	if port != "" {
		target.Host = net.JoinHostPort(hostname, port)
	}

	path = mergePath(path, o)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	method := http.MethodGet
	var body io.Reader
	if !get {
		if o.Method != "" {
			method = strings.ToUpper(o.Method)
		}
		body = o.Body
	}

	req, err := http.NewRequestWithContext(WithDial(ctx, o.Dial), method, target.Scheme+"://"+target.Host+path, body)
	if err != nil {
		return nil, badArguments("%v", err)
	}

	for header, values := range o.Header {
		if http.CanonicalHeaderKey(header) == "Host" {
			if len(values) > 0 {
				req.Host = values[0]
			}
			continue
		}
		for _, value := range values {
			req.Header.Add(header, value)
		}
	}
	return req, nil
}

// mergePath applies the path fields of the options to the URL's request URI.
func mergePath(requestURI string, o *Options) string {
	if o.Path != "" {
		return o.Path
	}
	if o.Pathname == "" && o.Search == "" {
		return requestURI
	}

	pathname, search := requestURI, ""
	if i := strings.IndexByte(requestURI, '?'); i >= 0 {
		pathname, search = requestURI[:i], requestURI[i:]
	}
	if o.Pathname != "" {
		pathname = o.Pathname
	}
	if o.Search != "" {
		search = "?" + strings.TrimPrefix(o.Search, "?")
	}
	return pathname + search
}
