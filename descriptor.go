// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// RequestDescriptor is the normalized view of an outgoing request, as added to its span.
type RequestDescriptor struct {
	Method string
	Scheme string
	// Host is the host name, without port.
	Host string
	// Path is the escaped path, without query.
	Path string
	// Query is the raw query with leading "?", or empty.
	Query string
	URL   string
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// Describe makes the descriptor of a request about to be sent.
// Fields come from what is going to be transmitted: the Host header wins over the URL host,
// and path and query are those of the request URL.
func Describe(req *http.Request) (RequestDescriptor, error) {
	if req == nil || req.URL == nil {
		return RequestDescriptor{}, errors.New("request has no URL")
	}

	host := req.Host
	if host == "" {
		host = req.Header.Get("Host")
	}
	if host == "" {
		host = req.URL.Host
	}
	scheme := strings.TrimSuffix(strings.ToLower(req.URL.Scheme), ":")

	u, err := url.Parse(scheme + "://" + host + req.URL.RequestURI())
	if err != nil {
		return RequestDescriptor{}, err
	}
	if u.Port() != "" && u.Port() == defaultPorts[scheme] {
		u.Host = u.Hostname()
		if strings.Contains(u.Host, ":") {
			u.Host = "[" + u.Host + "]"
		}
	}
	if u.Path == "" {
		u.Path = "/"
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	d := RequestDescriptor{
		Method: method,
		Scheme: scheme,
		Host:   u.Hostname(),
		Path:   u.EscapedPath(),
		URL:    u.String(),
	}
	if u.RawQuery != "" {
		d.Query = "?" + u.RawQuery
	}
	return d, nil
}

// Fields returns the descriptor as span fields.
func (d RequestDescriptor) Fields() map[string]any {
	return map[string]any{
		"request.method": d.Method,
		"request.scheme": d.Scheme,
		"request.host":   d.Host,
		"request.path":   d.Path,
		"request.query":  d.Query,
		"request.url":    d.URL,
	}
}

func (d RequestDescriptor) endpoint() string {
	if d.Host == "" {
		return ""
	}
	u, err := url.Parse(d.URL)
	if err != nil || u.Port() == "" {
		return d.Host
	}
	return net.JoinHostPort(d.Host, u.Port())
}
