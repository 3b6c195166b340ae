// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"net/http"
	"strings"
)

var ignoredResponseHeaders = map[string]bool{
	"access-control-allow-credentials": true,
	"access-control-allow-origin":      true,
	"access-control-expose-headers":    true,
	"cache-control":                    true,
	"set-cookie":                       true,
	"x-content-type-options":           true,
	"x-frame-options":                  true,
	"x-newrelic-app-data":              true,
}

// ResponseHeaderFields returns span fields for response headers, except the noisy or sensitive ones.
// Keys are "response.header." followed by the lower-cased header name.
// Repeated headers are joined with ", ".
func ResponseHeaderFields(headers http.Header) map[string]any {
	fields := make(map[string]any, len(headers))
	for header, values := range headers {
		clean := strings.ToLower(header)
		if ignoredResponseHeaders[clean] {
			continue
		}
		fields["response.header."+clean] = strings.Join(values, ", ")
	}
	return fields
}
