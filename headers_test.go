// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseHeaderFields(t *testing.T) {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Frame-Options", "DENY")
	headers.Add("Set-Cookie", "a=1")
	headers.Set("Cache-Control", "no-cache")
	headers.Add("Vary", "Accept")
	headers.Add("Vary", "Origin")
	headers["x-lower"] = []string{"raw"}

	assert.Equal(t, map[string]any{
		"response.header.content-type": "application/json",
		"response.header.vary":         "Accept, Origin",
		"response.header.x-lower":      "raw",
	}, ResponseHeaderFields(headers))
}

func TestResponseHeaderFieldsEmpty(t *testing.T) {
	assert.Empty(t, ResponseHeaderFields(nil))
}
