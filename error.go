// Copyright 2021 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import "errors"

var (
	// ErrBadArguments is returned by the module entry points if the arguments are not one of the supported shapes.
	ErrBadArguments = errors.New("bad request arguments")

	// ErrProtocolNotSupported is returned if the URL or options ask for a scheme the module does not serve.
	ErrProtocolNotSupported = errors.New("protocol not supported")
)
