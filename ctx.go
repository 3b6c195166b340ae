// Copyright 2021-2023 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"context"
	"net"
)

// DialFunc opens the connection for a request, instead of dialing the address of the URL.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type dialCtxKey struct{}

// WithDial returns a context making module transports connect through dial.
// Applies when a new connection is needed; idle connections to the same address may be reused.
func WithDial(ctx context.Context, dial DialFunc) context.Context {
	if dial == nil {
		return ctx
	}
	return context.WithValue(ctx, dialCtxKey{}, dial)
}

func dialFromContext(ctx context.Context) DialFunc {
	dial, _ := ctx.Value(dialCtxKey{}).(DialFunc)
	return dial
}
