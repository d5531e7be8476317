// Package kit holds the transport-neutral plumbing shared by the HTTP, MCP
// and CLI surfaces: request-scoped context values and the Endpoint type
// every surface adapts to.
package kit

import "context"

// Endpoint is one operation, independent of the transport that invokes it.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares. The first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// WithTransportTag returns a Middleware that marks the context with transport.
func WithTransportTag(transport string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			return next(WithTransport(ctx, transport), req)
		}
	}
}
