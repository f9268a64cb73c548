// Package kit holds the transport-agnostic plumbing shared by the HTTP and
// MCP surfaces: the Endpoint function shape, middleware chaining, identity
// context keys, and the MCP tool registration adapter.
package kit

import "context"

// Endpoint is the transport-agnostic unit of work. HTTP handlers and MCP
// tools both decode into a request value and call an Endpoint.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first middleware is the
// outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
