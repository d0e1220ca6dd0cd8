// Package requestcontext carries request-scoped values (request ID, caller
// identity) through context so services stay transport-agnostic.
package requestcontext

import (
	"context"

	"govvault/pkg/domain"
)

type (
	contextKeyRequestID struct{}
	contextKeyCaller    struct{}
)

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, id)
}

// RequestID retrieves the request ID, or "" if none is set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return id
	}
	return ""
}

// WithCaller stores the authenticated caller identity in the context.
// The auth middleware sets it after verifying the bearer token.
func WithCaller(ctx context.Context, caller domain.Address) context.Context {
	return context.WithValue(ctx, contextKeyCaller{}, caller)
}

// Caller retrieves the authenticated caller identity. The second return is
// false when the request was not authenticated.
func Caller(ctx context.Context) (domain.Address, bool) {
	caller, ok := ctx.Value(contextKeyCaller{}).(domain.Address)
	return caller, ok
}
