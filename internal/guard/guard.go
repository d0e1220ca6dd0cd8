// Package guard rejects re-entrant calls into a component. A mutating
// operation marks the context before making external calls (settlement
// transfers, swaps); any synchronous callback that re-enters the same
// component carries the marked context and is refused. Independent concurrent
// callers use fresh contexts and simply serialize on the component mutex.
package guard

import (
	"context"
	"fmt"

	dErrors "govvault/pkg/domain-errors"
)

type contextKeyInFlight struct{ component string }

// Enter marks ctx as being inside a mutating operation of component. It
// returns the marked context, or a reentrant_call error if ctx is already
// inside one.
func Enter(ctx context.Context, component string) (context.Context, error) {
	key := contextKeyInFlight{component: component}
	if ctx.Value(key) != nil {
		return nil, dErrors.New(dErrors.CodeReentrantCall, fmt.Sprintf("reentrant call into %s", component))
	}
	return context.WithValue(ctx, key, struct{}{}), nil
}
