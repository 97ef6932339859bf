package middleware

import (
	"context"

	"github.com/xraph/runner/job"
)

// Handler is the terminal function that runs one tick.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// tick being executed and the next handler in the chain.
type Middleware func(ctx context.Context, t *job.Tick, next Handler) error

// Chain composes middleware into a single Middleware. The first entry is
// the outermost wrapper:
//
//	Chain(logging, recover) runs as logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, t *job.Tick, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, t, prev)
			}
		}
		return h(ctx)
	}
}
