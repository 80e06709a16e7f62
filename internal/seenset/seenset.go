// Package seenset tracks which order IDs have already been surfaced to the
// user during the current dashboard session. An ID present in the set must
// never trigger another new-order alert.
package seenset

import "context"

// Store is the seen-set contract consumed by the reconciler and the alert
// controller. It deliberately has no error returns: persistence problems
// degrade to in-memory tracking, they never fail a caller.
type Store interface {
	Has(ctx context.Context, orderID string) bool
	MarkSeen(ctx context.Context, orderID string)
	Reset(ctx context.Context)
	Len(ctx context.Context) int
}

// durable is implemented by backends whose operations can fail. The
// FallbackStore adapts a durable backend into an errorless Store.
type durable interface {
	Has(ctx context.Context, orderID string) (bool, error)
	MarkSeen(ctx context.Context, orderID string) error
	Reset(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}
