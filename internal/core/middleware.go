// Package core holds wiring shared by the gRPC and HTTP servers.
package core

import (
	"cmp"
	"slices"
)

// Middleware priorities. Lower values wrap outermost and run first.
const (
	OrderRecovery  = 100
	OrderCORS      = 150
	OrderRequestID = 200
	OrderTracing   = 300
	OrderLogging   = 400
	OrderRateLimit = 500
)

type entry[T any] struct {
	value T
	order int
}

// MiddlewareBuilder collects interceptors or HTTP middlewares and returns
// them sorted by priority, so registration order does not matter.
type MiddlewareBuilder[T any] struct {
	entries []entry[T]
}

// Add registers v with the given priority.
func (b *MiddlewareBuilder[T]) Add(order int, v T) {
	b.entries = append(b.entries, entry[T]{value: v, order: order})
}

// Build returns the values ordered by priority. Equal priorities keep their
// registration order.
func (b *MiddlewareBuilder[T]) Build() []T {
	sorted := slices.Clone(b.entries)
	slices.SortStableFunc(sorted, func(a, c entry[T]) int {
		return cmp.Compare(a.order, c.order)
	})
	out := make([]T, len(sorted))
	for i, e := range sorted {
		out[i] = e.value
	}
	return out
}

// Len is the number of registered values.
func (b *MiddlewareBuilder[T]) Len() int { return len(b.entries) }
