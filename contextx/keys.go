// Package contextx carries request-scoped values (request IDs, the feed being
// refreshed) through context.Context.
package contextx

// contextKey is an unexported type used as context key to avoid collisions
// with keys defined in other packages.
type contextKey int

const (
	requestIDKey contextKey = iota
	feedKey
)
