package contextx

import "context"

// WithFeed records which feed the work in ctx is being done for.
func WithFeed(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, feedKey, name)
}

// FeedFromContext returns the feed name stored in ctx, or "".
func FeedFromContext(ctx context.Context) string {
	name, _ := ctx.Value(feedKey).(string)
	return name
}
