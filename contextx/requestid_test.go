package contextx

import "testing"

func TestWithRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(t.Context(), "req-abc-123")
	got := RequestIDFromContext(ctx)
	if got != "req-abc-123" {
		t.Fatalf("got %q, want %q", got, "req-abc-123")
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	got := RequestIDFromContext(t.Context())
	if got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestEnsureRequestID(t *testing.T) {
	ctx := EnsureRequestID(t.Context())
	id := RequestIDFromContext(ctx)
	if len(id) != 32 {
		t.Fatalf("generated id %q has length %d, want 32", id, len(id))
	}
	if got := RequestIDFromContext(EnsureRequestID(ctx)); got != id {
		t.Fatalf("existing id replaced: got %q, want %q", got, id)
	}
}

func TestFeedRoundTrip(t *testing.T) {
	if got := FeedFromContext(t.Context()); got != "" {
		t.Fatalf("expected empty feed, got %q", got)
	}
	ctx := WithFeed(t.Context(), "cisa_kev")
	if got := FeedFromContext(ctx); got != "cisa_kev" {
		t.Fatalf("got %q, want %q", got, "cisa_kev")
	}
}
