package obs

import "context"

// routePatternKey is the context key storing matched route pattern.
type routePatternKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

type draftIDKey struct{}

// WithDraftID records the draft addressed by a request. The returned pointer
// lets inner handlers fill in the id after routing. An existing holder is
// reused so every middleware layer sees the same id.
func WithDraftID(ctx context.Context) (context.Context, *string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if holder, ok := ctx.Value(draftIDKey{}).(*string); ok {
		return ctx, holder
	}
	holder := new(string)
	return context.WithValue(ctx, draftIDKey{}, holder), holder
}

// SetDraftID stores id in the holder installed by WithDraftID.
func SetDraftID(ctx context.Context, id string) {
	if ctx == nil {
		return
	}
	if holder, ok := ctx.Value(draftIDKey{}).(*string); ok {
		*holder = id
	}
}

// DraftIDFromContext returns the draft id recorded for the request.
func DraftIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if holder, ok := ctx.Value(draftIDKey{}).(*string); ok {
		return *holder
	}
	return ""
}
