package conneg

import "context"

type matchKey struct{}

// WithMatch adds a negotiation result to the context.
func WithMatch(ctx context.Context, match Match) context.Context {
	return context.WithValue(ctx, matchKey{}, match)
}

// MatchFromContext retrieves the negotiation result stored by the middleware.
func MatchFromContext(ctx context.Context) (Match, bool) {
	match, ok := ctx.Value(matchKey{}).(Match)
	return match, ok
}
