package owner

import "context"

type contextKey struct{}

// NewContext returns a context carrying the resolved request owner.
func NewContext(ctx context.Context, o Owner) context.Context {
	return context.WithValue(ctx, contextKey{}, o)
}

// FromContext returns the owner stored by the identity middleware.
func FromContext(ctx context.Context) (Owner, bool) {
	o, ok := ctx.Value(contextKey{}).(Owner)
	if !ok || o.IsZero() {
		return Owner{}, false
	}
	return o, true
}
