// Package actor carries the identity of the caller through request contexts.
package actor

import "context"

type contextKey struct{}

// System is the actor recorded for work not triggered by a user, such as the
// scheduled payment runner.
const System = "system"

// WithID returns a copy of ctx carrying actor id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ID returns the actor id carried by ctx, or "" when there is none.
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// ContextProvider resolves the current actor from the request context.
type ContextProvider struct{}

// CurrentActor returns the actor id stored by the auth middleware.
func (ContextProvider) CurrentActor(ctx context.Context) string {
	return ID(ctx)
}
