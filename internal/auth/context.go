// ABOUTME: Actor context for tracking who triggered an admin action
// ABOUTME: Provides WithActor/ActorFromContext for propagating identity via context

package auth

import (
	"context"
)

// Actor identifies who performed an action, recorded in audit events.
type Actor struct {
	Name  string
	Admin bool
}

// actorContextKey is the key type for storing Actor in context.Context.
type actorContextKey struct{}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext retrieves the Actor from the context, returning nil if not present.
func ActorFromContext(ctx context.Context) *Actor {
	actor, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok {
		return nil
	}
	return actor
}

// ActorName returns the actor's name, or fallback when none is attached.
func ActorName(ctx context.Context, fallback string) string {
	if actor := ActorFromContext(ctx); actor != nil && actor.Name != "" {
		return actor.Name
	}
	return fallback
}
