package shared

import "context"

// Actor identifies the authenticated caller and the roles assigned to it.
// Role assignment happens in the auth gateway in front of this service; the
// engine only consumes the result.
type Actor struct {
	ID        int64
	CompanyID int64
	Roles     []string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor is
// returned when no actor was attached.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
