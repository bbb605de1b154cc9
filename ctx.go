package auth

import (
	"context"
)

var userCtxKey = &contextKey{"user"}
var actorCtxKey = &contextKey{"actor"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithActor records who performs the operations run with ctx
func WithActor(ctx context.Context, actor ActorRef) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext returns the actor stored with WithActor. Without one it
// falls back to the user set with WithContext.
func ActorFromContext(ctx context.Context) (ActorRef, bool) {
	if actor, ok := ctx.Value(actorCtxKey).(ActorRef); ok && actor.ID != "" {
		return actor, true
	}
	if user, ok := FromContext(ctx); ok {
		return ActorRef{ID: user.ID.String(), Type: string(user.UserType)}, true
	}
	return ActorRef{}, false
}

// CanFromContext checks action against the user stored in ctx
func CanFromContext(ctx context.Context, action Action) bool {
	user, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return user.Can(action)
}

func resolveActor(ctx context.Context, actor ActorRef) ActorRef {
	if actor.ID != "" {
		return actor
	}
	if fromCtx, ok := ActorFromContext(ctx); ok {
		return fromCtx
	}
	return actor
}
