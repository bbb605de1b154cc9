package auth_test

import (
	"context"
	"testing"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserContext(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.FromContext(ctx)
	assert.False(t, ok)

	user := &auth.User{ID: uuid.New(), UserType: auth.UserTypeStaff}
	ctx = auth.WithContext(ctx, user)

	got, ok := auth.FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, user, got)

	_, ok = auth.FromContext(auth.WithContext(context.Background(), nil))
	assert.False(t, ok)
}

func TestActorFromContext(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.ActorFromContext(ctx)
	assert.False(t, ok)

	user := &auth.User{ID: uuid.New(), UserType: auth.UserTypeAdmin}
	ctx = auth.WithContext(ctx, user)

	actor, ok := auth.ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, auth.ActorRef{ID: user.ID.String(), Type: "admin"}, actor)

	ctx = auth.WithActor(ctx, auth.ActorRef{ID: "scheduler", Type: "system"})
	actor, ok = auth.ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "scheduler", actor.ID)
}
