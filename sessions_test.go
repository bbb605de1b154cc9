package auth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionOpenEnforcesCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	for i := 1; i <= 6; i++ {
		_, err := f.sessions.Open(ctx, user, fmt.Sprintf("key-%d", i), "10.0.0.1", "test-agent")
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	active, err := f.sessions.ListActive(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, auth.DefaultSessionCap)
	assert.Equal(t, "key-6", active[0].SessionKey)
	assert.Equal(t, "key-2", active[len(active)-1].SessionKey)

	oldest, err := f.repo.Sessions().GetByKey(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, oldest.IsActive)
	require.NotNil(t, oldest.EndedAt)
}

func TestSessionCapEvictsOldestWithinOneInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	for i := 1; i <= 6; i++ {
		_, err := f.sessions.Open(ctx, user, fmt.Sprintf("s%d", i), "", "")
		require.NoError(t, err)
	}

	active, err := f.sessions.ListActive(ctx, user.ID)
	require.NoError(t, err)

	keys := make([]string, 0, len(active))
	for _, sess := range active {
		keys = append(keys, sess.SessionKey)
	}
	assert.Equal(t, []string{"s6", "s5", "s4", "s3", "s2"}, keys)

	oldest, err := f.repo.Sessions().GetByKey(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, oldest.IsActive)
}

func TestSessionCapIsPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice@example.com")
	bob := f.createUser(t, "bob@example.com")

	tracker := auth.NewSessionTracker(f.repo, auth.WithSessionClock(f.clock.Now), auth.WithSessionCap(2))
	assert.Equal(t, 2, tracker.Cap())

	for i := 0; i < 3; i++ {
		_, err := tracker.Open(ctx, alice, fmt.Sprintf("alice-%d", i), "", "")
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	_, err := tracker.Open(ctx, bob, "bob-0", "", "")
	require.NoError(t, err)

	active, err := tracker.ListActive(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	active, err = tracker.ListActive(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSessionOpenValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	_, err := f.sessions.Open(ctx, user, "  ", "", "")
	assert.ErrorIs(t, err, auth.ErrSessionKeyRequired)

	_, err = f.sessions.Open(ctx, nil, "key", "", "")
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
}

func TestSessionCloseAndTouch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	opened, err := f.sessions.Open(ctx, user, "key-1", "10.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.True(t, opened.IsActive)

	f.clock.Advance(time.Minute)
	touched, err := f.sessions.Touch(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, touched)

	record, err := f.repo.Sessions().GetByKey(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, f.clock.Now().Equal(record.LastActivity))

	closed, err := f.sessions.Close(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = f.sessions.Close(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, closed)

	touched, err = f.sessions.Touch(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, touched)
}

func TestSessionCloseAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	for i := 0; i < 3; i++ {
		_, err := f.sessions.Open(ctx, user, fmt.Sprintf("key-%d", i), "", "")
		require.NoError(t, err)
	}

	n, err := f.sessions.CloseAll(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	active, err := f.sessions.ListActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	n, err = f.sessions.CloseAll(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSessionSweepStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	_, err := f.sessions.Open(ctx, user, "old", "", "")
	require.NoError(t, err)
	_, err = f.sessions.Close(ctx, "old")
	require.NoError(t, err)

	f.clock.Advance(10 * 24 * time.Hour)
	_, err = f.sessions.Open(ctx, user, "recent", "", "")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	n, err := f.sessions.SweepStale(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.repo.Sessions().GetByKey(ctx, "old")
	assert.True(t, auth.IsRecordNotFound(err))

	_, err = f.repo.Sessions().GetByKey(ctx, "recent")
	assert.NoError(t, err)
}
