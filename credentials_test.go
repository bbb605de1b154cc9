package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verifier := f.verifier()

	f.createUser(t, "client@example.com")
	f.createUser(t, "inactive@example.com", func(u *auth.User) { u.IsActive = false })
	f.createUser(t, "social@example.com", func(u *auth.User) {
		u.AuthProvider = auth.ProviderGoogle
		u.PasswordHash = auth.UnusablePassword()
	})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "client@example.com", password: testPassword},
		{name: "email is normalized", email: "  Client@Example.COM ", password: testPassword},
		{name: "wrong password", email: "client@example.com", password: "nope12345", wantErr: auth.ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: testPassword, wantErr: auth.ErrInvalidCredentials},
		{name: "inactive", email: "inactive@example.com", password: testPassword, wantErr: auth.ErrInvalidCredentials},
		{name: "social only", email: "social@example.com", password: testPassword, wantErr: auth.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := verifier.Authenticate(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "client@example.com", user.Email)
		})
	}
}

func TestAuthenticateTracksLogins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verifier := f.verifier()
	user := f.createUser(t, "client@example.com")

	_, err := verifier.Authenticate(ctx, user.Email, "nope12345")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	stored := f.reload(t, user)
	assert.Equal(t, 1, stored.LoginAttempts)
	require.NotNil(t, stored.LoginAttemptAt)

	_, err = verifier.Authenticate(ctx, user.Email, testPassword)
	require.NoError(t, err)

	stored = f.reload(t, user)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Nil(t, stored.LoginAttemptAt)
	require.NotNil(t, stored.LastLoginAt)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLoginSuccess,
	}, f.sink.types())
}

func TestAuthenticateThrottle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verifier := f.verifier(auth.WithLoginThrottle(3, time.Hour))
	user := f.createUser(t, "client@example.com")

	for i := 0; i < 3; i++ {
		_, err := verifier.Authenticate(ctx, user.Email, "nope12345")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		f.clock.Advance(time.Second)
	}

	// the right password is refused while cooling down
	_, err := verifier.Authenticate(ctx, user.Email, testPassword)
	assert.ErrorIs(t, err, auth.ErrTooManyLoginAttempts)

	f.clock.Advance(time.Hour)
	_, err = verifier.Authenticate(ctx, user.Email, testPassword)
	require.NoError(t, err)
}

func TestAuthenticateThrottleWindowRestartsCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verifier := f.verifier(auth.WithLoginThrottle(2, time.Hour))
	user := f.createUser(t, "client@example.com")

	_, err := verifier.Authenticate(ctx, user.Email, "nope12345")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	f.clock.Advance(2 * time.Hour)
	_, err = verifier.Authenticate(ctx, user.Email, "nope12345")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	assert.Equal(t, 1, f.reload(t, user).LoginAttempts)
}

func TestTrackAttemptedLoginIncrementsStoredCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	first := f.reload(t, user)
	second := f.reload(t, user)
	windowStart := f.clock.Now().Add(-time.Hour)

	require.NoError(t, f.repo.Users().TrackAttemptedLogin(ctx, first, windowStart))
	require.NoError(t, f.repo.Users().TrackAttemptedLogin(ctx, second, windowStart))

	assert.Equal(t, 1, first.LoginAttempts)
	assert.Equal(t, 2, second.LoginAttempts)
	assert.Equal(t, 2, f.reload(t, user).LoginAttempts)

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.repo.Users().TrackAttemptedLogin(ctx, second, f.clock.Now().Add(-time.Hour)))
	assert.Equal(t, 1, second.LoginAttempts)
	assert.Equal(t, 1, f.reload(t, user).LoginAttempts)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verifier := f.verifier()
	user := f.createUser(t, "client@example.com")

	for _, key := range []string{"a", "b"} {
		_, err := f.sessions.Open(ctx, user, key, "", "")
		require.NoError(t, err)
	}

	err := verifier.ChangePassword(ctx, user, testPassword, "fresh-start-1")
	require.NoError(t, err)

	active, err := f.sessions.ListActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = verifier.Authenticate(ctx, user.Email, testPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = verifier.Authenticate(ctx, user.Email, "fresh-start-1")
	assert.NoError(t, err)

	sent := f.notifier.last()
	assert.Equal(t, auth.NotifyPasswordChanged, sent.Kind)
	assert.Equal(t, 2, sent.Data["sessions_closed"])
}

func TestChangePasswordFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verifier := f.verifier()
	local := f.createUser(t, "client@example.com")
	social := f.createUser(t, "social@example.com", func(u *auth.User) {
		u.AuthProvider = auth.ProviderFacebook
		u.PasswordHash = auth.UnusablePassword()
	})

	err := verifier.ChangePassword(ctx, local, "wrong-pass-1", "fresh-start-1")
	assert.ErrorIs(t, err, auth.ErrWrongOldPassword)

	err = verifier.ChangePassword(ctx, local, testPassword, "12345678")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	err = verifier.ChangePassword(ctx, social, testPassword, "fresh-start-1")
	assert.ErrorIs(t, err, auth.ErrUnsupportedForProvider)

	err = verifier.ChangePassword(ctx, nil, testPassword, "fresh-start-1")
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)

	assert.Empty(t, f.notifier.kinds())
}

func TestChangePasswordNotificationFailureKeepsChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.err = assert.AnError
	verifier := f.verifier()
	user := f.createUser(t, "client@example.com")

	require.NoError(t, verifier.ChangePassword(ctx, user, testPassword, "fresh-start-1"))

	stored := f.reload(t, user)
	assert.NoError(t, fastHasher.ComparePasswordAndHash("fresh-start-1", stored.PasswordHash))
}
