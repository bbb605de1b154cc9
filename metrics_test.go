package auth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestPrometheusMetricsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	metrics := auth.NewPrometheusMetrics("test", prometheus.NewRegistry())
	tokens := auth.NewTokenManager(f.repo, auth.WithTokenClock(f.clock.Now), auth.WithTokenMetrics(metrics))
	sessions := auth.NewSessionTracker(f.repo,
		auth.WithSessionClock(f.clock.Now),
		auth.WithSessionMetrics(metrics),
		auth.WithSessionCap(1),
	)
	verifier := auth.NewCredentialVerifier(f.repo, sessions,
		auth.WithVerifierHasher(fastHasher),
		auth.WithVerifierClock(f.clock.Now),
		auth.WithVerifierMetrics(metrics),
	)

	issued, err := tokens.Issue(ctx, user, auth.TokenPasswordReset)
	require.NoError(t, err)
	_, err = tokens.Consume(ctx, issued.Value, auth.TokenPasswordReset, nil)
	require.NoError(t, err)
	_, err = tokens.Consume(ctx, issued.Value, auth.TokenPasswordReset, nil)
	require.ErrorIs(t, err, auth.ErrTokenAlreadyUsed)
	_, err = tokens.Validate(ctx, "missing", auth.TokenPasswordReset)
	require.ErrorIs(t, err, auth.ErrTokenNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokensIssued.WithLabelValues("password_reset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokensConsumed.WithLabelValues("password_reset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokensRejected.WithLabelValues("password_reset", "used")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokensRejected.WithLabelValues("password_reset", "not_found")))

	_, err = verifier.Authenticate(ctx, user.Email, testPassword)
	require.NoError(t, err)
	_, err = verifier.Authenticate(ctx, user.Email, "nope12345")
	require.Error(t, err)
	_, err = verifier.Authenticate(ctx, "ghost@example.com", "nope12345")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Logins.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Logins.WithLabelValues("mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Logins.WithLabelValues("unknown_email")))

	for i := 0; i < 3; i++ {
		_, err := sessions.Open(ctx, user, fmt.Sprintf("key-%d", i), "", "")
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SessionsOpen))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SessionsEnded.WithLabelValues("cap")))
}

func TestMetricsCountCommittedWritesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	metrics := auth.NewPrometheusMetrics("test", prometheus.NewRegistry())
	tokens := auth.NewTokenManager(f.repo, auth.WithTokenClock(f.clock.Now), auth.WithTokenMetrics(metrics))
	sessions := auth.NewSessionTracker(f.repo, auth.WithSessionClock(f.clock.Now), auth.WithSessionMetrics(metrics))

	register := auth.NewRegisterUserHandler(f.repo, tokens, f.flowOptions()...)
	var resp *auth.RegisterUserResponse
	msg := registerMessage("client@example.com")
	msg.OnResponse = func(r *auth.RegisterUserResponse) { resp = r }
	require.NoError(t, register.Execute(ctx, msg))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokensIssued.WithLabelValues("email_verification")))

	err := register.Execute(ctx, registerMessage("client@example.com"))
	require.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokensIssued.WithLabelValues("email_verification")))

	user := resp.User
	for _, key := range []string{"laptop", "phone"} {
		_, err := sessions.Open(ctx, user, key, "", "")
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	failing := auth.NewAccountLifecycle(f.repo, sessions,
		auth.WithLifecycleClock(f.clock.Now),
		auth.WithLifecycleHook(func(context.Context, bun.IDB, auth.TransitionContext) error {
			return errors.New("audit store offline")
		}),
	)
	_, err = failing.Deactivate(ctx, auth.ActorRef{}, user)
	require.Error(t, err)
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.SessionsEnded))

	lifecycle := auth.NewAccountLifecycle(f.repo, sessions, auth.WithLifecycleClock(f.clock.Now))
	_, err = lifecycle.Deactivate(ctx, auth.ActorRef{}, user)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SessionsEnded.WithLabelValues("deactivated")))
}

func TestPrometheusMetricsSkipsEmptySweeps(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := auth.NewPrometheusMetrics("", reg)

	metrics.SweepRemoved("tokens", 0)
	metrics.SweepRemoved("sessions", 4)
	metrics.SessionsClosed("logout", 0)

	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Swept.WithLabelValues("sessions")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.Swept))
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.SessionsEnded))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		assert.Contains(t, mf.GetName(), "accounts_")
	}
}
