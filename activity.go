package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserRegistered     ActivityEventType = "user.registered"
	ActivityEventUserDeactivated    ActivityEventType = "user.deactivated"
	ActivityEventUserReactivated    ActivityEventType = "user.reactivated"
	ActivityEventLoginSuccess       ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure       ActivityEventType = "auth.login.failure"
	ActivityEventEmailVerified      ActivityEventType = "auth.email.verified"
	ActivityEventPasswordChanged    ActivityEventType = "auth.password.changed"
	ActivityEventPasswordReset      ActivityEventType = "auth.password.reset"
	ActivityEventSocialLogin        ActivityEventType = "auth.social.login"
	ActivityEventSocialRegistered   ActivityEventType = "auth.social.registered"
	ActivityEventSocialLinked       ActivityEventType = "auth.social.linked"
	ActivityEventSocialUnlinked     ActivityEventType = "auth.social.unlinked"
	ActivityEventSessionsTerminated ActivityEventType = "auth.sessions.terminated"
)

// ActorRef identifies who triggered an action. An empty ref means the
// identity acted on itself.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// emitActivity records event and only logs failures
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink failed for %s: %v", event.EventType, err)
	}
}
