package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LinkDeactivator turns off every social link of an identity. The social
// link repository satisfies it.
type LinkDeactivator interface {
	DeactivateAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
}

// TransitionHook runs inside the lifecycle transaction after the identity
// row changed. An error rolls the whole transition back.
type TransitionHook func(ctx context.Context, tx bun.IDB, tc TransitionContext) error

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor    ActorRef
	User     *User
	Active   bool
	Reason   string
	Metadata map[string]any
}

// TransitionOption customizes a single transition
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	reason   string
	metadata map[string]any
	notify   bool
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata == nil {
			opts.metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata[k] = v
		}
	}
}

// WithoutNotification skips the account_deactivated notification
func WithoutNotification() TransitionOption {
	return func(opts *transitionOptions) {
		opts.notify = false
	}
}

// AccountLifecycle activates and deactivates identities. Deactivation closes
// every session and deactivates every social link in the same transaction.
type AccountLifecycle struct {
	repo     RepositoryManager
	sessions *SessionTracker
	links    LinkDeactivator
	hooks    []TransitionHook
	notifier Notifier
	activity ActivitySink
	logger   Logger
	clock    Clock
}

type LifecycleOption func(*AccountLifecycle)

// WithLifecycleLinks cascades deactivation to social links
func WithLifecycleLinks(links LinkDeactivator) LifecycleOption {
	return func(l *AccountLifecycle) {
		l.links = links
	}
}

// WithLifecycleHook adds a hook run inside every transition
func WithLifecycleHook(h TransitionHook) LifecycleOption {
	return func(l *AccountLifecycle) {
		if h != nil {
			l.hooks = append(l.hooks, h)
		}
	}
}

func WithLifecycleNotifier(n Notifier) LifecycleOption {
	return func(l *AccountLifecycle) {
		l.notifier = normalizeNotifier(n)
	}
}

func WithLifecycleActivitySink(s ActivitySink) LifecycleOption {
	return func(l *AccountLifecycle) {
		l.activity = normalizeActivitySink(s)
	}
}

func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(l *AccountLifecycle) {
		l.logger = normalizeLogger(logger)
	}
}

func WithLifecycleClock(c Clock) LifecycleOption {
	return func(l *AccountLifecycle) {
		if c != nil {
			l.clock = c
		}
	}
}

func NewAccountLifecycle(repo RepositoryManager, sessions *SessionTracker, opts ...LifecycleOption) *AccountLifecycle {
	l := &AccountLifecycle{
		repo:     repo,
		sessions: sessions,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		clock:    defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Deactivate soft deletes user. Deactivating an inactive identity is a no-op.
// An empty actor is taken from ctx, see WithActor.
func (l *AccountLifecycle) Deactivate(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}
	if !user.IsActive {
		return user, nil
	}

	actor = resolveActor(ctx, actor)
	options := transitionOptions{notify: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	tc := TransitionContext{
		Actor:    actor,
		User:     user,
		Active:   false,
		Reason:   options.reason,
		Metadata: options.metadata,
	}

	var sessionsClosed, linksClosed, tokensRevoked int
	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := l.repo.Users().SetActiveTx(ctx, tx, user.ID, false); err != nil {
			if IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return StorageError(err, "failed to deactivate user")
		}

		var err error
		if sessionsClosed, err = l.sessions.CloseAllTx(ctx, tx, user.ID); err != nil {
			return err
		}

		if tokensRevoked, err = l.repo.Tokens().DeleteUnusedForUserTx(ctx, tx, user.ID); err != nil {
			return StorageError(err, "failed to revoke unused tokens")
		}

		if l.links != nil {
			if linksClosed, err = l.links.DeactivateAllForUserTx(ctx, tx, user.ID); err != nil {
				return StorageError(err, "failed to deactivate social links")
			}
		}

		return l.runHooks(ctx, tx, tc)
	})
	if err != nil {
		return nil, passThrough(err, "deactivation transaction failed")
	}

	now := l.clock()
	user.IsActive = false
	user.DeactivatedAt = &now

	l.sessions.ObserveClosed("deactivated", sessionsClosed)
	l.logger.Info("deactivated user %s: %d sessions, %d links, %d tokens", user.ID, sessionsClosed, linksClosed, tokensRevoked)

	if options.notify {
		dispatch(ctx, l.notifier, l.logger, NotifyAccountDeactivated, user, map[string]any{
			"reason": options.reason,
		})
	}
	l.emit(ctx, ActivityEventUserDeactivated, tc, map[string]any{
		"sessions_closed": sessionsClosed,
		"links_closed":    linksClosed,
		"tokens_revoked":  tokensRevoked,
	})

	return user, nil
}

// Reactivate restores a deactivated identity. Sessions and social links stay
// closed, the identity signs in and links again.
func (l *AccountLifecycle) Reactivate(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}
	if user.IsActive {
		return nil, ErrAccountAlreadyActive
	}

	actor = resolveActor(ctx, actor)
	options := transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	tc := TransitionContext{
		Actor:    actor,
		User:     user,
		Active:   true,
		Reason:   options.reason,
		Metadata: options.metadata,
	}

	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := l.repo.Users().SetActiveTx(ctx, tx, user.ID, true); err != nil {
			if IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return StorageError(err, "failed to reactivate user")
		}
		return l.runHooks(ctx, tx, tc)
	})
	if err != nil {
		return nil, passThrough(err, "reactivation transaction failed")
	}

	user.IsActive = true
	user.DeactivatedAt = nil

	l.emit(ctx, ActivityEventUserReactivated, tc, nil)
	return user, nil
}

func (l *AccountLifecycle) runHooks(ctx context.Context, tx bun.IDB, tc TransitionContext) error {
	for _, hook := range l.hooks {
		if err := hook(ctx, tx, tc); err != nil {
			return err
		}
	}
	return nil
}

func (l *AccountLifecycle) emit(ctx context.Context, eventType ActivityEventType, tc TransitionContext, extra map[string]any) {
	metadata := map[string]any{}
	for k, v := range tc.Metadata {
		metadata[k] = v
	}
	for k, v := range extra {
		metadata[k] = v
	}
	if tc.Reason != "" {
		metadata["reason"] = tc.Reason
	}

	emitActivity(ctx, l.activity, l.logger, ActivityEvent{
		EventType:  eventType,
		Actor:      tc.Actor,
		UserID:     tc.User.ID.String(),
		Metadata:   metadata,
		OccurredAt: l.clock(),
	})
}
