package auth

import (
	"context"
	"sort"
)

// NotificationKind names a message the dispatcher knows how to deliver
type NotificationKind string

const (
	NotifyEmailVerification  NotificationKind = "email_verification"
	NotifyPasswordReset      NotificationKind = "password_reset"
	NotifyPasswordChanged    NotificationKind = "password_changed"
	NotifyWelcome            NotificationKind = "welcome"
	NotifyAccountDeactivated NotificationKind = "account_deactivated"
)

// Notifier delivers user facing notifications. Calls happen after the
// triggering transaction committed and a failure never rolls it back.
type Notifier interface {
	Send(ctx context.Context, kind NotificationKind, user *User, data map[string]any) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, kind NotificationKind, user *User, data map[string]any) error

func (f NotifierFunc) Send(ctx context.Context, kind NotificationKind, user *User, data map[string]any) error {
	if f == nil {
		return nil
	}
	return f(ctx, kind, user, data)
}

// LogNotifier writes notifications to a Logger. Useful in development.
type LogNotifier struct {
	logger Logger
}

func NewLogNotifier(logger Logger) *LogNotifier {
	return &LogNotifier{logger: normalizeLogger(logger)}
}

func (n *LogNotifier) Send(_ context.Context, kind NotificationKind, user *User, data map[string]any) error {
	email := ""
	if user != nil {
		email = user.Email
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	n.logger.Info("notification %s to %s (fields: %v)", kind, email, keys)
	return nil
}

// MultiNotifier fans out to every notifier and returns the first error
type MultiNotifier []Notifier

func (m MultiNotifier) Send(ctx context.Context, kind NotificationKind, user *User, data map[string]any) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, kind, user, data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, NotificationKind, *User, map[string]any) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// dispatch sends a notification and only logs failures
func dispatch(ctx context.Context, n Notifier, logger Logger, kind NotificationKind, user *User, data map[string]any) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, kind, user, data); err != nil && logger != nil {
		email := ""
		if user != nil {
			email = user.Email
		}
		logger.Error("failed to send %s notification to %s: %v", kind, email, err)
	}
}
