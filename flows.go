package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// handlerTimeout bounds every account flow handler
const handlerTimeout = time.Second * 10

// FlowOption configures the account flow command handlers
type FlowOption func(*flowConfig)

type flowConfig struct {
	notifier     Notifier
	activity     ActivitySink
	logger       Logger
	hasher       PasswordHasher
	passwordRule PasswordRule
	phoneRegion  string
	clock        Clock
}

func newFlowConfig(opts ...FlowOption) flowConfig {
	cfg := flowConfig{
		notifier:     noopNotifier{},
		activity:     noopActivitySink{},
		logger:       defLogger{},
		hasher:       DefaultHasher,
		passwordRule: ValidatePassword,
		phoneRegion:  DefaultPhoneRegion,
		clock:        defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func WithFlowNotifier(n Notifier) FlowOption {
	return func(c *flowConfig) {
		c.notifier = normalizeNotifier(n)
	}
}

func WithFlowActivitySink(s ActivitySink) FlowOption {
	return func(c *flowConfig) {
		c.activity = normalizeActivitySink(s)
	}
}

func WithFlowLogger(l Logger) FlowOption {
	return func(c *flowConfig) {
		c.logger = normalizeLogger(l)
	}
}

func WithFlowHasher(h PasswordHasher) FlowOption {
	return func(c *flowConfig) {
		c.hasher = normalizeHasher(h)
	}
}

func WithFlowPasswordRule(rule PasswordRule) FlowOption {
	return func(c *flowConfig) {
		if rule != nil {
			c.passwordRule = rule
		}
	}
}

// WithFlowPhoneRegion sets the region used to normalize phone numbers
func WithFlowPhoneRegion(region string) FlowOption {
	return func(c *flowConfig) {
		if region != "" {
			c.phoneRegion = region
		}
	}
}

func WithFlowClock(clock Clock) FlowOption {
	return func(c *flowConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func (c flowConfig) notify(ctx context.Context, kind NotificationKind, user *User, data map[string]any) {
	dispatch(ctx, c.notifier, c.logger, kind, user, data)
}

func (c flowConfig) record(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: c.clock(),
	}
	if user != nil {
		event.UserID = user.ID.String()
	}
	emitActivity(ctx, c.activity, c.logger, event)
}

func cancelled(ctx context.Context, operation string) error {
	return goerrors.Wrap(
		ctx.Err(),
		goerrors.CategoryOperation,
		"context cancelled during "+operation,
	)
}

func tokenData(issued *IssuedToken) map[string]any {
	return map[string]any{
		"token":      issued.Value,
		"expires_at": issued.Token.ExpiresAt,
	}
}
