package auth

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// MaxLoginAttempts is the maximun number of failed attempts an identity gets
// within CoolDownPeriod
var MaxLoginAttempts = 5

// CoolDownPeriod is the window in which failed attempts are counted
var CoolDownPeriod = 24 * time.Hour

// CredentialVerifier checks email and password logins and handles password
// changes for local identities.
type CredentialVerifier struct {
	repo         RepositoryManager
	sessions     *SessionTracker
	hasher       PasswordHasher
	passwordRule PasswordRule
	notifier     Notifier
	activity     ActivitySink
	logger       Logger
	metrics      Metrics
	clock        Clock
	maxAttempts  int
	coolDown     time.Duration
}

type CredentialVerifierOption func(*CredentialVerifier)

func WithVerifierHasher(h PasswordHasher) CredentialVerifierOption {
	return func(c *CredentialVerifier) {
		c.hasher = normalizeHasher(h)
	}
}

func WithVerifierPasswordRule(rule PasswordRule) CredentialVerifierOption {
	return func(c *CredentialVerifier) {
		if rule != nil {
			c.passwordRule = rule
		}
	}
}

func WithVerifierNotifier(n Notifier) CredentialVerifierOption {
	return func(c *CredentialVerifier) {
		c.notifier = normalizeNotifier(n)
	}
}

func WithVerifierActivitySink(s ActivitySink) CredentialVerifierOption {
	return func(c *CredentialVerifier) {
		c.activity = normalizeActivitySink(s)
	}
}

func WithVerifierLogger(l Logger) CredentialVerifierOption {
	return func(c *CredentialVerifier) {
		c.logger = normalizeLogger(l)
	}
}

func WithVerifierMetrics(m Metrics) CredentialVerifierOption {
	return func(c *CredentialVerifier) {
		c.metrics = normalizeMetrics(m)
	}
}

func WithVerifierClock(clock Clock) CredentialVerifierOption {
	return func(c *CredentialVerifier) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLoginThrottle overrides MaxLoginAttempts and CoolDownPeriod
func WithLoginThrottle(maxAttempts int, coolDown time.Duration) CredentialVerifierOption {
	return func(c *CredentialVerifier) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if coolDown > 0 {
			c.coolDown = coolDown
		}
	}
}

func NewCredentialVerifier(repo RepositoryManager, sessions *SessionTracker, opts ...CredentialVerifierOption) *CredentialVerifier {
	c := &CredentialVerifier{
		repo:         repo,
		sessions:     sessions,
		hasher:       DefaultHasher,
		passwordRule: ValidatePassword,
		notifier:     noopNotifier{},
		activity:     noopActivitySink{},
		logger:       defLogger{},
		metrics:      noopMetrics{},
		clock:        defaultClock,
		maxAttempts:  MaxLoginAttempts,
		coolDown:     CoolDownPeriod,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Authenticate returns the identity owning email when password matches. A
// missing, inactive or social only identity and a wrong password all
// produce ErrInvalidCredentials.
func (c *CredentialVerifier) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	user, err := c.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			c.loginFailed(ctx, nil, email, "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, StorageError(err, "failed to retrieve user during verification")
	}

	if !user.IsActive {
		c.loginFailed(ctx, user, email, "inactive")
		return nil, ErrInvalidCredentials
	}

	if !user.HasUsablePassword() {
		c.loginFailed(ctx, user, email, "no_password")
		return nil, ErrInvalidCredentials
	}

	now := c.clock()
	if user.LoginAttemptAt != nil && now.Sub(*user.LoginAttemptAt) > c.coolDown {
		user.LoginAttempts = 0
	}

	// cool off while too many attempts happened in the window
	if user.LoginAttempts >= c.maxAttempts {
		c.loginFailed(ctx, user, email, "throttled")
		return nil, ErrTooManyLoginAttempts
	}

	if err := c.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := c.repo.Users().TrackAttemptedLogin(ctx, user, now.Add(-c.coolDown)); err2 != nil {
			return nil, StorageError(err2, "failed to track login attempt")
		}
		c.loginFailed(ctx, user, email, "mismatch")
		return nil, ErrInvalidCredentials
	}

	if err := c.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		c.logger.Error("failed to track successful login for %s: %v", user.ID, err)
	}

	c.metrics.LoginSucceeded()
	emitActivity(ctx, c.activity, c.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		UserID:     user.ID.String(),
		OccurredAt: now,
	})

	return user, nil
}

// ChangePassword replaces the password of a local identity and ends all of
// its sessions in the same transaction.
func (c *CredentialVerifier) ChangePassword(ctx context.Context, user *User, oldPassword, newPassword string) error {
	if user == nil {
		return ErrIdentityNotFound
	}

	if user.AuthProvider != ProviderEmail {
		return ErrUnsupportedForProvider
	}

	if err := c.hasher.ComparePasswordAndHash(oldPassword, user.PasswordHash); err != nil {
		return ErrWrongOldPassword
	}

	if err := c.passwordRule(newPassword); err != nil {
		c.logger.Debug("rejected new password for %s: %v", user.ID, err)
		return ErrInvalidPassword
	}

	hash, err := c.hasher.HashPassword(newPassword)
	if err != nil {
		return StorageError(err, "failed to hash password")
	}

	closed := 0
	err = c.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := c.repo.Users().SetPasswordTx(ctx, tx, user.ID, hash); err != nil {
			if IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return StorageError(err, "failed to update password")
		}

		var err error
		closed, err = c.sessions.CloseAllTx(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return passThrough(err, "password change transaction failed")
	}
	c.sessions.ObserveClosed("password_change", closed)

	user.PasswordHash = hash
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil

	dispatch(ctx, c.notifier, c.logger, NotifyPasswordChanged, user, map[string]any{
		"sessions_closed": closed,
	})
	emitActivity(ctx, c.activity, c.logger, ActivityEvent{
		EventType:  ActivityEventPasswordChanged,
		UserID:     user.ID.String(),
		Metadata:   map[string]any{"sessions_closed": closed},
		OccurredAt: c.clock(),
	})

	return nil
}

func (c *CredentialVerifier) loginFailed(ctx context.Context, user *User, email, reason string) {
	c.metrics.LoginFailed(reason)

	event := ActivityEvent{
		EventType:  ActivityEventLoginFailure,
		Metadata:   map[string]any{"reason": reason, "email": email},
		OccurredAt: c.clock(),
	}
	if user != nil {
		event.UserID = user.ID.String()
	}
	emitActivity(ctx, c.activity, c.logger, event)
}
