package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/uptrace/bun"
)

const (
	// DefaultVerificationTTL is how long an email verification token lives
	DefaultVerificationTTL = 24 * time.Hour
	// DefaultPasswordResetTTL is how long a password reset token lives
	DefaultPasswordResetTTL = time.Hour

	tokenEntropyBytes = 32
)

// IssuedToken carries the opaque value. It is only available at issue time,
// the store keeps a hash.
type IssuedToken struct {
	Token *Token
	Value string
}

// ConsumeEffect runs inside the consuming transaction. An error rolls back
// both the effect and the token state.
type ConsumeEffect func(ctx context.Context, tx bun.IDB, user *User) error

// IssueOption customizes a single Issue call
type IssueOption func(*issueConfig)

type issueConfig struct {
	ip  string
	ttl time.Duration
}

// WithRequesterIP records the IP that asked for the token
func WithRequesterIP(ip string) IssueOption {
	return func(c *issueConfig) {
		c.ip = ip
	}
}

// WithTTL overrides the configured lifetime for one token
func WithTTL(ttl time.Duration) IssueOption {
	return func(c *issueConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// TokenManager issues, validates and consumes single use tokens
type TokenManager struct {
	repo    RepositoryManager
	ttls    map[TokenKind]time.Duration
	clock   Clock
	logger  Logger
	metrics Metrics
}

type TokenManagerOption func(*TokenManager)

// WithTokenTTL sets the default lifetime for kind
func WithTokenTTL(kind TokenKind, ttl time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if ttl > 0 {
			m.ttls[kind] = ttl
		}
	}
}

func WithTokenClock(c Clock) TokenManagerOption {
	return func(m *TokenManager) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithTokenLogger(l Logger) TokenManagerOption {
	return func(m *TokenManager) {
		m.logger = normalizeLogger(l)
	}
}

func WithTokenMetrics(metrics Metrics) TokenManagerOption {
	return func(m *TokenManager) {
		m.metrics = normalizeMetrics(metrics)
	}
}

func NewTokenManager(repo RepositoryManager, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		repo: repo,
		ttls: map[TokenKind]time.Duration{
			TokenEmailVerification: DefaultVerificationTTL,
			TokenPasswordReset:     DefaultPasswordResetTTL,
		},
		clock:   defaultClock,
		logger:  defLogger{},
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// TTL returns the default lifetime for kind
func (m *TokenManager) TTL(kind TokenKind) time.Duration {
	return m.ttls[kind]
}

// Issue replaces any unused token of kind for user with a fresh one
func (m *TokenManager) Issue(ctx context.Context, user *User, kind TokenKind, opts ...IssueOption) (*IssuedToken, error) {
	var issued *IssuedToken
	err := m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		issued, err = m.IssueTx(ctx, tx, user, kind, opts...)
		return err
	})
	if err != nil {
		return nil, passThrough(err, "failed to issue token")
	}
	m.ObserveIssued(issued)
	return issued, nil
}

// IssueTx is Issue inside a caller owned transaction. The delete of prior
// unused tokens and the insert share tx, so two unused tokens of one kind
// never coexist. Callers report the token with ObserveIssued once tx commits.
func (m *TokenManager) IssueTx(ctx context.Context, tx bun.IDB, user *User, kind TokenKind, opts ...IssueOption) (*IssuedToken, error) {
	if !kind.Valid() {
		return nil, ErrUnknownTokenKind
	}
	if user == nil {
		return nil, ErrIdentityNotFound
	}

	cfg := issueConfig{ttl: m.ttls[kind]}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	removed, err := m.repo.Tokens().DeleteUnusedTx(ctx, tx, user.ID, kind)
	if err != nil {
		return nil, StorageError(err, "failed to invalidate previous tokens")
	}

	value, err := generateTokenValue()
	if err != nil {
		return nil, StorageError(err, "failed to generate token")
	}

	now := m.clock()
	record := &Token{
		UserID:    user.ID,
		Kind:      kind,
		TokenHash: HashToken(value),
		IPAddress: cfg.ip,
		ExpiresAt: now.Add(cfg.ttl),
		CreatedAt: &now,
	}

	record, err = m.repo.Tokens().CreateTx(ctx, tx, record)
	if err != nil {
		return nil, StorageError(err, "failed to store token")
	}

	m.logger.Debug("issued %s token for user %s, replaced %d", kind, user.ID, removed)

	return &IssuedToken{Token: record, Value: value}, nil
}

// ObserveIssued counts a token issued through IssueTx
func (m *TokenManager) ObserveIssued(issued *IssuedToken) {
	if issued == nil || issued.Token == nil {
		return
	}
	m.metrics.TokenIssued(issued.Token.Kind)
}

// Validate returns the owner of an unused, unexpired token without
// changing any state.
func (m *TokenManager) Validate(ctx context.Context, value string, kind TokenKind) (*User, error) {
	if !kind.Valid() {
		return nil, ErrUnknownTokenKind
	}

	record, err := m.repo.Tokens().GetByHash(ctx, kind, HashToken(value))
	if err != nil {
		return nil, m.lookupError(kind, err)
	}

	if err := m.check(kind, record); err != nil {
		return nil, err
	}

	user, err := m.repo.Users().GetByID(ctx, record.UserID)
	if err != nil {
		return nil, m.lookupError(kind, err)
	}

	return user, nil
}

// Consume marks the token used and runs effect in the same transaction.
// Only one concurrent caller can consume a given token.
func (m *TokenManager) Consume(ctx context.Context, value string, kind TokenKind, effect ConsumeEffect) (*User, error) {
	if !kind.Valid() {
		return nil, ErrUnknownTokenKind
	}

	var user *User
	err := m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := m.repo.Tokens().GetByHashTx(ctx, tx, kind, HashToken(value))
		if err != nil {
			return m.lookupError(kind, err)
		}

		if err := m.check(kind, record); err != nil {
			return err
		}

		user, err = m.repo.Users().GetByIDTx(ctx, tx, record.UserID)
		if err != nil {
			return m.lookupError(kind, err)
		}

		ok, err := m.repo.Tokens().MarkUsedTx(ctx, tx, record.ID, m.clock())
		if err != nil {
			return StorageError(err, "failed to mark token as used")
		}
		if !ok {
			m.metrics.TokenRejected(kind, "used")
			return ErrTokenAlreadyUsed
		}

		if effect != nil {
			if err := effect(ctx, tx, user); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to consume token")
	}

	m.metrics.TokenConsumed(kind)
	return user, nil
}

// SweepExpired deletes tokens of both kinds at or past their expiry
func (m *TokenManager) SweepExpired(ctx context.Context) (int, error) {
	n, err := m.repo.Tokens().DeleteExpired(ctx, m.clock())
	if err != nil {
		return 0, StorageError(err, "failed to sweep expired tokens")
	}
	if n > 0 {
		m.logger.Info("swept %d expired tokens", n)
	}
	m.metrics.SweepRemoved("tokens", n)
	return n, nil
}

func (m *TokenManager) check(kind TokenKind, record *Token) error {
	if record.IsUsed {
		m.metrics.TokenRejected(kind, "used")
		return ErrTokenAlreadyUsed
	}
	if record.IsExpired(m.clock()) {
		m.metrics.TokenRejected(kind, "expired")
		return ErrTokenExpired
	}
	return nil
}

func (m *TokenManager) lookupError(kind TokenKind, err error) error {
	if IsRecordNotFound(err) {
		m.metrics.TokenRejected(kind, "not_found")
		return ErrTokenNotFound
	}
	return StorageError(err, "failed to look up token")
}

// HashToken returns the stored form of an opaque token value
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func generateTokenValue() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
