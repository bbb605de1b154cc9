package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultSessionCap is the number of concurrently active sessions kept per
// identity
const DefaultSessionCap = 5

// SessionTracker records client sessions and enforces the per identity cap
type SessionTracker struct {
	repo    RepositoryManager
	limit   int
	clock   Clock
	logger  Logger
	metrics Metrics
}

type SessionTrackerOption func(*SessionTracker)

// WithSessionCap sets how many active sessions an identity may hold
func WithSessionCap(n int) SessionTrackerOption {
	return func(s *SessionTracker) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithSessionClock(c Clock) SessionTrackerOption {
	return func(s *SessionTracker) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithSessionLogger(l Logger) SessionTrackerOption {
	return func(s *SessionTracker) {
		s.logger = normalizeLogger(l)
	}
}

func WithSessionMetrics(m Metrics) SessionTrackerOption {
	return func(s *SessionTracker) {
		s.metrics = normalizeMetrics(m)
	}
}

func NewSessionTracker(repo RepositoryManager, opts ...SessionTrackerOption) *SessionTracker {
	s := &SessionTracker{
		repo:    repo,
		limit:   DefaultSessionCap,
		clock:   defaultClock,
		logger:  defLogger{},
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Cap returns the configured session cap
func (s *SessionTracker) Cap() int {
	return s.limit
}

// Open creates an active session and deactivates the oldest active sessions
// beyond the cap. The cap is computed in the same transaction as the insert.
func (s *SessionTracker) Open(ctx context.Context, user *User, key, ip, userAgent string) (*UserSession, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrSessionKeyRequired
	}

	var session *UserSession
	evicted := 0
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.clock()
		record := &UserSession{
			UserID:       user.ID,
			SessionKey:   key,
			IPAddress:    ip,
			UserAgent:    userAgent,
			IsActive:     true,
			CreatedAt:    now,
			LastActivity: now,
		}

		var err error
		session, err = s.repo.Sessions().CreateTx(ctx, tx, record)
		if err != nil {
			return StorageError(err, "failed to create session")
		}

		active, err := s.repo.Sessions().ListActiveTx(ctx, tx, user.ID)
		if err != nil {
			return StorageError(err, "failed to list active sessions")
		}

		if len(active) <= s.limit {
			return nil
		}

		excess := make([]uuid.UUID, 0, len(active)-s.limit)
		for _, sess := range active[s.limit:] {
			excess = append(excess, sess.ID)
		}

		evicted, err = s.repo.Sessions().DeactivateTx(ctx, tx, excess, now)
		if err != nil {
			return StorageError(err, "failed to deactivate excess sessions")
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to open session")
	}

	s.metrics.SessionsOpened(1)
	if evicted > 0 {
		s.logger.Debug("session cap reached for user %s, deactivated %d", user.ID, evicted)
		s.metrics.SessionsClosed("cap", evicted)
	}

	return session, nil
}

// Close ends a single session. It reports false when no active session
// matches key.
func (s *SessionTracker) Close(ctx context.Context, key string) (bool, error) {
	n, err := s.repo.Sessions().DeactivateByKeyTx(ctx, s.db(), key, s.clock())
	if err != nil {
		return false, StorageError(err, "failed to close session")
	}
	s.metrics.SessionsClosed("logout", n)
	return n > 0, nil
}

// CloseAll ends every active session of userID
func (s *SessionTracker) CloseAll(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		n, err = s.CloseAllTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, passThrough(err, "failed to close sessions")
	}
	s.ObserveClosed("all", n)
	return n, nil
}

// CloseAllTx is CloseAll inside a caller owned transaction. Callers report
// the closed count with ObserveClosed once tx commits.
func (s *SessionTracker) CloseAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	n, err := s.repo.Sessions().DeactivateAllTx(ctx, tx, userID, s.clock())
	if err != nil {
		return 0, StorageError(err, "failed to close sessions")
	}
	return n, nil
}

// ObserveClosed counts sessions closed by a committed transaction
func (s *SessionTracker) ObserveClosed(reason string, n int) {
	s.metrics.SessionsClosed(reason, n)
}

// Touch refreshes last_activity of an active session
func (s *SessionTracker) Touch(ctx context.Context, key string) (bool, error) {
	n, err := s.repo.Sessions().TouchTx(ctx, s.db(), key, s.clock())
	if err != nil {
		return false, StorageError(err, "failed to touch session")
	}
	return n > 0, nil
}

// ListActive returns the active sessions of userID newest first
func (s *SessionTracker) ListActive(ctx context.Context, userID uuid.UUID) ([]*UserSession, error) {
	records, err := s.repo.Sessions().ListActiveTx(ctx, s.db(), userID)
	if err != nil {
		return nil, StorageError(err, "failed to list sessions")
	}
	return records, nil
}

// SweepStale deletes sessions, active or not, whose last activity predates
// now minus maxAgeDays.
func (s *SessionTracker) SweepStale(ctx context.Context, maxAgeDays int) (int, error) {
	if maxAgeDays < 0 {
		maxAgeDays = 0
	}
	cutoff := s.clock().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	n, err := s.repo.Sessions().DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, StorageError(err, "failed to sweep stale sessions")
	}
	if n > 0 {
		s.logger.Info("swept %d stale sessions", n)
	}
	s.metrics.SweepRemoved("sessions", n)
	return n, nil
}

func (s *SessionTracker) db() bun.IDB {
	return s.repo.DB()
}
