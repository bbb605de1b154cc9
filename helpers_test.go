package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "sparkling99"

var fastHasher = auth.BcryptHasher{Cost: bcrypt.MinCost}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, auth.CreateTables(context.Background(), db))
	return db
}

// testClock is a whole second UTC clock that only moves when told to
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentNotification struct {
	Kind auth.NotificationKind
	User *auth.User
	Data map[string]any
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *captureNotifier) Send(_ context.Context, kind auth.NotificationKind, user *auth.User, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Kind: kind, User: user, Data: data})
	return n.err
}

func (n *captureNotifier) kinds() []auth.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]auth.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func (n *captureNotifier) last() sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentNotification{}
	}
	return n.sent[len(n.sent)-1]
}

type captureSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *captureSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *captureSink) last() auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return auth.ActivityEvent{}
	}
	return s.events[len(s.events)-1]
}

type fixture struct {
	db       *bun.DB
	clock    *testClock
	repo     auth.RepositoryManager
	tokens   *auth.TokenManager
	sessions *auth.SessionTracker
	notifier *captureNotifier
	sink     *captureSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	clock := newTestClock()
	repo := auth.NewRepositoryManager(db, auth.WithManagerClock(clock.Now))

	return &fixture{
		db:       db,
		clock:    clock,
		repo:     repo,
		tokens:   auth.NewTokenManager(repo, auth.WithTokenClock(clock.Now)),
		sessions: auth.NewSessionTracker(repo, auth.WithSessionClock(clock.Now)),
		notifier: &captureNotifier{},
		sink:     &captureSink{},
	}
}

func (f *fixture) flowOptions() []auth.FlowOption {
	return []auth.FlowOption{
		auth.WithFlowNotifier(f.notifier),
		auth.WithFlowActivitySink(f.sink),
		auth.WithFlowHasher(fastHasher),
		auth.WithFlowClock(f.clock.Now),
	}
}

func (f *fixture) verifier(opts ...auth.CredentialVerifierOption) *auth.CredentialVerifier {
	base := []auth.CredentialVerifierOption{
		auth.WithVerifierHasher(fastHasher),
		auth.WithVerifierNotifier(f.notifier),
		auth.WithVerifierActivitySink(f.sink),
		auth.WithVerifierClock(f.clock.Now),
	}
	return auth.NewCredentialVerifier(f.repo, f.sessions, append(base, opts...)...)
}

// createUser stores an active local identity with testPassword
func (f *fixture) createUser(t *testing.T, email string, mutate ...func(*auth.User)) *auth.User {
	t.Helper()

	hash, err := fastHasher.HashPassword(testPassword)
	require.NoError(t, err)

	user := &auth.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Casey",
		LastName:     "Jones",
		IsActive:     true,
		AuthProvider: auth.ProviderEmail,
	}
	for _, m := range mutate {
		m(user)
	}

	created, err := f.repo.Users().Create(context.Background(), user)
	require.NoError(t, err)
	return created
}

func (f *fixture) reload(t *testing.T, user *auth.User) *auth.User {
	t.Helper()
	fresh, err := f.repo.Users().GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	return fresh
}

func textCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}
