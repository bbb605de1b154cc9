package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	TxRunner
	Users() Users
	Tokens() Tokens
	Sessions() Sessions
	DB() *bun.DB
}

type mngr struct {
	db       *bun.DB
	users    Users
	tokens   Tokens
	sessions Sessions
}

var _ TxRunner = (*mngr)(nil)

// ManagerOption customizes the repositories built by NewRepositoryManager
type ManagerOption func(*mngr)

// WithManagerClock sets the clock used by the identity store
func WithManagerClock(c Clock) ManagerOption {
	return func(m *mngr) {
		m.users = NewUsersRepository(m.db, WithUsersClock(c))
	}
}

func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{
		db:       db,
		users:    NewUsersRepository(db),
		tokens:   NewTokensRepository(db),
		sessions: NewSessionsRepository(db),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Tokens() Tokens {
	return m.tokens
}

func (m mngr) Sessions() Sessions {
	return m.sessions
}
