package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity store
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	EmailExistsTx(ctx context.Context, tx bun.IDB, email string) (bool, error)

	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *User, columns ...string) error

	TrackAttemptedLogin(ctx context.Context, user *User, windowStart time.Time) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User, windowStart time.Time) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error
}

type users struct {
	repo  repository.Repository[*User]
	db    *bun.DB
	clock Clock
}

var _ Users = (*users)(nil)

type UsersOption func(*users)

// WithUsersClock overrides the time source used for timestamps
func WithUsersClock(c Clock) UsersOption {
	return func(u *users) {
		if c != nil {
			u.clock = c
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		repo:  repo,
		db:    db,
		clock: defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.notFound(err, "id", id.String())
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	email = NormalizeEmail(email)
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.notFound(err, "email", email)
	}
	return record, nil
}

func (a *users) EmailExistsTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Exists(ctx)
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	a.prepareUserDefaults(record)
	return a.repo.CreateTx(ctx, tx, record)
}

// UpdateColumnsTx writes the named columns of record. updated_at is always
// refreshed.
func (a *users) UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *User, columns ...string) error {
	now := a.clock()
	record.UpdatedAt = &now
	columns = append(columns, "updated_at")

	res, err := tx.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, "id", record.ID.String())
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

// TrackSuccessfulLoginTx resets the attempt counter and stamps last_login_at
func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	loggedInAt := a.clock()
	_, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("last_login_at = ?", loggedInAt).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return err
	}

	user.LastLoginAt = &loggedInAt
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	return nil
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User, windowStart time.Time) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user, windowStart)
}

// TrackAttemptedLoginTx increments the stored counter in place. A counter
// whose last attempt predates windowStart restarts at one.
func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User, windowStart time.Time) error {
	now := a.clock()
	var attempts int
	_, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("login_attempts = CASE WHEN login_attempt_at IS NULL OR login_attempt_at < ? THEN 1 ELSE login_attempts + 1 END", windowStart).
		Set("login_attempt_at = ?", now).
		Where("id = ?", user.ID).
		Returning("login_attempts").
		Exec(ctx, &attempts)
	if err != nil {
		return err
	}

	user.LoginAttempts = attempts
	user.LoginAttemptAt = &now
	return nil
}

// SetPasswordTx stores a new hash and clears the login throttle
func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("login_attempts = 0").
		Set("login_attempt_at = NULL").
		Set("updated_at = ?", a.clock()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, "id", id.String())
}

func (a *users) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_verified = ?", true).
		Set("updated_at = ?", a.clock()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, "id", id.String())
}

func (a *users) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error {
	now := a.clock()
	q := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", now)
	if active {
		q = q.Set("deactivated_at = NULL")
	} else {
		q = q.Set("deactivated_at = ?", now)
	}

	res, err := q.Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, "id", id.String())
}

func (a *users) prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.UserType == "" {
		record.UserType = UserTypeClient
	}

	if record.ClientType == "" {
		record.ClientType = ClientTypeGeneral
	}

	if record.AuthProvider == "" {
		record.AuthProvider = ProviderEmail
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := a.clock()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now
}

func (a *users) notFound(err error, column, value string) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				column: value,
			})
	}
	return err
}

func expectRows(res sql.Result, column, value string) error {
	if res == nil {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				column: value,
			})
	}
	return nil
}

// IsRecordNotFound reports whether err signals a missing row
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
