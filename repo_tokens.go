package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens stores verification and password reset tokens by hash
type Tokens interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *Token) (*Token, error)
	GetByHash(ctx context.Context, kind TokenKind, hash string) (*Token, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, kind TokenKind, hash string) (*Token, error)
	// DeleteUnusedTx removes every unused token of kind owned by userID
	DeleteUnusedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, kind TokenKind) (int, error)
	// DeleteUnusedForUserTx removes every unused token owned by userID
	DeleteUnusedForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
	// MarkUsedTx flips is_used only if the token is still unused. It returns
	// false when another caller consumed it first.
	MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)
	ListUnusedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, kind TokenKind) ([]*Token, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type tokens struct {
	repo repository.Repository[*Token]
	db   *bun.DB
}

var _ Tokens = (*tokens)(nil)

func NewTokensRepository(db *bun.DB) Tokens {
	handlers := repository.ModelHandlers[*Token]{
		NewRecord: func() *Token {
			return &Token{}
		},
		GetID: func(record *Token) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Token, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	}
	return &tokens{
		repo: repository.NewRepository(db, handlers),
		db:   db,
	}
}

func (t *tokens) CreateTx(ctx context.Context, tx bun.IDB, record *Token) (*Token, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return t.repo.CreateTx(ctx, tx, record)
}

func (t *tokens) GetByHash(ctx context.Context, kind TokenKind, hash string) (*Token, error) {
	return t.GetByHashTx(ctx, t.db, kind, hash)
}

func (t *tokens) GetByHashTx(ctx context.Context, tx bun.IDB, kind TokenKind, hash string) (*Token, error) {
	record := &Token{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", hash).
		Where("?TableAlias.kind = ?", kind).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"kind": string(kind),
				})
		}
		return nil, err
	}
	return record, nil
}

func (t *tokens) DeleteUnusedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, kind TokenKind) (int, error) {
	res, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("user_id = ?", userID).
		Where("kind = ?", kind).
		Where("is_used = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (t *tokens) DeleteUnusedForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	res, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("user_id = ?", userID).
		Where("is_used = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (t *tokens) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*Token)(nil)).
		Set("is_used = ?", true).
		Set("used_at = ?", at).
		Where("id = ?", id).
		Where("is_used = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *tokens) ListUnusedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, kind TokenKind) ([]*Token, error) {
	records := []*Token{}
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.kind = ?", kind).
		Where("?TableAlias.is_used = ?", false).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

func (t *tokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := t.db.NewDelete().
		Model((*Token)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
