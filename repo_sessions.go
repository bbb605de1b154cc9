package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions stores tracked client sessions
type Sessions interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *UserSession) (*UserSession, error)
	GetByKey(ctx context.Context, key string) (*UserSession, error)
	ListActiveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*UserSession, error)
	DeactivateTx(ctx context.Context, tx bun.IDB, ids []uuid.UUID, at time.Time) (int, error)
	DeactivateByKeyTx(ctx context.Context, tx bun.IDB, key string, at time.Time) (int, error)
	DeactivateAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int, error)
	TouchTx(ctx context.Context, tx bun.IDB, key string, at time.Time) (int, error)
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}

type sessions struct {
	repo repository.Repository[*UserSession]
	db   *bun.DB
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	handlers := repository.ModelHandlers[*UserSession]{
		NewRecord: func() *UserSession {
			return &UserSession{}
		},
		GetID: func(record *UserSession) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *UserSession, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "session_key"
		},
	}
	return &sessions{
		repo: repository.NewRepository(db, handlers),
		db:   db,
	}
}

// CreateTx assigns a time ordered v7 id so id DESC is newest first among
// sessions sharing a created_at.
func (s *sessions) CreateTx(ctx context.Context, tx bun.IDB, record *UserSession) (*UserSession, error) {
	if record.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		record.ID = id
	}
	return s.repo.CreateTx(ctx, tx, record)
}

func (s *sessions) GetByKey(ctx context.Context, key string) (*UserSession, error) {
	record := &UserSession{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.session_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"session_key": key,
				})
		}
		return nil, err
	}
	return record, nil
}

// ListActiveTx returns active sessions newest first. Ties on created_at are
// broken by the v7 id, which follows insertion order.
func (s *sessions) ListActiveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*UserSession, error) {
	records := []*UserSession{}
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.is_active = ?", true).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Scan(ctx)
	return records, err
}

func (s *sessions) DeactivateTx(ctx context.Context, tx bun.IDB, ids []uuid.UUID, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := tx.NewUpdate().
		Model((*UserSession)(nil)).
		Set("is_active = ?", false).
		Set("ended_at = ?", at).
		Where("id IN (?)", bun.In(ids)).
		Where("is_active = ?", true).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *sessions) DeactivateByKeyTx(ctx context.Context, tx bun.IDB, key string, at time.Time) (int, error) {
	res, err := tx.NewUpdate().
		Model((*UserSession)(nil)).
		Set("is_active = ?", false).
		Set("ended_at = ?", at).
		Where("session_key = ?", key).
		Where("is_active = ?", true).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *sessions) DeactivateAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int, error) {
	res, err := tx.NewUpdate().
		Model((*UserSession)(nil)).
		Set("is_active = ?", false).
		Set("ended_at = ?", at).
		Where("user_id = ?", userID).
		Where("is_active = ?", true).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *sessions) TouchTx(ctx context.Context, tx bun.IDB, key string, at time.Time) (int, error) {
	res, err := tx.NewUpdate().
		Model((*UserSession)(nil)).
		Set("last_activity = ?", at).
		Where("session_key = ?", key).
		Where("is_active = ?", true).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *sessions) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.NewDelete().
		Model((*UserSession)(nil)).
		Where("last_activity < ?", cutoff).
		Exec(ctx)
	return rowsAffected(res, err)
}

func rowsAffected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
