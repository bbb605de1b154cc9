package auth

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Models lists the bun models owned by this package
func Models() []any {
	return []any{
		(*User)(nil),
		(*Token)(nil),
		(*UserSession)(nil),
	}
}

type indexSpec struct {
	model   any
	name    string
	columns []string
}

var indexes = []indexSpec{
	{model: (*Token)(nil), name: "account_tokens_user_kind_idx", columns: []string{"user_id", "kind"}},
	{model: (*Token)(nil), name: "account_tokens_expires_at_idx", columns: []string{"expires_at"}},
	{model: (*UserSession)(nil), name: "user_sessions_user_active_idx", columns: []string{"user_id", "is_active"}},
	{model: (*UserSession)(nil), name: "user_sessions_last_activity_idx", columns: []string{"last_activity"}},
}

// CreateTables creates the account tables and their indexes if they do not
// exist. Extra models, like the social link model, are created too.
func CreateTables(ctx context.Context, db bun.IDB, extra ...any) error {
	models := append(Models(), extra...)
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
