package main

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func useTempDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.db")
	t.Setenv("ACCOUNTS_DATABASE_DRIVER", "sqlite")
	t.Setenv("ACCOUNTS_DATABASE_DSN", "file:"+path)
	return path
}

func TestMigrateAndSweep(t *testing.T) {
	useTempDatabase(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	// running twice is safe
	_, err = run(t, "migrate")
	require.NoError(t, err)

	out, err = run(t, "sweep", "tokens")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 expired tokens")

	out, err = run(t, "sweep", "sessions", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "idle for 7 days")
}

func TestUsersDeactivateAndReactivate(t *testing.T) {
	path := useTempDatabase(t)

	_, err := run(t, "migrate")
	require.NoError(t, err)

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+path)
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = auth.NewUsersRepository(db).Create(context.Background(), &auth.User{
		Email:     "client@example.com",
		FirstName: "Casey",
		IsActive:  true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := run(t, "users", "deactivate", "Client@Example.com", "--reason", "requested")
	require.NoError(t, err)
	assert.Contains(t, out, "deactivated client@example.com")

	out, err = run(t, "users", "reactivate", "client@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "reactivated client@example.com")

	_, err = run(t, "users", "deactivate", "nobody@example.com")
	assert.ErrorContains(t, err, "no identity")
}

func TestConfigCommandOmitsSecrets(t *testing.T) {
	useTempDatabase(t)
	t.Setenv("ACCOUNTS_GOOGLE_CLIENT_ID", "visible-id")
	t.Setenv("ACCOUNTS_GOOGLE_CLIENT_SECRET", "hidden-secret")

	out, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "visible-id")
	assert.NotContains(t, out, "hidden-secret")
	assert.NotContains(t, out, "accounts.db")
}
