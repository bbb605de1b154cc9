package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/FlameGreat-1/nswcleaningcompany-sub001/config"
	"github.com/FlameGreat-1/nswcleaningcompany-sub001/outbox"
	"github.com/FlameGreat-1/nswcleaningcompany-sub001/repository"
	"github.com/goliatone/go-logger/glog"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// app wires the account core from loaded options
type app struct {
	opts     *config.Options
	logger   auth.Logger
	db       *bun.DB
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  auth.Metrics

	repo      auth.RepositoryManager
	links     *repository.SocialLinkRepository
	tokens    *auth.TokenManager
	sessions  *auth.SessionTracker
	lifecycle *auth.AccountLifecycle
}

func newApp(opts *config.Options, base *glog.BaseLogger) (*app, error) {
	db, err := openDB(opts.Database)
	if err != nil {
		return nil, err
	}

	logger := componentLogger(base, "accounts")
	a := &app{
		opts:     opts,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}
	a.metrics = auth.NewPrometheusMetrics(opts.Metrics.Namespace, a.registry)

	var notifier auth.Notifier = auth.NewLogNotifier(componentLogger(base, "accounts:notify"))
	var activity auth.ActivitySink
	if opts.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     opts.Redis.Addr,
			Password: opts.Redis.Password,
			DB:       opts.Redis.DB,
		})
		notifier = auth.MultiNotifier{
			notifier,
			outbox.NewRedisNotifier(a.redis, outbox.WithQueue(opts.Redis.Queue)),
		}
		activity = outbox.NewRedisActivitySink(a.redis)
	}

	a.repo = auth.NewRepositoryManager(db)
	a.links = repository.NewSocialLinkRepository(db)
	a.tokens = auth.NewTokenManager(a.repo,
		auth.WithTokenTTL(auth.TokenEmailVerification, opts.Tokens.VerificationTTL),
		auth.WithTokenTTL(auth.TokenPasswordReset, opts.Tokens.PasswordResetTTL),
		auth.WithTokenLogger(componentLogger(base, "accounts:tokens")),
		auth.WithTokenMetrics(a.metrics),
	)
	a.sessions = auth.NewSessionTracker(a.repo,
		auth.WithSessionCap(opts.Sessions.Cap),
		auth.WithSessionLogger(componentLogger(base, "accounts:sessions")),
		auth.WithSessionMetrics(a.metrics),
	)
	a.lifecycle = auth.NewAccountLifecycle(a.repo, a.sessions,
		auth.WithLifecycleLinks(a.links),
		auth.WithLifecycleNotifier(notifier),
		auth.WithLifecycleActivitySink(activity),
		auth.WithLifecycleLogger(componentLogger(base, "accounts:lifecycle")),
	)

	return a, nil
}

func openDB(opts config.DatabaseOptions) (*bun.DB, error) {
	var db *bun.DB
	switch opts.Driver {
	case config.DriverPostgres:
		sqldb, err := sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case config.DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if opts.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

func (a *app) migrate(ctx context.Context) error {
	return auth.CreateTables(ctx, a.db, repository.Models()...)
}

// writeMetrics dumps the counters touched by this run
func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil && c.GetValue() > 0 {
				fmt.Fprintf(w, "%s%s %v\n", mf.GetName(), labels(m.GetLabel()), c.GetValue())
			}
		}
	}
	return nil
}

func labels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	out := "{"
	for i, p := range pairs {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s=%q", p.GetName(), p.GetValue())
	}
	return out + "}"
}

func (a *app) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.db.Close()
}
