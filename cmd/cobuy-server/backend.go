package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/config"
	"github.com/persistorai/cobuy/internal/db"
	"github.com/persistorai/cobuy/internal/db/migrations"
	"github.com/persistorai/cobuy/internal/dbpool"
	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/sqlitestore"
	"github.com/persistorai/cobuy/internal/store"
)

// merchantBackend is a domain.Backend that can also register merchants.
type merchantBackend interface {
	domain.Backend
	CreateMerchant(ctx context.Context, name, apiKey string) (string, error)
}

// backend is an opened history backend. pool is nil for SQLite.
type backend struct {
	merchantBackend
	pool          *dbpool.Pool
	schemaVersion int
	closeFn       func()
}

func (b *backend) Close() {
	if b.closeFn != nil {
		b.closeFn()
	}
}

// openBackend connects to the configured history backend. PostgreSQL
// migrations are applied before the backend is returned.
func openBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*backend, error) {
	switch cfg.HistoryBackend {
	case config.BackendSQLite:
		s, err := sqlitestore.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite backend: %w", err)
		}

		closeFn := func() {
			if err := s.Close(); err != nil {
				log.WithError(err).Warn("closing sqlite backend")
			}
		}

		return &backend{merchantBackend: s, closeFn: closeFn}, nil

	case config.BackendPostgres:
		pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("creating database pool: %w", err)
		}

		if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}

		return &backend{
			merchantBackend: store.NewBackend(pool, log),
			pool:            pool,
			schemaVersion:   db.SchemaVersion(),
			closeFn:         pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}
