package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/classledger/internal/profile"
	"github.com/hrygo/classledger/store"
)

// ============================================================================
// POSTGRESQL SUPPORT (Hosted academic-data database)
// ============================================================================
// PostgreSQL serves a ledger shared by several front ends. The schema and
// behavior match the SQLite driver; only placeholders and DDL types differ.
// ============================================================================

// connectTimeout bounds the initial ping of the academic-data database.
const connectTimeout = 10 * time.Second

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL database and returns a new store.Driver. The DSN
// is never echoed in errors since it usually carries a password.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required for postgres")
	}

	pg, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres database")
	}

	// Few concurrent writers: the mutator serializes marks and the month
	// buffer fetches at most three months at once.
	pg.SetMaxOpenConns(4)
	pg.SetMaxIdleConns(2)
	pg.SetConnMaxIdleTime(15 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := pg.PingContext(ctx); err != nil {
		pg.Close()
		slog.Error("postgres unreachable", slog.String("error", err.Error()))
		return nil, errors.Wrap(err, "failed to ping postgres database")
	}

	return &DB{db: pg, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'system_setting')",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}
