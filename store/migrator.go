package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Migration System Overview:
//
// A fresh database gets the full schema from LATEST.sql in a single
// transaction and records the schema version in system_setting. In demo mode
// the seed files are applied afterwards, once, on that fresh database.
//
// Files:
// - store/migration/{driver}/LATEST.sql: full schema
// - store/seed/{driver}/NN__description.sql: demo data, applied in name order

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const (
	// LatestSchemaFileName is the name of the latest schema file.
	LatestSchemaFileName = "LATEST.sql"

	// SchemaVersion is the version recorded for LATEST.sql.
	SchemaVersion = "0.1.0"

	schemaVersionSetting = "schema_version"

	// Mode constants for profile mode.
	modeDemo = "demo"
)

// Migrate initializes the database schema when it is missing and seeds demo
// data in demo mode. It is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	fresh, err := s.preMigrate(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to pre-migrate")
	}

	if fresh && s.profile.Mode == modeDemo {
		if err := s.seed(ctx); err != nil {
			return errors.Wrap(err, "failed to seed")
		}
	}
	return nil
}

// preMigrate applies the latest schema if the database is not initialized.
// It reports whether the schema was freshly applied.
func (s *Store) preMigrate(ctx context.Context) (bool, error) {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return false, nil
	}

	filePath := s.getMigrationBasePath() + LatestSchemaFileName
	bytes, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return false, errors.Errorf("failed to read latest schema file: %s", err)
	}

	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	slog.Info("initializing new database with latest schema", slog.String("file", filePath))
	if err := s.execute(ctx, tx, string(bytes)); err != nil {
		return false, errors.Errorf("failed to execute SQL file %s, err %s", filePath, err)
	}
	if err := s.upsertSchemaVersion(ctx, tx, SchemaVersion); err != nil {
		return false, errors.Wrap(err, "failed to update current schema version")
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit transaction")
	}

	slog.Info("database initialized successfully", slog.String("schemaVersion", SchemaVersion))
	return true, nil
}

func (s *Store) getMigrationBasePath() string {
	return fmt.Sprintf("migration/%s/", s.profile.Driver)
}

func (s *Store) getSeedBasePath() string {
	return fmt.Sprintf("seed/%s/", s.profile.Driver)
}

// seed applies every seed file of the active driver in name order.
func (s *Store) seed(ctx context.Context) error {
	filenames, err := fs.Glob(seedFS, fmt.Sprintf("%s*.sql", s.getSeedBasePath()))
	if err != nil {
		return errors.Wrap(err, "failed to read seed files")
	}
	sort.Strings(filenames)

	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	for _, filename := range filenames {
		bytes, err := seedFS.ReadFile(filename)
		if err != nil {
			return errors.Wrapf(err, "failed to read seed file, filename=%s", filename)
		}
		if err := s.execute(ctx, tx, string(bytes)); err != nil {
			return errors.Wrapf(err, "seed error: %s", filename)
		}
	}
	slog.Info("seeded demo data", slog.Int("files", len(filenames)))
	return tx.Commit()
}

// GetSchemaVersion returns the schema version recorded in the database.
func (s *Store) GetSchemaVersion(ctx context.Context) (string, error) {
	var value string
	stmt := "SELECT value FROM system_setting WHERE name = " + s.placeholder(1)
	if err := s.driver.GetDB().QueryRowContext(ctx, stmt, schemaVersionSetting).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", errors.Wrap(err, "failed to read schema version")
	}
	return value, nil
}

func (s *Store) upsertSchemaVersion(ctx context.Context, tx *sql.Tx, version string) error {
	stmt := "INSERT INTO system_setting (name, value) VALUES (" + s.placeholder(1) + ", " + s.placeholder(2) + ") " +
		"ON CONFLICT(name) DO UPDATE SET value = excluded.value"
	_, err := tx.ExecContext(ctx, stmt, schemaVersionSetting, version)
	return err
}

func (s *Store) placeholder(n int) string {
	if s.profile.Driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// execute executes a SQL script within a transaction context.
// PostgreSQL does not accept several statements in one ExecContext call, so
// the script is split and executed statement by statement there.
func (s *Store) execute(ctx context.Context, tx *sql.Tx, stmt string) error {
	if s.profile.Driver != "postgres" {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to execute statement")
		}
		return nil
	}
	for i, one := range splitSQL(stmt) {
		if _, err := tx.ExecContext(ctx, one); err != nil {
			return errors.Wrapf(err, "failed to execute statement %d: %s", i+1, one)
		}
	}
	return nil
}

// splitSQL splits a script into statements on semicolons that are outside
// single-quoted strings. Line comments are dropped.
func splitSQL(script string) []string {
	var (
		statements []string
		current    strings.Builder
		inQuote    bool
	)
	for _, line := range strings.Split(script, "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "--") && !inQuote {
			continue
		}
		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch {
			case ch == '\'':
				inQuote = !inQuote
				current.WriteByte(ch)
			case ch == ';' && !inQuote:
				if stmt := strings.TrimSpace(current.String()); stmt != "" {
					statements = append(statements, stmt)
				}
				current.Reset()
			default:
				current.WriteByte(ch)
			}
		}
		current.WriteByte('\n')
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}
