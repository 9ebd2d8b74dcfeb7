package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/classledger/internal/profile"
	"github.com/hrygo/classledger/store"
	"github.com/hrygo/classledger/store/db/postgres"
	"github.com/hrygo/classledger/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// SQLite: default, local single-user ledger.
// PostgreSQL: hosted academic-data database.
// Both drivers implement the same contract against the same schema.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
