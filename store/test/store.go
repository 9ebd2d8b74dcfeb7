package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/classledger/internal/profile"
	"github.com/hrygo/classledger/store"
	"github.com/hrygo/classledger/store/db"
)

// NewTestingStore opens a migrated store for a test. SQLite runs in a temp
// dir; set DRIVER=postgres and POSTGRES_TEST_DSN to run against PostgreSQL.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	profile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	ts := store.New(dbDriver, profile)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		ts.Close()
	})
	return ts
}

func getTestingProfile(t *testing.T) *profile.Profile {
	driver := getDriverFromEnv()
	dir := t.TempDir()

	p := &profile.Profile{
		Mode:       "dev",
		Data:       dir,
		Driver:     driver,
		Semester:   1,
		Timezone:   "UTC",
		Threshold:  profile.DefaultThreshold,
		WriteRate:  1000,
		WriteBurst: 1000,
	}
	switch driver {
	case "postgres":
		dsn := os.Getenv("POSTGRES_TEST_DSN")
		if dsn == "" {
			t.Skip("POSTGRES_TEST_DSN not set")
		}
		p.DSN = dsn
	default:
		p.DSN = filepath.Join(dir, fmt.Sprintf("classledger_%s.db", p.Mode))
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}

// seedSubject creates a subject in semester 1.
func seedSubject(ctx context.Context, t *testing.T, ts *store.Store, name string) *store.Subject {
	t.Helper()
	subject, err := ts.SaveSubject(ctx, 1, &store.Subject{Name: name})
	if err != nil {
		t.Fatalf("failed to create subject: %v", err)
	}
	return subject
}
