package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultThreshold is the minimum attendance ratio used for projections.
	DefaultThreshold = 0.75
	// DefaultWriteRate is the sustained number of remote writes per second.
	DefaultWriteRate = 5.0
	// DefaultWriteBurst is the write limiter burst size.
	DefaultWriteBurst = 10
	// DefaultCacheTTL is how long subject and result lookups stay cached.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultMonthMaxAge is how long a buffered month is considered fresh.
	DefaultMonthMaxAge = 10 * time.Minute
)

// Profile is the configuration the ledger engine starts with.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where the academic data lives
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of the engine
	Version string

	// Semester is the active semester (1-based).
	Semester int
	// Timezone is the IANA zone used to resolve "today" and date keys.
	Timezone string
	// Threshold is the required attendance ratio in (0,1).
	Threshold float64

	WriteRate   float64       // CLASSLEDGER_WRITE_RATE (default: 5 writes/s)
	WriteBurst  int           // CLASSLEDGER_WRITE_BURST (default: 10)
	CacheTTL    time.Duration // CLASSLEDGER_CACHE_TTL (default: 5m)
	MonthMaxAge time.Duration // CLASSLEDGER_MONTH_MAX_AGE (default: 10m)
	LogLevel    string        // CLASSLEDGER_LOG_LEVEL (default: info)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from CLASSLEDGER_* environment variables.
// Values already set on the profile are only overridden by non-empty variables.
func (p *Profile) FromEnv() {
	getFloat := func(key string, current, def float64) float64 {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			slog.Warn("ignoring malformed float env", "key", key, "value", v)
		}
		if current != 0 {
			return current
		}
		return def
	}
	getInt := func(key string, current, def int) int {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			slog.Warn("ignoring malformed int env", "key", key, "value", v)
		}
		if current != 0 {
			return current
		}
		return def
	}
	getDuration := func(key string, current, def time.Duration) time.Duration {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				return d
			}
			slog.Warn("ignoring malformed duration env", "key", key, "value", v)
		}
		if current != 0 {
			return current
		}
		return def
	}
	getString := func(key, current, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if current != "" {
			return current
		}
		return def
	}

	p.Mode = getString("CLASSLEDGER_MODE", p.Mode, "dev")
	p.Driver = getString("CLASSLEDGER_DRIVER", p.Driver, "sqlite")
	p.DSN = getString("CLASSLEDGER_DSN", p.DSN, "")
	p.Data = getString("CLASSLEDGER_DATA", p.Data, getEnvOrDefault("HOME", "."))
	p.Timezone = getString("CLASSLEDGER_TIMEZONE", p.Timezone, "UTC")
	p.LogLevel = getString("CLASSLEDGER_LOG_LEVEL", p.LogLevel, "info")
	p.Semester = getInt("CLASSLEDGER_SEMESTER", p.Semester, 1)
	p.Threshold = getFloat("CLASSLEDGER_THRESHOLD", p.Threshold, DefaultThreshold)
	p.WriteRate = getFloat("CLASSLEDGER_WRITE_RATE", p.WriteRate, DefaultWriteRate)
	p.WriteBurst = getInt("CLASSLEDGER_WRITE_BURST", p.WriteBurst, DefaultWriteBurst)
	p.CacheTTL = getDuration("CLASSLEDGER_CACHE_TTL", p.CacheTTL, DefaultCacheTTL)
	p.MonthMaxAge = getDuration("CLASSLEDGER_MONTH_MAX_AGE", p.MonthMaxAge, DefaultMonthMaxAge)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only sqlite and postgres are supported", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.Semester <= 0 {
		return errors.Errorf("semester must be positive, got %d", p.Semester)
	}
	if p.Threshold <= 0 || p.Threshold >= 1 {
		slog.Warn("threshold out of range, using default",
			slog.Float64("threshold", p.Threshold),
			slog.Float64("default", DefaultThreshold))
		p.Threshold = DefaultThreshold
	}
	if p.WriteRate <= 0 {
		p.WriteRate = DefaultWriteRate
	}
	if p.WriteBurst <= 0 {
		p.WriteBurst = DefaultWriteBurst
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "classledger")
		} else {
			p.Data = "/var/opt/classledger"
		}
		if err := os.MkdirAll(p.Data, 0o770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("classledger_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
