package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/classledger/internal/profile"
	"github.com/hrygo/classledger/server/service/attendance"
	"github.com/hrygo/classledger/server/service/timetable"
	"github.com/hrygo/classledger/server/stats"
	"github.com/hrygo/classledger/server/timezone"
	"github.com/hrygo/classledger/store"
	"github.com/hrygo/classledger/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "classledger",
	Short:         "Timetable reconciliation and attendance ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app wires the engine for one command invocation.
type app struct {
	profile   *profile.Profile
	store     *store.Store
	timetable timetable.Service
	mutator   *attendance.Mutator
	stats     *stats.Collector
	location  *time.Location
}

func newApp(ctx context.Context) (*app, error) {
	p := &profile.Profile{
		Mode:        viper.GetString("mode"),
		Data:        viper.GetString("data"),
		Driver:      viper.GetString("driver"),
		DSN:         viper.GetString("dsn"),
		Version:     version,
		Semester:    viper.GetInt("semester"),
		Timezone:    viper.GetString("timezone"),
		Threshold:   viper.GetFloat64("threshold"),
		WriteRate:   viper.GetFloat64("write-rate"),
		WriteBurst:  viper.GetInt("write-burst"),
		CacheTTL:    viper.GetDuration("cache-ttl"),
		MonthMaxAge: viper.GetDuration("month-max-age"),
		LogLevel:    viper.GetString("log-level"),
	}
	p.FromEnv()
	setupLogger(p.LogLevel)
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid profile")
	}

	location, err := timezone.ParseTimezone(p.Timezone)
	if err != nil {
		return nil, err
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}

	collector := stats.NewCollector(st, p.Threshold, p.CacheTTL)
	mutator := attendance.NewMutator(st, attendance.Config{
		Semester:    p.Semester,
		MonthMaxAge: p.MonthMaxAge,
		Refresher:   collector,
	})

	slog.Debug("classledger ready",
		"mode", p.Mode,
		"driver", p.Driver,
		"semester", p.Semester,
		"timezone", p.Timezone)

	return &app{
		profile:   p,
		store:     st,
		timetable: timetable.NewService(st),
		mutator:   mutator,
		stats:     collector,
		location:  location,
	}, nil
}

// Close waits for background refreshes and releases the store.
func (a *app) Close() {
	a.mutator.Wait()
	if err := a.stats.Close(); err != nil {
		slog.Warn("failed to close stats cache", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}

// today returns the current date in the configured timezone.
func (a *app) today() string {
	return timezone.Today(a.location)
}

// withApp adapts a command body that needs a wired app.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(ctx, a, cmd, args)
	}
}

func setupLogger(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("data", "")
	viper.SetDefault("dsn", "")
	viper.SetDefault("semester", 1)
	viper.SetDefault("timezone", "UTC")
	viper.SetDefault("threshold", profile.DefaultThreshold)
	viper.SetDefault("write-rate", profile.DefaultWriteRate)
	viper.SetDefault("write-burst", profile.DefaultWriteBurst)
	viper.SetDefault("cache-ttl", profile.DefaultCacheTTL)
	viper.SetDefault("month-max-age", profile.DefaultMonthMaxAge)
	viper.SetDefault("log-level", "warn")

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (yaml or toml)")
	flags.String("mode", "dev", `mode of the ledger, can be "prod" or "dev" or "demo"`)
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver (sqlite or postgres)")
	flags.String("dsn", "", "database source name")
	flags.Int("semester", 1, "active semester")
	flags.String("timezone", "UTC", "IANA timezone used to resolve today")
	flags.Float64("threshold", profile.DefaultThreshold, "required attendance ratio")
	flags.Float64("write-rate", profile.DefaultWriteRate, "remote writes per second")
	flags.Int("write-burst", profile.DefaultWriteBurst, "remote write burst")
	flags.Duration("cache-ttl", profile.DefaultCacheTTL, "subject and result cache TTL")
	flags.Duration("month-max-age", profile.DefaultMonthMaxAge, "how long a buffered month stays fresh")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	for _, key := range []string{
		"mode", "data", "driver", "dsn", "semester", "timezone", "threshold",
		"write-rate", "write-burst", "cache-ttl", "month-max-age", "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("classledger")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cobra.OnInitialize(func() {
		// A missing .env is fine; the process environment is used as is.
		if err := godotenv.Load(); err == nil {
			slog.Debug("loaded .env file")
		}

		file, _ := rootCmd.PersistentFlags().GetString("config")
		if file == "" {
			return
		}
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to read config %s: %v\n", file, err)
			os.Exit(1)
		}
	})

	rootCmd.AddCommand(
		newTimelineCmd(),
		newWeekCmd(),
		newDayCmd(),
		newMarkCmd(),
		newClearCmd(),
		newMonthCmd(),
		newStatsCmd(),
		newResultsCmd(),
		newStructureCmd(),
		newSlotCmd(),
		newSubjectCmd(),
		newRefreshCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
