package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Dosada05/contest-system/brackets"
	"github.com/Dosada05/contest-system/cache"
	"github.com/Dosada05/contest-system/config"
	"github.com/Dosada05/contest-system/db"
	"github.com/Dosada05/contest-system/middleware"
	"github.com/Dosada05/contest-system/repositories"
	"github.com/Dosada05/contest-system/services"
	"github.com/Dosada05/contest-system/storage"
)

func main() {
	app := &cli.App{
		Name:  "contestctl",
		Usage: "operate the contest bracket engine",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at debug level"},
		},
		Before: func(cCtx *cli.Context) error {
			level := slog.LevelInfo
			if cCtx.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			planCommand(),
			tickCommand(),
			hashKeyCommand(),
			flushCacheCommand(),
			archiveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Action: func(cCtx *cli.Context) error {
			return withDatabase(func(_ *config.Config, conn *sql.DB) error {
				if err := db.Migrate(conn); err != nil {
					return err
				}
				version, err := db.MigrationVersion(conn)
				if err != nil {
					return err
				}
				slog.Info("schema is up to date", slog.Int64("version", version))
				return nil
			})
		},
	}
}

func seedCommand() *cli.Command {
	var file string
	return &cli.Command{
		Name:  "seed",
		Usage: "create the contests described by a YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "seed file, one contest per YAML document", Destination: &file, Required: true},
		},
		Action: func(cCtx *cli.Context) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			inputs, err := readSeeds(f)
			if err != nil {
				return err
			}

			return withDatabase(func(cfg *config.Config, conn *sql.DB) error {
				deps, closeDeps := newDeps(cCtx.Context, cfg, conn)
				defer closeDeps()
				cs := services.NewContestService(deps)
				for _, input := range inputs {
					contest, err := cs.CreateContest(cCtx.Context, input)
					if err != nil {
						return fmt.Errorf("seeding %q: %w", input.Title, err)
					}
					fmt.Fprintf(cCtx.App.Writer, "%d\t%s\t%d members\t%d rounds\n", contest.ID, contest.Title, len(contest.Members), len(contest.Rounds))
				}
				return nil
			})
		},
	}
}

func planCommand() *cli.Command {
	opts := planOptions{}
	var startedOn string
	return &cli.Command{
		Name:  "plan",
		Usage: "print the round layout for a number of members",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "members", Aliases: []string{"n"}, Usage: "number of members", Destination: &opts.Members, Required: true},
			&cli.StringFlag{Name: "strategy", Usage: "bracket strategy", Value: brackets.StrategyDoubleElimination, Destination: &opts.Strategy},
			&cli.IntFlag{Name: "per-wave", Usage: "matches started per wave", Value: 100, Destination: &opts.PerWave},
			&cli.IntFlag{Name: "duration", Usage: "match duration in days", Value: 1, Destination: &opts.Duration},
			&cli.IntFlag{Name: "interval", Usage: "days between waves", Value: 1, Destination: &opts.Interval},
			&cli.StringFlag{Name: "start", Usage: "first day, YYYY-MM-DD (default today)", Destination: &startedOn},
		},
		Action: func(cCtx *cli.Context) error {
			opts.StartedOn = time.Now()
			if startedOn != "" {
				day, err := time.Parse(time.DateOnly, startedOn)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				opts.StartedOn = day
			}
			contest, err := previewContest(opts)
			if err != nil {
				return err
			}
			return printPlan(cCtx.App.Writer, contest)
		},
	}
}

func tickCommand() *cli.Command {
	var today string
	return &cli.Command{
		Name:  "tick",
		Usage: "advance every due contest once",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "today", Usage: "day to tick for, YYYY-MM-DD (default today in TIMEZONE)", Destination: &today},
		},
		Action: func(cCtx *cli.Context) error {
			return withDatabase(func(cfg *config.Config, conn *sql.DB) error {
				day := cfg.Today()
				if today != "" {
					parsed, err := time.ParseInLocation(time.DateOnly, today, cfg.Location)
					if err != nil {
						return fmt.Errorf("invalid --today: %w", err)
					}
					day = parsed
				}

				deps, closeDeps := newDeps(cCtx.Context, cfg, conn)
				defer closeDeps()
				cs := services.NewContestService(deps)
				report, err := cs.Tick(cCtx.Context, day)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cCtx.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
}

func hashKeyCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-key",
		Usage:     "print the DRIVER_KEY_HASH value for a driver key",
		ArgsUsage: "<key>",
		Action: func(cCtx *cli.Context) error {
			key := cCtx.Args().First()
			if key == "" {
				return cli.Exit("a driver key is required", 2)
			}
			hash, err := middleware.HashDriverKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cCtx.App.Writer, hash)
			return nil
		},
	}
}

func flushCacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "flush-cache",
		Usage: "drop every cached bracket view",
		Action: func(cCtx *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return cli.Exit("REDIS_URL is not set", 1)
			}
			client, err := cache.Connect(cCtx.Context, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := cache.NewBracketCache(client, cfg.CacheTTL).Flush(cCtx.Context); err != nil {
				return fmt.Errorf("failed to flush bracket cache: %w", err)
			}
			slog.Info("bracket cache flushed")
			return nil
		},
	}
}

func archiveCommand() *cli.Command {
	var (
		id     int
		remove bool
	)
	return &cli.Command{
		Name:  "archive",
		Usage: "upload the bracket of a finished contest to the archive bucket",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "contest", Aliases: []string{"c"}, Usage: "contest id", Destination: &id, Required: true},
			&cli.BoolFlag{Name: "remove", Usage: "delete the archived copy instead", Destination: &remove},
		},
		Action: func(cCtx *cli.Context) error {
			return withDatabase(func(cfg *config.Config, conn *sql.DB) error {
				if !cfg.R2.Enabled() {
					return cli.Exit("R2 archive settings are missing", 1)
				}
				archive, err := storage.NewR2Uploader(cCtx.Context, cfg.R2)
				if err != nil {
					return err
				}
				deps, closeDeps := newDeps(cCtx.Context, cfg, conn)
				defer closeDeps()
				return archiveContest(cCtx.Context, services.NewContestService(deps), archive, id, remove, cCtx.App.Writer)
			})
		},
	}
}

func withDatabase(fn func(cfg *config.Config, conn *sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	conn, err := db.Connect(cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 5})
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(cfg, conn)
}

// newDeps wires the services without the realtime hub; the cache is still
// invalidated so the server never serves a stale view after a manual tick.
func newDeps(ctx context.Context, cfg *config.Config, conn *sql.DB) (services.Deps, func()) {
	logger := slog.Default()
	deps := services.Deps{
		Tx:              services.NewSQLTransactor(conn, logger),
		Contests:        repositories.NewPostgresContestRepository(conn),
		Members:         repositories.NewPostgresMemberRepository(conn),
		Rounds:          repositories.NewPostgresRoundRepository(conn),
		Matches:         repositories.NewPostgresMatchRepository(conn),
		Engine:          brackets.NewEngine(brackets.WithLogger(logger)),
		Logger:          logger,
		TickParallelism: cfg.TickParallelism,
	}
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("bracket cache unavailable, views may be stale until they expire", slog.Any("error", err))
			return deps, func() {}
		}
		deps.Cache = cache.NewBracketCache(client, cfg.CacheTTL)
		return deps, func() { client.Close() }
	}
	return deps, func() {}
}
