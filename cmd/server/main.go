package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/JustJay7/ecourts-extractor/internal/app"
	"github.com/JustJay7/ecourts-extractor/internal/config"
	"github.com/JustJay7/ecourts-extractor/internal/database"
	"github.com/JustJay7/ecourts-extractor/internal/jobs"
	"github.com/JustJay7/ecourts-extractor/internal/server"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
)

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}

	if migrate {
		log.Info("Database migrations completed successfully")
		return
	}

	engine, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize extraction engine", "error", err)
	}

	store := database.NewStore(db)
	srv := server.New(cfg, engine, store, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.SchedulerEnabled {
		runner := jobs.NewRunner(engine.Engine, store, cfg.CourtTimezone, database.Retention{
			CauseLists: cfg.CauseListRetention,
			Logs:       cfg.LogRetention,
			FailedLogs: cfg.FailedLogRetention,
		}, log)
		scheduler := jobs.NewScheduler(log,
			jobs.Task{
				Name:  "daily_cause_lists",
				Every: cfg.CauseListRefreshEvery,
				Run: func(ctx context.Context) error {
					return runner.RefreshUpcoming(ctx, cfg.CauseListRefreshDays)
				},
			},
			jobs.Task{
				Name:  "cleanup",
				Every: cfg.CleanupEvery,
				Run: func(ctx context.Context) error {
					_, err := runner.Cleanup(ctx)
					return err
				},
			},
		)
		go scheduler.Run(ctx)
	}

	log.Info("Starting eCourts extractor",
		"host", cfg.Host,
		"port", cfg.Port,
		"portals", len(engine.Portals),
	)

	err = srv.Run()
	stop()
	if err != nil {
		log.Fatal("Server stopped", "error", err)
	}
}
