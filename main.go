package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duskhaven/economy/api"
	"github.com/duskhaven/economy/archive"
	"github.com/duskhaven/economy/database"
	"github.com/duskhaven/economy/database/repositories"
	"github.com/duskhaven/economy/economy"
	"github.com/duskhaven/economy/economy/interfaces"
	"github.com/duskhaven/economy/logger"
	"github.com/duskhaven/economy/market"
	"github.com/duskhaven/economy/migration"
	"github.com/duskhaven/economy/notifier"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	shouldImportLegacy := flag.Bool("import-legacy", false, "Import participant profiles from the legacy database on startup")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := economy.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	customHandler := logger.NewHandler(cfg.Log.Level)
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting Duskhaven Economy Director",
		slog.String("version", version),
		slog.String("commit", commit))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	ledger := repositories.NewLedgerRepository(db.BunDB())
	history := repositories.NewHistoryRepository(db.BunDB())
	board := market.NewPriceBoard()

	var sink interfaces.Notifier
	if cfg.Notify.WebhookID != 0 {
		sink = notifier.NewDiscordSink(cfg.Notify.WebhookID, cfg.Notify.WebhookToken)
		slog.Info("Discord notifications enabled",
			slog.String("webhook_id", cfg.Notify.WebhookID.String()))
	} else {
		sink = notifier.LogSink{}
	}

	director := economy.NewDirector(*cfg, *path, economy.Deps{
		Ledger:   ledger,
		Market:   board,
		Notifier: sink,
		Archiver: history,
	})

	if *shouldImportLegacy {
		slog.Info("Importing legacy participant profiles...")
		importer := migration.NewImporter(cfg.Legacy.MongoURI, cfg.Legacy.Database, cfg.Legacy.Collection)
		imported, err := importer.Run(ctx, director.Profiler())
		if err != nil {
			slog.Error("Legacy profile import failed",
				slog.Any("error", err),
				slog.Int("imported", imported))
			os.Exit(-1)
		}
	}

	if cfg.Archive.Bucket != "" {
		exporter, err := archive.NewSpacesExporter(ctx,
			cfg.Archive.Key, cfg.Archive.Secret, cfg.Archive.Region,
			cfg.Archive.Endpoint, cfg.Archive.Bucket)
		if err != nil {
			slog.Error("Failed to initialize snapshot exporter", slog.Any("error", err))
			os.Exit(-1)
		}
		director.SetExporter(exporter)
		slog.Info("Snapshot export enabled", slog.String("bucket", cfg.Archive.Bucket))
	}

	director.Start()
	defer director.Stop()

	var httpServer *http.Server
	if cfg.API.Listen != "" {
		srv := api.New(director, slog.Default())
		httpServer = &http.Server{
			Addr:         cfg.API.Listen,
			Handler:      srv.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			slog.Info("Admin API listening", slog.String("addr", cfg.API.Listen))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Admin API server failed", slog.Any("error", err))
			}
		}()
	}

	slog.Info("Economy director is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Admin API shutdown failed", slog.Any("error", err))
		}
	}
}
