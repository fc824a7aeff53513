package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lucasuchoa98/geedar/services/sync/internal/config"
	"github.com/lucasuchoa98/geedar/services/sync/internal/engine"
	"github.com/lucasuchoa98/geedar/services/sync/internal/estimation"
	"github.com/lucasuchoa98/geedar/services/sync/internal/executor"
	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/provider"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
	"github.com/lucasuchoa98/geedar/services/sync/internal/store"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("sync failed: %v", err)
	}
}

func run() error {
	modeFlag := flag.String("mode", "update", "run mode: update, overwrite or estimation")
	initFlag := flag.Bool("init", false, "create the database schema and exit")
	flag.Parse()

	mode, err := parseMode(*modeFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if *initFlag {
		if err := st.CreateSchema(ctx); err != nil {
			return err
		}
		log.Printf("database schema created")
		return nil
	}

	if err := st.CheckSchema(ctx); err != nil {
		return err
	}

	settings, err := st.LoadAppSettings(ctx)
	if err != nil {
		return err
	}
	runCount := settings.RunCount + 1
	if err := st.BumpRun(ctx, version, runCount); err != nil {
		return err
	}
	if err := st.SyncReferenceTables(ctx); err != nil {
		return err
	}

	logPath := filepath.Join(cfg.DataDir, settings.LogFile)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	rep := report.New(logFile)

	client := &http.Client{Timeout: cfg.RequestTimeout}
	prov := provider.NewClient(client, cfg.ProviderURL)
	exec := executor.New(prov, rep, cfg.RetryDelay)
	est := estimation.New(st, rep)

	eng := engine.New(st, prov, exec, est, rep, engine.Config{
		KMLDir:        filepath.Join(cfg.DataDir, settings.KMLSubdir),
		MaxProcPixels: cfg.MaxProcPixels,
		DryRun:        cfg.DryRun,
	})

	log.Printf("starting %s run %d (dry-run=%v)", mode, runCount, cfg.DryRun)
	if err := eng.Run(ctx, mode); err != nil {
		return err
	}

	if rep.Failed() {
		log.Printf("(!) one or more errors occurred; check the log file (%s)", logPath)
	}
	log.Printf("processing finished")
	return nil
}

func parseMode(s string) (models.RunMode, error) {
	switch s {
	case "update":
		return models.ModeUpdate, nil
	case "overwrite":
		return models.ModeOverwrite, nil
	case "estimation":
		return models.ModeEstimation, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want update, overwrite or estimation)", s)
}
