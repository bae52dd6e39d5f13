package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benedict431app/PharmacyOS/internal/infrastructure/config"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/logger"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/seed"
	"go.uber.org/zap"
)

func main() {
	var path string
	flag.StringVar(&path, "drugs", "", "Drug catalog CSV (name, generic_name, manufacturer, price, reorder_level)")
	flag.Parse()

	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: seed -drugs catalog.csv")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.ConfigForEnvironment(cfg.App.Env, cfg.Log.Level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	f, err := os.Open(path)
	if err != nil {
		log.Fatal("Failed to open drug catalog", zap.String("path", path), zap.Error(err))
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := seed.LoadDrugs(ctx, db.DB, f)
	if err != nil {
		var verr *seed.ValidationError
		if errors.As(err, &verr) {
			for _, row := range verr.Rows {
				log.Error("Invalid catalog row", zap.Int("line", row.Line), zap.String("column", row.Column), zap.String("reason", row.Message))
			}
		}
		log.Fatal("Drug catalog load failed", zap.Error(err))
	}

	log.Info("Drug catalog loaded",
		zap.String("path", path),
		zap.Int("rows", result.Rows),
		zap.Int("inserted", result.Inserted),
		zap.Strings("skipped", result.Skipped),
	)
}
