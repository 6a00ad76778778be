package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urbanisme-sn/portail/internal/config"
	"github.com/urbanisme-sn/portail/internal/db"
	"github.com/urbanisme-sn/portail/internal/logger"
	"github.com/urbanisme-sn/portail/internal/server"
)

// openApp loads the configuration and builds the application against its database, migrating it.
func openApp(ctx context.Context) (*server.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(os.Stderr, cfg.Log.Format, cfg.Log.Level, cfg.Location())
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = cfg.Log.Level
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return server.NewApp(ctx, cfg, database)
}
