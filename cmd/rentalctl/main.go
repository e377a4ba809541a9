package main

import (
	"context"
	"fmt"
	"os"

	"agri_rental/internal/bootstrap"
	"agri_rental/internal/infra/config"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/logger"
)

func main() {
	root := newRootCmd(openPostgres, os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openPostgres loads configuration from the environment, connects to the
// database and builds the services.
func openPostgres(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg)

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	services, err := bootstrap.Services(db, cfg, logger.Log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &runtime{db: db, services: services, debug: cfg.Debug}, nil
}
