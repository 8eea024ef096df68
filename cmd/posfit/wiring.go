package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/okian/posfit/internal/adapters/repository"
	"github.com/okian/posfit/internal/adapters/source"
	service "github.com/okian/posfit/internal/app"
	"github.com/okian/posfit/internal/config"
	"github.com/okian/posfit/internal/domain/reference"
	"github.com/okian/posfit/internal/domain/scoring"
	"github.com/okian/posfit/pkg/logger"
	"github.com/okian/posfit/pkg/metrics"
)

var errNoDatabase = errors.New("database.driver is not configured")

// loadReference picks the reference table source from configuration.
func loadReference(ctx context.Context, cfg config.ReferenceConfig) (*reference.Table, reference.LoadReport, error) {
	switch {
	case cfg.Path != "":
		return reference.LoadFile(cfg.Path)
	case cfg.CSVDir != "":
		opts := []reference.CSVOption{
			reference.WithPositiveOnly(cfg.PositiveOnly),
			reference.WithTopN(cfg.TopN),
		}
		if cfg.Population != "" {
			players, err := source.NewCSVSource(cfg.Population).Players(ctx)
			if err != nil {
				return nil, reference.LoadReport{}, fmt.Errorf("read reference population: %w", err)
			}
			opts = append(opts, reference.WithPopulation(players))
		}
		return reference.LoadCSVDir(cfg.CSVDir, opts...)
	default:
		return reference.Default()
	}
}

func dbConfig(cfg config.DatabaseConfig) repository.DBConfig {
	return repository.DBConfig{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
}

// openDatabase connects and, when configured, brings the schema up to date.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.Driver == "" {
		return nil, errNoDatabase
	}
	db, err := repository.Open(ctx, dbConfig(cfg))
	if err != nil {
		return nil, err
	}
	if !cfg.AutoMigrate {
		return db, nil
	}

	if cfg.Driver == repository.DriverSQLite && cfg.DSN == ":memory:" {
		err = repository.ApplySchema(ctx, db, cfg.Driver)
	} else {
		err = repository.Migrate(cfg.Driver, cfg.DSN)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// components are the pieces a subcommand needs; close releases them.
type components struct {
	svc *service.Service
	db  *sqlx.DB
}

func (c *components) close() {
	// the SQL store owns db and closes it on Stop
	c.svc.Stop()
}

// buildService loads the reference table, builds the scorer, picks the result
// store and starts the service.
func buildService(ctx context.Context, cfg *config.Config) (*components, error) {
	log := logger.Get()

	table, report, err := loadReference(ctx, cfg.Reference)
	if err != nil {
		return nil, fmt.Errorf("load reference: %w", err)
	}
	for _, w := range report.Warnings {
		log.Warn(ctx, "reference warning", logger.String("warning", w))
	}
	metrics.RecordReferenceWarnings(len(report.Warnings))

	var scorerOpts []scoring.Option
	if cfg.Goalkeeper.Enabled {
		scorerOpts = append(scorerOpts, scoring.WithGoalkeeper(scoring.NewGoalkeeperScorer()))
	}
	scorer, err := scoring.NewScorer(table, scorerOpts...)
	if err != nil {
		return nil, fmt.Errorf("create scorer: %w", err)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithReferenceReport(report),
	}

	var db *sqlx.DB
	if cfg.Database.Driver != "" {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store := repository.NewSQLStore(db,
			repository.WithQueryTimeout(cfg.Database.QueryTimeout),
			repository.WithSQLLogger(log.Named("store")),
		)
		opts = append(opts, service.WithStore(store))
	}

	svc, err := service.New(scorer, opts...)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	return &components{svc: svc, db: db}, nil
}
