package main

import (
	"context"
	"database/sql"
	"log/slog"

	"propnest/internal/comparables"
	"propnest/internal/fraud"
	httpapi "propnest/internal/http"
	"propnest/internal/lifecycle"
	listingservice "propnest/internal/listing/service"
	"propnest/internal/notification"
	nstore "propnest/internal/notification/store"
	"propnest/internal/platform/config"
	"propnest/internal/platform/postgres"
	pstore "propnest/internal/property/store"
	vservice "propnest/internal/verification/service"
	vstore "propnest/internal/verification/store"
)

// propertyStore is everything the engine needs from property persistence.
type propertyStore interface {
	listingservice.PropertyStore
	lifecycle.Store
	fraud.Store
	comparables.Source
}

type outboxStore interface {
	lifecycle.Outbox
	notification.Store
}

type stores struct {
	kind          string
	properties    propertyStore
	verifications vservice.Store
	outbox        outboxStore
	// tx is nil for the in-memory stores.
	tx     *postgres.TxRunner
	health map[string]httpapi.HealthCheck
	close  func()
}

// buildStores selects Postgres when DATABASE_URL is set and the in-memory
// stores otherwise.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*stores, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{
			kind:          "memory",
			properties:    pstore.NewInMemoryStore(),
			verifications: vstore.NewInMemoryStore(),
			outbox:        nstore.NewInMemoryStore(),
			health:        map[string]httpapi.HealthCheck{},
			close:         func() {},
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		kind:          "postgres",
		properties:    pstore.NewPostgres(db),
		verifications: vstore.NewPostgres(db),
		outbox:        nstore.NewPostgres(db),
		tx:            postgres.NewTxRunner(db),
		health: map[string]httpapi.HealthCheck{
			"postgres": db.PingContext,
		},
		close: func() { closeDB(db, log) },
	}, nil
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("failed to close database", "error", err)
	}
}
