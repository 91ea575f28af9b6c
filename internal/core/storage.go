package core

import (
	"context"
	"fmt"
	"occupancy/internal/infra/persistence/memory"
	"occupancy/internal/infra/persistence/postgres"
	"occupancy/internal/infra/persistence/sqlite"
	"occupancy/pkg/domain"
	"strings"
	"time"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// ParseStorageDriver validates a configured driver name; empty selects sqlite.
func ParseStorageDriver(raw string) (StorageDriver, error) {
	switch d := StorageDriver(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return StorageSQLite, nil
	case StorageMemory, StorageSQLite, StoragePostgres:
		return d, nil
	default:
		return "", fmt.Errorf("unknown storage driver %s", raw)
	}
}

// StorageConfig selects and locates the backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	// Location decides the calendar date of link start and end dates; nil means UTC.
	Location    *time.Location
}

// OpenPersistentStore opens the configured backend with engine evaluating
// every commit. The returned function releases the backend.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *domain.RulesEngine) (domain.PersistentStore, func() error, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	opts := []memory.Option{memory.WithLocation(cfg.Location)}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine, opts...), func() error { return nil }, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
