package core

import (
	"context"
	"fmt"

	"schoolcore/internal/infra/persistence/dynamo"
	"schoolcore/internal/infra/persistence/memory"
	"schoolcore/internal/infra/persistence/mysql"
	"schoolcore/internal/infra/persistence/postgres"
	"schoolcore/internal/infra/persistence/sqlite"
	"schoolcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMySQL    StorageDriver = "mysql"    // MySQL / MariaDB server
	StorageDynamo   StorageDriver = "dynamo"   // DynamoDB single table
)

// StorageConfig selects and configures the backend. Empty values fall back
// to each backend's default.
type StorageConfig struct {
	Driver         StorageDriver `yaml:"driver"`
	SQLitePath     string        `yaml:"sqlite_path"`
	PostgresDSN    string        `yaml:"postgres_dsn"`
	MySQLDSN       string        `yaml:"mysql_dsn"`
	DynamoTable    string        `yaml:"dynamo_table"`
	DynamoRegion   string        `yaml:"dynamo_region"`
	DynamoEndpoint string        `yaml:"dynamo_endpoint"`
}

// OpenPersistentStore opens the backend named by cfg.Driver, sqlite when unset.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageMySQL:
		store, err := mysql.NewStore(cfg.MySQLDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageDynamo:
		client, err := dynamo.NewClient(ctx, dynamo.ClientConfig{Region: cfg.DynamoRegion, Endpoint: cfg.DynamoEndpoint})
		if err != nil {
			return nil, domain.StorageUnavailable("dynamo client", err)
		}
		store, err := dynamo.NewStore(ctx, client, cfg.DynamoTable, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, domain.InvalidInput("", fmt.Sprintf("unknown storage driver %s", driver))
	}
}
