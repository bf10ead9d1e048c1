package database

import (
	"fmt"

	"notification-relay/internal/config"
)

// Open constructs the configured Store backend.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres":
		return NewPostgresStore(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
