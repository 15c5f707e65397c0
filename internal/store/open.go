package store

import (
	"context"
	"fmt"

	"github.com/zhouzirui/mentor-relay/backend/internal/config"
)

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case config.DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
