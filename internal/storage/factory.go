package storage

import (
	"context"
	"fmt"

	"github.com/annel0/archipelo-server/internal/config"
)

// Open создаёт хранилище по конфигурации.
func Open(ctx context.Context, cfg config.StorageConfig) (SnapshotStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "badger":
		if cfg.BadgerPath == "" {
			return nil, fmt.Errorf("storage.badger_path не задан")
		}
		return NewBadgerStore(cfg.BadgerPath)
	case "redis":
		rc := DefaultRedisConfig()
		if cfg.RedisAddr != "" {
			rc.Addr = cfg.RedisAddr
		}
		rc.DB = cfg.RedisDB
		return NewRedisStore(ctx, rc)
	case "mongo":
		return NewMongoStore(ctx, MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB})
	}
	return nil, fmt.Errorf("неизвестный backend хранилища %q", cfg.Backend)
}
