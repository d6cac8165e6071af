package auth

import (
	"context"
	"fmt"

	"github.com/annel0/archipelo-server/internal/config"
)

// OpenRepository создаёт репозиторий пользователей по настройкам.
// Память засевается тестовым игроком и администратором.
func OpenRepository(ctx context.Context, cfg config.AuthConfig) (UserRepository, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewSeededMemoryUserRepo()
	case "maria":
		return NewMariaUserRepo(ctx, cfg.MariaDSN)
	case "mongo":
		return NewMongoUserRepo(ctx, MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB})
	}
	return nil, fmt.Errorf("неизвестный auth backend %q", cfg.Backend)
}
