package eventbus

import (
	"fmt"
	"time"

	"github.com/annel0/archipelo-server/internal/config"
)

// DefaultMemoryCapacity буфер in-memory шины.
const DefaultMemoryCapacity = 1024

// Open создаёт шину по настройкам.
func Open(cfg config.EventBusConfig) (EventBus, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryBus(DefaultMemoryCapacity), nil
	case "jetstream":
		return NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	}
	return nil, fmt.Errorf("неизвестный eventbus backend %q", cfg.Backend)
}
