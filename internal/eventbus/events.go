package eventbus

import (
	"context"

	"github.com/annel0/archipelo-server/internal/logging"
)

// Типы доменных событий сервера.
const (
	TypeEntityDied       = "EntityDied"
	TypeEntityTeleported = "EntityTeleported"
	TypePlayerLoggedIn   = "PlayerLoggedIn"
	TypePlayerLoggedOut  = "PlayerLoggedOut"
	TypeMapLoaded        = "MapLoaded"
	TypeMapUnloaded      = "MapUnloaded"
)

// EntityDied сущность погибла и удалена из мира.
type EntityDied struct {
	Entity string  `json:"entity"`
	Type   string  `json:"type"`
	Map    string  `json:"map"`
	Cause  string  `json:"cause,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// EntityTeleported сущность перемещена телепортом.
type EntityTeleported struct {
	Entity     string  `json:"entity"`
	FromMap    string  `json:"from_map"`
	ToMap      string  `json:"to_map"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	MapChanged bool    `json:"map_changed"`
}

// PlayerSession вход или выход игрока.
type PlayerSession struct {
	Account string `json:"account"`
	Session string `json:"session"`
}

// MapEvent загрузка или выгрузка карты.
type MapEvent struct {
	Map      string `json:"map"`
	Entities int    `json:"entities"`
}

// Publisher упаковывает доменные события в конверты и публикует их.
// Ошибки публикации только логируются: шина не влияет на симуляцию.
type Publisher struct {
	bus    EventBus
	source string
	logger *logging.Logger
}

func NewPublisher(bus EventBus, source string, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.GetComponentLogger(logging.ComponentEvents)
	}
	return &Publisher{bus: bus, source: source, logger: logger}
}

// Publish публикует событие с приоритетом priority.
func (p *Publisher) Publish(ctx context.Context, eventType string, priority int, payload interface{}) {
	if p == nil || p.bus == nil {
		return
	}
	ev, err := NewEnvelope(p.source, eventType, priority, payload)
	if err != nil {
		p.logger.Error("Не удалось упаковать событие %s: %v", eventType, err)
		return
	}
	if err := p.bus.Publish(ctx, ev); err != nil {
		p.logger.Warn("Не удалось опубликовать событие %s: %v", eventType, err)
	}
}
