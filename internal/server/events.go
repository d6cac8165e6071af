package server

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/eventbus"
	"github.com/annel0/archipelo-server/internal/logging"
)

// Приоритеты доменных событий для back-pressure шины.
const (
	priorityMap      = 2
	priorityTeleport = 3
	prioritySession  = 5
	priorityDeath    = 7
)

const publishTimeout = 2 * time.Second

type domainEvent struct {
	eventType string
	priority  int
	payload   interface{}
}

// EventForwarder переносит события симуляции в шину событий. Поток симуляции
// только кладёт событие в буфер; публикацией занимается отдельная горутина.
type EventForwarder struct {
	pub    *eventbus.Publisher
	logger *logging.Logger
	queue  chan domainEvent

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	onDeath func(e *entity.Entity)
}

// NewEventForwarder создаёт пересыльщик с буфером capacity.
func NewEventForwarder(pub *eventbus.Publisher, capacity int, logger *logging.Logger) *EventForwarder {
	if logger == nil {
		logger = logging.GetServerLogger()
	}
	if capacity <= 0 {
		capacity = 1024
	}
	return &EventForwarder{pub: pub, logger: logger, queue: make(chan domainEvent, capacity)}
}

// Start запускает горутину публикации.
func (f *EventForwarder) Start() {
	f.wg.Add(1)
	go f.loop()
}

// Stop публикует оставшиеся события и останавливает горутину.
func (f *EventForwarder) Stop() {
	f.mu.Lock()
	if !f.stopped {
		f.stopped = true
		close(f.queue)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *EventForwarder) loop() {
	defer f.wg.Done()
	for ev := range f.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		f.pub.Publish(ctx, ev.eventType, ev.priority, ev.payload)
		cancel()
	}
}

func (f *EventForwarder) enqueue(eventType string, priority int, payload interface{}) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.stopped {
		return
	}
	select {
	case f.queue <- domainEvent{eventType: eventType, priority: priority, payload: payload}:
	default:
		f.logger.Warn("Буфер событий переполнен, %s отброшено", eventType)
	}
}

// EntityDied реализует entity.Listener.
func (f *EventForwarder) EntityDied(e *entity.Entity, cause *entity.Entity) {
	payload := eventbus.EntityDied{
		Entity: e.Name(),
		Type:   e.Type().ID,
		Map:    e.Location().MapName(),
		X:      e.Position().X,
		Y:      e.Position().Y,
	}
	if cause != nil {
		payload.Cause = cause.Name()
	}
	f.enqueue(eventbus.TypeEntityDied, priorityDeath, payload)
	if f.onDeath != nil {
		f.onDeath(e)
	}
}

// EntityTeleported реализует entity.Listener.
func (f *EventForwarder) EntityTeleported(e *entity.Entity, fromMap string, mapChanged bool) {
	f.enqueue(eventbus.TypeEntityTeleported, priorityTeleport, eventbus.EntityTeleported{
		Entity:     e.Name(),
		FromMap:    fromMap,
		ToMap:      e.Location().MapName(),
		X:          e.Position().X,
		Y:          e.Position().Y,
		MapChanged: mapChanged,
	})
}

// MapLoaded реализует world.MapListener.
func (f *EventForwarder) MapLoaded(name string, entities int) {
	f.enqueue(eventbus.TypeMapLoaded, priorityMap, eventbus.MapEvent{Map: name, Entities: entities})
}

// MapUnloaded реализует world.MapListener.
func (f *EventForwarder) MapUnloaded(name string) {
	f.enqueue(eventbus.TypeMapUnloaded, priorityMap, eventbus.MapEvent{Map: name})
}

func (f *EventForwarder) playerLoggedIn(account, session string) {
	f.enqueue(eventbus.TypePlayerLoggedIn, prioritySession, eventbus.PlayerSession{Account: account, Session: session})
}

func (f *EventForwarder) playerLoggedOut(account, session string) {
	f.enqueue(eventbus.TypePlayerLoggedOut, prioritySession, eventbus.PlayerSession{Account: account, Session: session})
}
