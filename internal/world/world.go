// Package world владеет картами и сущностями и выполняет проходы симуляции.
package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/snapshot"
	"github.com/annel0/archipelo-server/internal/storage"
	"github.com/annel0/archipelo-server/internal/vec"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrMapNotFound  = errors.New("карта не найдена")
	ErrNameTaken    = errors.New("имя сущности уже занято")
	ErrUnknownType  = errors.New("неизвестный тип сущности")
	ErrMapHasPlayer = errors.New("на карте есть игроки")
)

var tracer = otel.Tracer("github.com/annel0/archipelo-server/internal/world")

// Archetype как собирать сущность типа при загрузке из хранилища.
type Archetype struct {
	Behavior   func() entity.Behavior
	Components func() []entity.Component
}

// MapListener узнаёт о загрузке и выгрузке карт. Вызывается в потоке симуляции.
type MapListener interface {
	MapLoaded(name string, entities int)
	MapUnloaded(name string)
}

// World реестр карт и сущностей. Все изменения выполняются в потоке симуляции;
// мьютекс защищает только списки карт для чтения из других горутин.
type World struct {
	mu     sync.RWMutex
	known  map[string]bool
	maps   map[string]*Map
	order  []string
	names  map[string]*entity.Entity
	ctx    *entity.Context
	types  *entity.TypeRegistry
	store  storage.SnapshotStore
	logger *logging.Logger

	archetypes  map[string]Archetype
	mapListener MapListener
}

// New создаёт мир с известными картами knownMaps. store может быть nil.
func New(types *entity.TypeRegistry, store storage.SnapshotStore, knownMaps []string, logger *logging.Logger) *World {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	w := &World{
		known:      make(map[string]bool, len(knownMaps)),
		maps:       make(map[string]*Map),
		names:      make(map[string]*entity.Entity),
		types:      types,
		store:      store,
		logger:     logger,
		archetypes: make(map[string]Archetype),
	}
	for _, m := range knownMaps {
		w.known[m] = true
	}
	w.ctx = entity.NewContext(w, logger)
	return w
}

// Context контекст сущностей мира (хуки, реестр карт, логгер).
func (w *World) Context() *entity.Context { return w.ctx }

func (w *World) Types() *entity.TypeRegistry { return w.types }

// SetMapListener задаёт получателя уведомлений о картах.
func (w *World) SetMapListener(l MapListener) { w.mapListener = l }

// RegisterArchetype задаёт поведение и модули для сущностей типа typeID.
func (w *World) RegisterArchetype(typeID string, a Archetype) {
	w.archetypes[typeID] = a
}

// IsMapLoaded реализует entity.MapRegistry.
func (w *World) IsMapLoaded(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.maps[name]
	return ok
}

// Map реализует entity.MapRegistry.
func (w *World) Map(name string) (entity.Map, bool) {
	m, ok := w.GetMap(name)
	if !ok {
		return nil, false
	}
	return m, true
}

// GetMap возвращает загруженную карту.
func (w *World) GetMap(name string) (*Map, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, ok := w.maps[name]
	return m, ok
}

// MapNames имена загруженных карт в порядке загрузки.
func (w *World) MapNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// KnownMaps все карты, которые можно загрузить.
func (w *World) KnownMaps() []string {
	out := make([]string, 0, len(w.known))
	for name := range w.known {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadMap загружает карту и её сохранённые сущности. Повторная загрузка ничего не делает.
func (w *World) LoadMap(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "world.LoadMap")
	span.SetAttributes(attribute.String("map", name))
	defer span.End()

	if w.IsMapLoaded(name) {
		return nil
	}
	if !w.known[name] {
		span.SetStatus(codes.Error, "unknown map")
		return fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}

	var records []storage.Record
	if w.store != nil {
		var err error
		records, err = w.store.LoadMap(ctx, name)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("загрузка сущностей карты %s: %w", name, err)
		}
	}

	m := newMap(w, name)
	w.mu.Lock()
	w.maps[name] = m
	w.order = append(w.order, name)
	w.mu.Unlock()

	restored := 0
	for _, rec := range records {
		if _, err := w.restore(m, rec, nil); err != nil {
			w.logger.Caution("Карта %s: сущность %s пропущена: %v", name, rec.Name, err)
			continue
		}
		restored++
	}
	span.SetAttributes(attribute.Int("entities", restored))
	w.logger.Info("Карта %s загружена, сущностей: %d", name, restored)
	if w.mapListener != nil {
		w.mapListener.MapLoaded(name, restored)
	}
	return nil
}

// restore восстанавливает сущность из записи на карте m.
func (w *World) restore(m *Map, rec storage.Record, behavior entity.Behavior) (*entity.Entity, error) {
	typ, ok := w.types.Get(rec.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, rec.Type)
	}
	if _, taken := w.names[rec.Name]; taken {
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, rec.Name)
	}
	snap := rec.Snapshot
	if snap == nil {
		snap = snapshot.New()
	}
	arch := w.archetypes[rec.Type]
	if behavior == nil && arch.Behavior != nil {
		behavior = arch.Behavior()
	}

	e := entity.FromSnapshot(w.ctx, typ, rec.Name, behavior, entity.Location{Map: m}, snap)
	if arch.Components != nil {
		for _, c := range arch.Components() {
			e.AddComponent(c, snap)
		}
	}
	m.AddEntity(e)
	return e, nil
}

// Spawn создаёт новую сущность на карте, загружая карту при необходимости.
func (w *World) Spawn(ctx context.Context, typeID, name, mapName string, pos vec.Vec2, dir entity.Direction, behavior entity.Behavior) (*entity.Entity, error) {
	typ, ok := w.types.Get(typeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	if _, taken := w.names[name]; taken {
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	if err := w.LoadMap(ctx, mapName); err != nil {
		return nil, err
	}
	m, _ := w.GetMap(mapName)

	arch := w.archetypes[typeID]
	if behavior == nil && arch.Behavior != nil {
		behavior = arch.Behavior()
	}
	e := entity.New(w.ctx, typ, name, behavior, entity.Location{Map: m, Pos: pos, Direction: dir})
	if arch.Components != nil {
		for _, c := range arch.Components() {
			e.AddComponent(c, nil)
		}
	}
	m.AddEntity(e)
	return e, nil
}

// Restore помещает сохранённую сущность на карту из поля "map" снимка или на fallbackMap.
func (w *World) Restore(ctx context.Context, rec storage.Record, fallbackMap string, behavior entity.Behavior) (*entity.Entity, error) {
	mapName := fallbackMap
	if rec.Snapshot != nil {
		if saved := rec.Snapshot.String("map", ""); saved != "" && w.known[saved] {
			mapName = saved
		}
	}
	if err := w.LoadMap(ctx, mapName); err != nil {
		return nil, err
	}
	m, _ := w.GetMap(mapName)
	return w.restore(m, rec, behavior)
}

// Entity ищет сущность по имени во всём мире.
func (w *World) Entity(name string) (*entity.Entity, bool) {
	e, ok := w.names[name]
	return e, ok
}

// entitiesSnapshot список сущностей всех карт на начало прохода.
func (w *World) entitiesSnapshot() []*entity.Entity {
	var all []*entity.Entity
	for _, name := range w.MapNames() {
		if m, ok := w.GetMap(name); ok {
			all = append(all, m.entities...)
		}
	}
	return all
}

// TickHigh быстрый проход по всем сущностям.
func (w *World) TickHigh(now time.Time) {
	for _, e := range w.entitiesSnapshot() {
		if !e.IsRemoved() {
			e.TickHigh(now)
		}
	}
}

// TickLow медленный проход и рассылка снимков мира наблюдателям.
func (w *World) TickLow(now time.Time) {
	for _, e := range w.entitiesSnapshot() {
		if !e.IsRemoved() {
			e.TickLow(now)
		}
	}
	for _, name := range w.MapNames() {
		if m, ok := w.GetMap(name); ok {
			m.broadcastWorldSnapshot(now)
		}
	}
}

// records постоянные снимки всех сущностей карты, кроме игроков.
func (m *Map) records() []storage.Record {
	var out []storage.Record
	for _, e := range m.entities {
		if e.IsPlayer() {
			continue
		}
		out = append(out, storage.Record{Name: e.Name(), Type: e.Type().ID, Snapshot: e.PersistentSnapshot()})
	}
	return out
}

// SaveMap сохраняет сущности карты.
func (w *World) SaveMap(ctx context.Context, name string) error {
	m, ok := w.GetMap(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}
	if w.store == nil {
		return nil
	}
	if err := w.store.SaveMap(ctx, name, m.records()); err != nil {
		return fmt.Errorf("сохранение карты %s: %w", name, err)
	}
	return nil
}

// SaveAll сохраняет все загруженные карты; возвращает первую ошибку.
func (w *World) SaveAll(ctx context.Context) error {
	var firstErr error
	for _, name := range w.MapNames() {
		if err := w.SaveMap(ctx, name); err != nil {
			w.logger.Error("%v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// UnloadMap сохраняет и выгружает карту без игроков.
func (w *World) UnloadMap(ctx context.Context, name string) error {
	m, ok := w.GetMap(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}
	if len(m.Observers()) > 0 {
		return fmt.Errorf("%w: %s", ErrMapHasPlayer, name)
	}
	if err := w.SaveMap(ctx, name); err != nil {
		return err
	}

	for _, e := range m.Entities() {
		e.Remove()
	}

	w.mu.Lock()
	delete(w.maps, name)
	for i, n := range w.order {
		if n == name {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.mu.Unlock()
	w.logger.Info("Карта %s выгружена", name)
	if w.mapListener != nil {
		w.mapListener.MapUnloaded(name)
	}
	return nil
}
