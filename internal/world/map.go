package world

import (
	"time"

	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/snapshot"
	"github.com/annel0/archipelo-server/internal/vec"
)

// Map загруженная карта: сущности в порядке добавления.
type Map struct {
	name     string
	world    *World
	entities []*entity.Entity
}

func newMap(w *World, name string) *Map {
	return &Map{name: name, world: w}
}

func (m *Map) Name() string { return m.name }

// Entities копия списка сущностей.
func (m *Map) Entities() []*entity.Entity {
	out := make([]*entity.Entity, len(m.entities))
	copy(out, m.entities)
	return out
}

// Entity сущность карты по имени.
func (m *Map) Entity(name string) (*entity.Entity, bool) {
	for _, e := range m.entities {
		if e.Name() == name {
			return e, true
		}
	}
	return nil, false
}

// AddEntity регистрирует сущность: существующие наблюдатели получают её полный снимок,
// а новый наблюдатель получает полные снимки всех сущностей карты.
func (m *Map) AddEntity(e *entity.Entity) {
	for _, x := range m.entities {
		if x == e {
			return
		}
	}
	m.entities = append(m.entities, e)
	m.world.names[e.Name()] = e

	add := &protocol.EntityAdd{Snapshot: e.FullSnapshot()}
	for _, x := range m.entities {
		if x == e {
			continue
		}
		if obs, ok := x.Observer(); ok {
			obs.SendPacket(add)
		}
	}

	if obs, ok := e.Observer(); ok {
		for _, x := range m.entities {
			obs.SendPacket(&protocol.EntityAdd{Snapshot: x.FullSnapshot()})
		}
	}
}

// RemoveEntity снимает сущность с карты и сообщает об этом оставшимся наблюдателям.
func (m *Map) RemoveEntity(e *entity.Entity) {
	idx := -1
	for i, x := range m.entities {
		if x == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	m.entities = append(m.entities[:idx], m.entities[idx+1:]...)

	// при телепорте сущность уже принадлежит другой карте и остаётся в индексе
	if e.Map() == entity.Map(m) || e.IsRemoved() {
		if m.world.names[e.Name()] == e {
			delete(m.world.names, e.Name())
		}
	}

	m.Broadcast(&protocol.EntityRemove{Name: e.Name()})
}

// Observers наблюдатели (игроки) на карте.
func (m *Map) Observers() []entity.Observer {
	var out []entity.Observer
	for _, e := range m.entities {
		if obs, ok := e.Observer(); ok {
			out = append(out, obs)
		}
	}
	return out
}

// Broadcast отправляет пакет всем наблюдателям карты.
func (m *Map) Broadcast(p protocol.Packet) {
	for _, obs := range m.Observers() {
		obs.SendPacket(p)
	}
}

// SpawnParticles рассылает эффект частиц.
func (m *Map) SpawnParticles(kind string, at vec.Vec2, amount int) {
	m.Broadcast(&protocol.Particles{Kind: kind, X: at.X, Y: at.Y, Amount: amount})
}

// broadcastWorldSnapshot отправляет интерполяцию и накопленные изменения
// всех сущностей карты, после чего очищает изменения.
func (m *Map) broadcastWorldSnapshot(now time.Time) {
	packet := &protocol.WorldSnapshot{Map: m.name, Time: now.UnixMilli()}
	for _, e := range m.entities {
		packet.Interp = append(packet.Interp, e.InterpSnapshot())
		if ch := e.ChangesSnapshot(); ch != nil {
			packet.Changes = append(packet.Changes, ch)
		}
	}

	observers := m.Observers()
	if len(observers) > 0 && len(packet.Interp) > 0 {
		for _, obs := range observers {
			obs.SendPacket(packet)
		}
	}

	for _, e := range m.entities {
		e.ClearChanges()
	}
}

// FullSnapshots полные снимки всех сущностей карты.
func (m *Map) FullSnapshots() []*snapshot.Snapshot {
	out := make([]*snapshot.Snapshot, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e.FullSnapshot())
	}
	return out
}
