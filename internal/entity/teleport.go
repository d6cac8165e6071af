package entity

import (
	"context"

	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/vec"
)

// TeleportFailedMessage текст всплывающего окна игроку при неудачном телепорте.
const TeleportFailedMessage = "Unable to teleport."

// Teleport переносит сущность так, чтобы её точка опоры оказалась в pos.
// Возвращает false, если телепорт отменён хуком или карта назначения недоступна.
func (e *Entity) Teleport(pos vec.Vec2, dir Direction, mapName string) bool {
	if e.removed {
		return false
	}

	ev := &TeleportEvent{Entity: e, Pos: pos, Direction: dir, Map: mapName}
	if e.ctx.Hooks.Teleport.Trigger(ev) {
		return false
	}

	src := e.loc.Map
	srcName := e.loc.MapName()
	dest := src
	// сущность без карты всегда ищет карту назначения
	mapChanged := src == nil || ev.Map != srcName

	if mapChanged {
		var ok bool
		dest, ok = e.resolveMap(ev.Map)
		if !ok || dest == nil {
			if obs, isPlayer := e.Observer(); isPlayer {
				obs.SendPacket(&protocol.PopupText{Message: TeleportFailedMessage, Severity: protocol.SeverityError})
			} else {
				e.ctx.Logger.Caution("Сущность %s: не удалось загрузить карту %s для телепорта", e.name, ev.Map)
			}
			return false
		}
	}

	if !ev.Direction.Valid() {
		ev.Direction = e.loc.Direction
	}
	e.loc = Location{Map: dest, Pos: ev.Pos.Sub(e.typ.FootstepOffset), Direction: ev.Direction}

	if mapChanged {
		// сначала регистрация на новой карте, затем снятие со старой
		dest.AddEntity(e)
		if src != nil {
			src.RemoveEntity(e)
		}
	}

	packet := &protocol.Teleport{
		Name:       e.name,
		X:          e.loc.Pos.X,
		Y:          e.loc.Pos.Y,
		Direction:  int(e.loc.Direction),
		MapChanged: mapChanged,
	}
	for _, obs := range dest.Observers() {
		obs.SendPacket(packet)
	}

	e.log.Clear()
	e.ClearChanges()
	if e.ctx.Listener != nil {
		e.ctx.Listener.EntityTeleported(e, srcName, mapChanged)
	}
	return true
}

func (e *Entity) resolveMap(name string) (Map, bool) {
	if e.ctx.Maps == nil {
		return nil, false
	}
	if !e.ctx.Maps.IsMapLoaded(name) {
		if err := e.ctx.Maps.LoadMap(context.Background(), name); err != nil {
			e.ctx.Logger.Error("Загрузка карты %s: %v", name, err)
			return nil, false
		}
	}
	return e.ctx.Maps.Map(name)
}

// TeleportTo телепорт в точку на текущей карте с сохранением направления.
func (e *Entity) TeleportTo(pos vec.Vec2) bool {
	return e.Teleport(pos, e.loc.Direction, e.loc.MapName())
}

// TeleportDir телепорт на текущей карте с новым направлением.
func (e *Entity) TeleportDir(pos vec.Vec2, dir Direction) bool {
	return e.Teleport(pos, dir, e.loc.MapName())
}

// TeleportToLocation телепорт в точку на карте с её именем.
func (e *Entity) TeleportToLocation(loc Location) bool {
	return e.Teleport(loc.Pos, loc.Direction, loc.MapName())
}

// TeleportToEntity ставит сущность на точку опоры другой сущности.
func (e *Entity) TeleportToEntity(other *Entity) bool {
	return e.Teleport(other.FootPosition(), e.loc.Direction, other.loc.MapName())
}
