package entity

import (
	"time"

	"github.com/annel0/archipelo-server/internal/vec"
)

// CollisionRect прямоугольник коллизии в координатах карты.
type CollisionRect struct {
	Name string
	Rect vec.Rect
	Hard bool
}

func (e *Entity) rectsAt(pos vec.Vec2) []CollisionRect {
	out := make([]CollisionRect, len(e.typ.Collision))
	for i, def := range e.typ.Collision {
		out[i] = CollisionRect{Name: def.Name, Rect: def.Rect.Translate(pos), Hard: def.Hard}
	}
	return out
}

// CollisionRects прямоугольники коллизии в текущей позиции.
func (e *Entity) CollisionRects() []CollisionRect {
	return e.rectsAt(e.loc.Pos)
}

// CollisionRectsAt прямоугольники коллизии на момент at по журналу позиций.
// Для момента старше окна журнала или при пустом журнале используется текущая позиция.
func (e *Entity) CollisionRectsAt(at time.Time) []CollisionRect {
	if e.ctx.Now().Sub(at) > PositionLogWindow {
		return e.CollisionRects()
	}
	if pos, ok := e.log.PositionAt(at); ok {
		return e.rectsAt(pos)
	}
	return e.CollisionRects()
}

// IgnoreHardness true, если какой-либо модуль разрешает проходить сквозь rect сущности other.
func (e *Entity) IgnoreHardness(other *Entity, rect CollisionRect) bool {
	for _, c := range e.components {
		if o, ok := c.(HardnessOverrider); ok && o.IgnoreHardness(e, other, rect) {
			return true
		}
	}
	return false
}

// ViewRect область видимости сущности.
func (e *Entity) ViewRect() vec.Rect {
	return e.typ.View.Translate(e.loc.Pos)
}

// Center центр области видимости.
func (e *Entity) Center() vec.Vec2 {
	return e.ViewRect().Center()
}

// FootPosition точка опоры (куда указывает телепорт).
func (e *Entity) FootPosition() vec.Vec2 {
	return e.loc.Pos.Add(e.typ.FootstepOffset)
}

// HeadPosition верх головы, используется для всплывающих эффектов.
func (e *Entity) HeadPosition() vec.Vec2 {
	return e.loc.Pos.Add(e.typ.HeadOffset)
}
