// Package entity моделирует сущности мира: здоровье, стиль, положение,
// журнал позиций, модули возможностей и снимки состояния для клиентов.
package entity

import (
	"time"

	"github.com/annel0/archipelo-server/internal/snapshot"
	"github.com/annel0/archipelo-server/internal/vec"
)

// Location карта, позиция и направление сущности.
type Location struct {
	Map       Map
	Pos       vec.Vec2
	Direction Direction
}

// MapName имя карты или "" если карта не задана.
func (l Location) MapName() string {
	if l.Map == nil {
		return ""
	}
	return l.Map.Name()
}

// Entity сущность мира. Все методы вызываются только из потока симуляции.
type Entity struct {
	name     string
	typ      *Type
	ctx      *Context
	behavior Behavior

	components []Component

	style   int
	loc     Location
	health  float64
	speed   float64
	anim    Animator
	changes *snapshot.Snapshot
	log     *PositionLog

	lastLow time.Time
	removed bool
}

func newEntity(ctx *Context, typ *Type, name string, behavior Behavior, loc Location) *Entity {
	if behavior == nil {
		behavior = BaseBehavior{}
	}
	return &Entity{
		name:     name,
		typ:      typ,
		ctx:      ctx,
		behavior: behavior,
		loc:      loc,
		speed:    typ.Speed,
		anim:     Animator{ID: typ.DefaultAnimation},
		changes:  snapshot.New(),
		log:      NewPositionLog(),
	}
}

// New создаёт свежую сущность с полным здоровьем. На карту не добавляет.
func New(ctx *Context, typ *Type, name string, behavior Behavior, loc Location) *Entity {
	e := newEntity(ctx, typ, name, behavior, loc)
	e.health = typ.MaxHealth
	return e
}

// FromSnapshot восстанавливает сущность из сохранённого или полного снимка.
// Здоровье ограничивается максимумом типа, недопустимый стиль сбрасывается в 0.
// Карта берётся из loc; позиция и направление из снимка, при их отсутствии из loc.
func FromSnapshot(ctx *Context, typ *Type, name string, behavior Behavior, loc Location, s *snapshot.Snapshot) *Entity {
	e := newEntity(ctx, typ, name, behavior, loc)

	e.loc.Pos = s.Point("pos", loc.Pos)
	if d := Direction(s.Int("direction", int64(loc.Direction))); d.Valid() {
		e.loc.Direction = d
	} else {
		ctx.Logger.Caution("Сущность %s: недопустимое направление %d, используется %s", name, d, loc.Direction)
	}

	e.health = clamp(s.Float("health", typ.MaxHealth), 0, typ.MaxHealth)

	style := int(s.Int("style", 0))
	if style < 0 || style >= typ.Styles {
		ctx.Logger.Caution("Сущность %s типа %s: стиль %d вне диапазона [0,%d), сброшен в 0", name, typ.ID, style, typ.Styles)
		style = 0
	}
	e.style = style

	e.anim = animatorFromSnapshot(s.Nested("animation"), typ.DefaultAnimation)
	if _, ok := typ.Animations[e.anim.ID]; !ok && e.anim.ID != typ.DefaultAnimation {
		e.anim = Animator{ID: typ.DefaultAnimation}
	}
	return e
}

// AddComponent подключает модуль. Если модуль умеет загружать состояние, ему передаётся s.
func (e *Entity) AddComponent(c Component, s *snapshot.Snapshot) {
	e.components = append(e.components, c)
	if l, ok := c.(SnapshotLoader); ok && s != nil {
		l.LoadSnapshot(e, s)
	}
}

func (e *Entity) Name() string            { return e.name }
func (e *Entity) Type() *Type             { return e.typ }
func (e *Entity) Context() *Context       { return e.ctx }
func (e *Entity) Behavior() Behavior      { return e.behavior }
func (e *Entity) Components() []Component { return e.components }
func (e *Entity) Location() Location      { return e.loc }
func (e *Entity) Map() Map                { return e.loc.Map }
func (e *Entity) Position() vec.Vec2      { return e.loc.Pos }
func (e *Entity) Direction() Direction    { return e.loc.Direction }
func (e *Entity) Health() float64         { return e.health }
func (e *Entity) Style() int              { return e.style }
func (e *Entity) Speed() float64          { return e.speed }
func (e *Entity) Log() *PositionLog       { return e.log }
func (e *Entity) IsRemoved() bool         { return e.removed }

// Changes накопитель изменений. Модули могут дописывать в него свои поля.
func (e *Entity) Changes() *snapshot.Snapshot { return e.changes }

// ClearChanges сбрасывает накопитель после рассылки.
func (e *Entity) ClearChanges() { e.changes.Clear() }

// Observer возвращает наблюдателя, если сущность управляется игроком.
func (e *Entity) Observer() (Observer, bool) {
	o, ok := e.behavior.(Observer)
	return o, ok
}

// IsPlayer true для сущностей, управляемых игроком.
func (e *Entity) IsPlayer() bool {
	_, ok := e.Observer()
	return ok
}

// SetStyle меняет стиль; значения вне [0, styles) игнорируются.
func (e *Entity) SetStyle(style int) bool {
	if style < 0 || style >= e.typ.Styles {
		return false
	}
	e.style = style
	e.changes.SetInt("style", int64(style))
	return true
}

// SetDirection меняет направление взгляда.
func (e *Entity) SetDirection(d Direction) {
	if !d.Valid() {
		return
	}
	e.loc.Direction = d
	e.changes.SetInt("direction", int64(d))
}

// SetPosition перемещает сущность в пределах текущей карты (обычное движение).
func (e *Entity) SetPosition(p vec.Vec2) {
	e.loc.Pos = p
}

// SetSpeed текущая скорость, пишется в журнал позиций.
func (e *Entity) SetSpeed(s float64) {
	e.speed = s
}

// TickLow медленный проход: анимация, очистка журнала, модули.
func (e *Entity) TickLow(now time.Time) {
	if e.removed {
		return
	}
	if !e.lastLow.IsZero() {
		e.advanceAnimation(now.Sub(e.lastLow))
	}
	e.lastLow = now
	e.log.Prune(now)

	for _, c := range e.components {
		if e.removed {
			return
		}
		c.TickLow(e, now)
	}
}

// TickHigh быстрый проход: запись позиции в журнал, модули.
func (e *Entity) TickHigh(now time.Time) {
	if e.removed {
		return
	}
	e.log.Add(now, e.loc.Pos, e.speed)

	for _, c := range e.components {
		if e.removed {
			return
		}
		c.TickHigh(e, now)
	}
}

// Remove уничтожает сущность: снимает с карты и отключает от модулей.
func (e *Entity) Remove() {
	if e.removed {
		return
	}
	e.removed = true
	if e.loc.Map != nil {
		e.loc.Map.RemoveEntity(e)
	}
	for _, c := range e.components {
		c.OnRemove(e)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
