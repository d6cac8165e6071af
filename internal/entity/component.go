package entity

import (
	"time"

	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/snapshot"
)

// Component подключаемый модуль возможностей сущности. Модули вызываются
// в порядке подключения.
type Component interface {
	TickLow(e *Entity, now time.Time)
	TickHigh(e *Entity, now time.Time)
	// EditSnapshot дописывает свои поля в снимок указанного вида.
	EditSnapshot(e *Entity, variant snapshot.Variant, s *snapshot.Snapshot)
	// OnRemove вызывается при уничтожении сущности.
	OnRemove(e *Entity)
}

// SnapshotLoader реализуют модули, восстанавливающие состояние из сохранённого снимка.
type SnapshotLoader interface {
	LoadSnapshot(e *Entity, s *snapshot.Snapshot)
}

// HardnessOverrider модуль, позволяющий проходить сквозь твёрдые прямоугольники.
type HardnessOverrider interface {
	IgnoreHardness(e *Entity, other *Entity, rect CollisionRect) bool
}

// BaseComponent пустая реализация Component для встраивания.
type BaseComponent struct{}

func (BaseComponent) TickLow(*Entity, time.Time)                                {}
func (BaseComponent) TickHigh(*Entity, time.Time)                               {}
func (BaseComponent) EditSnapshot(*Entity, snapshot.Variant, *snapshot.Snapshot) {}
func (BaseComponent) OnRemove(*Entity)                                          {}

// Behavior контент-специфичное поведение сущности.
type Behavior interface {
	// InteractFrom вызывается на цели, когда source взаимодействует с ней.
	InteractFrom(self, source *Entity, ownRect, sourceRect CollisionRect, kind InteractionKind)
	// AnimationCompleted возвращает следующую анимацию; "" означает анимацию по умолчанию.
	AnimationCompleted(self *Entity, animation string) string
}

// BaseBehavior поведение без реакции.
type BaseBehavior struct{}

func (BaseBehavior) InteractFrom(*Entity, *Entity, CollisionRect, CollisionRect, InteractionKind) {}
func (BaseBehavior) AnimationCompleted(*Entity, string) string                                    { return "" }

// Observer получатель пакетов. Сущность, чьё поведение реализует Observer, считается игроком.
type Observer interface {
	SendPacket(p protocol.Packet)
}

// FindComponent возвращает первый модуль типа T.
func FindComponent[T any](e *Entity) (T, bool) {
	for _, c := range e.components {
		if t, ok := c.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}
