package entity

import (
	"github.com/annel0/archipelo-server/internal/event"
	"github.com/annel0/archipelo-server/internal/vec"
)

// HealEvent перед изменением здоровья. Amount < 0 означает урон.
type HealEvent struct {
	event.Cancellable
	Entity *Entity
	Healer *Entity
	Amount float64
}

// DeathEvent когда здоровье падает до нуля или ниже.
// NewHealth не ограничен снизу: урон 15 при здоровье 10 даёт -5.
type DeathEvent struct {
	event.Cancellable
	Entity    *Entity
	Cause     *Entity
	OldHealth float64
	NewHealth float64

	finalHealth    float64
	finalHealthSet bool
}

// SetFinalHealth задаёт здоровье, которое получит сущность при отмене смерти.
func (e *DeathEvent) SetFinalHealth(h float64) {
	e.finalHealth = h
	e.finalHealthSet = true
}

// FinalHealth значение, заданное через SetFinalHealth.
func (e *DeathEvent) FinalHealth() (float64, bool) {
	return e.finalHealth, e.finalHealthSet
}

// TeleportEvent перед телепортом. Обработчики могут изменить цель.
type TeleportEvent struct {
	event.Cancellable
	Entity    *Entity
	Pos       vec.Vec2
	Direction Direction
	Map       string
}

// InteractionKind вид взаимодействия.
type InteractionKind int

const (
	StepOn InteractionKind = iota
	StepContinual
	Hit
)

func (k InteractionKind) String() string {
	switch k {
	case StepOn:
		return "step_on"
	case StepContinual:
		return "step_continual"
	case Hit:
		return "hit"
	}
	return "unknown"
}

// InteractionEvent перед тем как Source провзаимодействует с Target.
type InteractionEvent struct {
	event.Cancellable
	Source     *Entity
	Target     *Entity
	SourceRect CollisionRect
	TargetRect CollisionRect
	Kind       InteractionKind
}

// Hooks отменяемые конвейеры мутаций сущностей.
type Hooks struct {
	Heal        event.Pipeline[*HealEvent]
	Death       event.Pipeline[*DeathEvent]
	Teleport    event.Pipeline[*TeleportEvent]
	Interaction event.Pipeline[*InteractionEvent]
}
