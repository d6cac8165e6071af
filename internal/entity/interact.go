package entity

// InteractWith взаимодействие с target. Если хук не отменил событие,
// цель получает симметричный вызов InteractFrom. Возвращает false при отмене.
func (e *Entity) InteractWith(target *Entity, ownRect, targetRect CollisionRect, kind InteractionKind) bool {
	if e.removed || target == nil || target.removed {
		return false
	}
	ev := &InteractionEvent{Source: e, Target: target, SourceRect: ownRect, TargetRect: targetRect, Kind: kind}
	if e.ctx.Hooks.Interaction.Trigger(ev) {
		return false
	}
	target.behavior.InteractFrom(target, e, targetRect, ownRect, kind)
	return true
}
