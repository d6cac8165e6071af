package entity

// HealthParticles вид частиц, которые показываются при изменении здоровья.
const HealthParticles = "health"

// Heal изменяет здоровье на amount (отрицательное значение: урон) и
// возвращает true, если сущность умерла и была удалена.
func (e *Entity) Heal(amount float64, healer *Entity) bool {
	if e.removed {
		return false
	}

	ev := &HealEvent{Entity: e, Healer: healer, Amount: amount}
	if e.ctx.Hooks.Heal.Trigger(ev) {
		return false
	}

	if e.loc.Map != nil {
		e.loc.Map.SpawnParticles(HealthParticles, e.HeadPosition(), int(amount))
	}

	old := e.health
	next := old + ev.Amount

	if next <= 0 {
		death := &DeathEvent{Entity: e, Cause: ev.Healer, OldHealth: old, NewHealth: next}
		if e.ctx.Hooks.Death.Trigger(death) {
			if h, ok := death.FinalHealth(); ok {
				e.health = clamp(h, 0, e.typ.MaxHealth)
			} else {
				e.health = old
			}
			if e.health != old && e.typ.ShowHealthBar {
				e.changes.SetFloat("health", e.health)
			}
			return false
		}

		e.health = 0
		e.Remove()
		if e.ctx.Listener != nil {
			e.ctx.Listener.EntityDied(e, ev.Healer)
		}
		return true
	}

	// вспышка по исходной величине, как и частицы
	e.changes.SetBool("flash", amount < 0)
	e.health = clamp(next, 0, e.typ.MaxHealth)
	if e.typ.ShowHealthBar {
		e.changes.SetFloat("health", e.health)
	}
	return false
}
