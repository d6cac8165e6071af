package entity

import (
	"testing"

	"github.com/annel0/archipelo-server/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealIsClampedToMax(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})

	e.Heal(-5, nil)
	assert.Equal(t, 15.0, e.Health())
	assert.True(t, e.Changes().Bool("flash", false), "урон вызывает вспышку")

	e.ClearChanges()
	assert.False(t, e.Heal(100, nil))
	assert.Equal(t, 20.0, e.Health())
	assert.False(t, e.Changes().Bool("flash", true))
	assert.Equal(t, 20.0, e.Changes().Float("health", 0))
}

func TestHealCancelledLeavesHealth(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})
	f.ctx.Hooks.Heal.Register(func(ev *HealEvent) { ev.Cancel() })

	assert.False(t, e.Heal(-100, nil))
	assert.Equal(t, 20.0, e.Health())
	assert.Empty(t, f.town.particles, "частицы только при неотменённом лечении")
	assert.Nil(t, e.ChangesSnapshot())
}

func TestHealHookCanAdjustAmount(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})
	f.ctx.Hooks.Heal.Register(func(ev *HealEvent) { ev.Amount /= 2 })

	e.Heal(-10, nil)
	assert.Equal(t, 15.0, e.Health())
	require.Len(t, f.town.particles, 1)
	assert.Equal(t, particle{kind: HealthParticles, amount: -10}, f.town.particles[0])
}

func TestLethalDamageRemovesEntity(t *testing.T) {
	f := newFixture()
	listener := &recordingListener{}
	f.ctx.Listener = listener
	attacker := f.spawn("hero", nil, vec.Vec2{})
	e := f.spawn("slime1", nil, vec.Vec2{})
	e.Heal(-10, nil)

	var got *DeathEvent
	f.ctx.Hooks.Death.Register(func(ev *DeathEvent) { got = ev })

	died := e.Heal(-15, attacker)

	require.NotNil(t, got)
	assert.Equal(t, 10.0, got.OldHealth)
	assert.Equal(t, -5.0, got.NewHealth)
	assert.Same(t, attacker, got.Cause)
	assert.True(t, died)
	assert.True(t, e.IsRemoved())
	assert.False(t, f.town.has(e))
	assert.Equal(t, []*Entity{e}, listener.died)
}

func TestCancelledDeathRevertsHealth(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})
	e.Heal(-10, nil)
	e.ClearChanges()
	f.ctx.Hooks.Death.Register(func(ev *DeathEvent) { ev.Cancel() })

	assert.False(t, e.Heal(-15, nil))
	assert.Equal(t, 10.0, e.Health())
	assert.False(t, e.IsRemoved())
	assert.False(t, e.Changes().Has("health"), "здоровье не изменилось")
}

func TestCancelledDeathWithFinalHealth(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})
	f.ctx.Hooks.Death.Register(func(ev *DeathEvent) {
		ev.Cancel()
		ev.SetFinalHealth(1)
	})

	assert.False(t, e.Heal(-50, nil))
	assert.Equal(t, 1.0, e.Health())
	assert.Equal(t, 1.0, e.Changes().Float("health", 0))
}

func TestCancelledDeathFinalHealthIsClamped(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})
	f.ctx.Hooks.Death.Register(func(ev *DeathEvent) {
		ev.Cancel()
		ev.SetFinalHealth(-3)
	})

	e.Heal(-50, nil)
	assert.Equal(t, 0.0, e.Health())
	assert.False(t, e.IsRemoved())
}

func TestHealthStaysBoundedOverSequence(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})
	f.ctx.Hooks.Death.Register(func(ev *DeathEvent) { ev.Cancel() })

	for _, amount := range []float64{-3, 7, 40, -19.5, -0.25, 2, -100, 13} {
		e.Heal(amount, nil)
		assert.GreaterOrEqual(t, e.Health(), 0.0)
		assert.LessOrEqual(t, e.Health(), slimeType.MaxHealth)
	}
}

func TestHealOnRemovedEntityIsNoop(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})
	e.Remove()

	assert.False(t, e.Heal(-100, nil))
	assert.Empty(t, f.town.particles)
}

func TestHealHookCanReplaceHealer(t *testing.T) {
	f := newFixture()
	listener := &recordingListener{}
	f.ctx.Listener = listener
	attacker := f.spawn("hero", nil, vec.Vec2{})
	trap := f.spawn("trap", nil, vec.Vec2{})
	e := f.spawn("slime1", nil, vec.Vec2{})

	f.ctx.Hooks.Heal.Register(func(ev *HealEvent) { ev.Healer = trap })
	var cause *Entity
	f.ctx.Hooks.Death.Register(func(ev *DeathEvent) { cause = ev.Cause })

	require.True(t, e.Heal(-50, attacker))
	assert.Same(t, trap, cause)
	require.Len(t, listener.killers, 1)
	assert.Same(t, trap, listener.killers[0])
}

func TestFlashFollowsRequestedAmount(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{})
	e.Heal(-10, nil)
	e.ClearChanges()
	f.ctx.Hooks.Heal.Register(func(ev *HealEvent) { ev.Amount = -ev.Amount })

	e.Heal(-2, nil)
	assert.Equal(t, 12.0, e.Health(), "хук превратил урон в лечение")
	assert.True(t, e.Changes().Bool("flash", false), "вспышка по запрошенному урону")
}
