package entity

import (
	"testing"
	"time"

	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeleportWithinMap(t *testing.T) {
	f := newFixture()
	player := &playerBehavior{}
	e := f.spawn("hero", player, vec.Vec2{X: 1, Y: 1})
	e.TickHigh(t0)
	e.TickHigh(t0.Add(time.Second / 60))

	require.True(t, e.Teleport(vec.Vec2{X: 10.5, Y: 11}, Left, "town"))

	assert.Equal(t, vec.Vec2{X: 10, Y: 10}, e.Position(), "позиция смещена на точку опоры")
	assert.Equal(t, vec.Vec2{X: 10.5, Y: 11}, e.FootPosition())
	assert.Equal(t, Left, e.Direction())
	assert.Equal(t, 0, e.Log().Len(), "журнал очищен")
	assert.Len(t, f.town.entities, 1)

	require.Len(t, player.packets, 1)
	assert.Equal(t, &protocol.Teleport{Name: "hero", X: 10, Y: 10, Direction: int(Left), MapChanged: false}, player.packets[0])
}

func TestTeleportToCurrentSpotKeepsSingleMap(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{X: 3, Y: 4})
	e.TickHigh(t0)

	require.True(t, e.TeleportTo(e.FootPosition()))

	assert.Equal(t, vec.Vec2{X: 3, Y: 4}, e.Position())
	assert.Equal(t, "town", e.Map().Name())
	assert.Len(t, f.town.entities, 1)
	assert.Equal(t, 0, e.Log().Len())
}

func TestTeleportLoadsDestinationMap(t *testing.T) {
	f := newFixture()
	f.reg.loadable["cave"] = true
	listener := &recordingListener{}
	f.ctx.Listener = listener

	watcher := &playerBehavior{}
	f.spawn("watcher", watcher, vec.Vec2{})
	hero := &playerBehavior{}
	e := f.spawn("hero", hero, vec.Vec2{})

	require.True(t, e.Teleport(vec.Vec2{X: 5, Y: 5}, Up, "cave"))

	cave := f.reg.maps["cave"]
	assert.Equal(t, 1, f.reg.loads)
	assert.True(t, cave.has(e))
	assert.False(t, f.town.has(e))
	assert.Equal(t, "cave", e.Map().Name())

	require.Len(t, hero.packets, 1)
	assert.True(t, hero.packets[0].(*protocol.Teleport).MapChanged)
	assert.Empty(t, watcher.packets, "уведомляются только наблюдатели карты назначения")
	assert.Equal(t, []string{"hero@town"}, listener.teleported)
}

type orderCheckingMap struct {
	*testMap
	source *testMap
	sawInSource bool
}

func (m *orderCheckingMap) AddEntity(e *Entity) {
	m.sawInSource = m.source.has(e)
	m.testMap.AddEntity(e)
}

func TestTeleportAddsBeforeRemoving(t *testing.T) {
	f := newFixture()
	dest := &orderCheckingMap{testMap: &testMap{name: "cave"}, source: f.town}
	f.reg.maps["cave"] = dest.testMap
	e := f.spawn("slime1", nil, vec.Vec2{})

	reg := &wrappingRegistry{testRegistry: f.reg, override: map[string]Map{"cave": dest}}
	f.ctx.Maps = reg

	require.True(t, e.Teleport(vec.Vec2{}, Down, "cave"))
	assert.True(t, dest.sawInSource, "на новой карте сущность появляется до снятия со старой")
	assert.False(t, f.town.has(e))
}

type wrappingRegistry struct {
	*testRegistry
	override map[string]Map
}

func (r *wrappingRegistry) Map(name string) (Map, bool) {
	if m, ok := r.override[name]; ok {
		return m, true
	}
	return r.testRegistry.Map(name)
}

func TestTeleportFailureForPlayerShowsPopup(t *testing.T) {
	f := newFixture()
	hero := &playerBehavior{}
	e := f.spawn("hero", hero, vec.Vec2{X: 2, Y: 2})

	assert.False(t, e.Teleport(vec.Vec2{}, Down, "nowhere"))

	assert.Equal(t, vec.Vec2{X: 2, Y: 2}, e.Position())
	assert.True(t, f.town.has(e))
	require.Len(t, hero.packets, 1)
	assert.Equal(t, &protocol.PopupText{Message: TeleportFailedMessage, Severity: protocol.SeverityError}, hero.packets[0])
}

func TestTeleportFailureForNonPlayerLogsCaution(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{X: 2, Y: 2})

	assert.False(t, e.Teleport(vec.Vec2{}, Down, "nowhere"))
	assert.True(t, f.town.has(e))
	assert.Equal(t, 1, logging.CautionCount(f.logs))
}

func TestTeleportHookRedirects(t *testing.T) {
	f := newFixture()
	f.reg.maps["jail"] = &testMap{name: "jail"}
	e := f.spawn("slime1", nil, vec.Vec2{})
	f.ctx.Hooks.Teleport.Register(func(ev *TeleportEvent) {
		ev.Map = "jail"
		ev.Pos = vec.Vec2{X: 0.5, Y: 1}
	})

	require.True(t, e.Teleport(vec.Vec2{X: 50, Y: 50}, Down, "town"))
	assert.Equal(t, "jail", e.Map().Name())
	assert.Equal(t, vec.Vec2{}, e.Position())
}

func TestTeleportCancelled(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{X: 1})
	e.TickHigh(t0)
	f.ctx.Hooks.Teleport.Register(func(ev *TeleportEvent) { ev.Cancel() })

	assert.False(t, e.TeleportTo(vec.Vec2{X: 9}))
	assert.Equal(t, vec.Vec2{X: 1}, e.Position())
	assert.Equal(t, 1, e.Log().Len(), "журнал не тронут")
}

func TestTeleportClearsPendingChanges(t *testing.T) {
	f := newFixture()
	e := f.spawn("slime1", nil, vec.Vec2{X: 1, Y: 1})
	e.SetDirection(Left)
	e.Heal(-1, nil)
	require.False(t, e.Changes().IsEmpty())

	require.True(t, e.Teleport(vec.Vec2{X: 4, Y: 4}, Up, "town"))

	assert.True(t, e.Changes().IsEmpty(), "изменения до телепорта не уходят клиентам")
	assert.Nil(t, e.ChangesSnapshot())
	assert.Equal(t, Up, e.Direction())
}

func TestTeleportWithoutOwningMap(t *testing.T) {
	t.Run("Empty map name is cancelled", func(t *testing.T) {
		f := newFixture()
		e := New(f.ctx, slimeType, "loose", nil, Location{})

		assert.NotPanics(t, func() {
			assert.False(t, e.Teleport(vec.Vec2{X: 1, Y: 1}, Up, ""))
		})
		assert.Nil(t, e.Map())
		assert.Equal(t, 1, logging.CautionCount(f.logs))
	})

	t.Run("Named map is joined", func(t *testing.T) {
		f := newFixture()
		e := New(f.ctx, slimeType, "loose", nil, Location{})

		require.True(t, e.Teleport(vec.Vec2{X: 1.5, Y: 2}, Up, "town"))
		assert.Equal(t, "town", e.Map().Name())
		assert.True(t, f.town.has(e))
		assert.Equal(t, vec.Vec2{X: 1, Y: 1}, e.Position())
	})
}
