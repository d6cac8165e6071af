package entity

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/vec"
	"go.uber.org/zap/zaptest/observer"
)

type particle struct {
	kind   string
	amount int
}

type testMap struct {
	name      string
	entities  []*Entity
	particles []particle
}

func (m *testMap) Name() string { return m.name }

func (m *testMap) AddEntity(e *Entity) { m.entities = append(m.entities, e) }

func (m *testMap) RemoveEntity(e *Entity) {
	for i, x := range m.entities {
		if x == e {
			m.entities = append(m.entities[:i], m.entities[i+1:]...)
			return
		}
	}
}

func (m *testMap) Observers() []Observer {
	var out []Observer
	for _, e := range m.entities {
		if o, ok := e.Observer(); ok {
			out = append(out, o)
		}
	}
	return out
}

func (m *testMap) SpawnParticles(kind string, _ vec.Vec2, amount int) {
	m.particles = append(m.particles, particle{kind: kind, amount: amount})
}

func (m *testMap) has(e *Entity) bool {
	for _, x := range m.entities {
		if x == e {
			return true
		}
	}
	return false
}

type testRegistry struct {
	maps     map[string]*testMap
	loadable map[string]bool
	loads    int
}

func newTestRegistry(loaded ...string) *testRegistry {
	r := &testRegistry{maps: map[string]*testMap{}, loadable: map[string]bool{}}
	for _, n := range loaded {
		r.maps[n] = &testMap{name: n}
	}
	return r
}

func (r *testRegistry) IsMapLoaded(name string) bool { _, ok := r.maps[name]; return ok }

func (r *testRegistry) LoadMap(_ context.Context, name string) error {
	r.loads++
	if !r.loadable[name] {
		return errors.New("no such map")
	}
	r.maps[name] = &testMap{name: name}
	return nil
}

func (r *testRegistry) Map(name string) (Map, bool) {
	m, ok := r.maps[name]
	if !ok {
		return nil, false
	}
	return m, true
}

// playerBehavior поведение игрока, собирающее отправленные пакеты.
type playerBehavior struct {
	BaseBehavior
	packets []protocol.Packet
}

func (p *playerBehavior) SendPacket(pk protocol.Packet) { p.packets = append(p.packets, pk) }

type recordingBehavior struct {
	BaseBehavior
	interactions []InteractionKind
	sources      []*Entity
	nextAnim     string
	completed    []string
}

func (b *recordingBehavior) InteractFrom(_, source *Entity, _, _ CollisionRect, kind InteractionKind) {
	b.interactions = append(b.interactions, kind)
	b.sources = append(b.sources, source)
}

func (b *recordingBehavior) AnimationCompleted(_ *Entity, anim string) string {
	b.completed = append(b.completed, anim)
	return b.nextAnim
}

var slimeType = &Type{
	ID:               "slime",
	MaxHealth:        20,
	Speed:            2,
	Styles:           2,
	ShowHealthBar:    true,
	DefaultAnimation: "idle",
	FootstepOffset:   vec.Vec2{X: 0.5, Y: 1},
	HeadOffset:       vec.Vec2{X: 0.5, Y: 0},
	View:             vec.Rect{W: 1, H: 1},
	Collision: []RectDef{
		{Name: "body", Rect: vec.Rect{X: 0, Y: 0.5, W: 1, H: 0.5}, Hard: true},
	},
	Animations: map[string]AnimationDef{
		"idle":   {Frames: 4, FrameMs: 100, Loop: true},
		"attack": {Frames: 2, FrameMs: 100},
	},
}

type fixture struct {
	ctx  *Context
	reg  *testRegistry
	town *testMap
	logs *observer.ObservedLogs
	now  time.Time
}

func newFixture() *fixture {
	reg := newTestRegistry("town")
	logger, logs := logging.NewObservedLogger("game")
	f := &fixture{reg: reg, town: reg.maps["town"], logs: logs, now: t0}
	f.ctx = NewContext(reg, logger)
	f.ctx.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) spawn(name string, b Behavior, pos vec.Vec2) *Entity {
	e := New(f.ctx, slimeType, name, b, Location{Map: f.town, Pos: pos, Direction: Down})
	f.town.AddEntity(e)
	return e
}

type recordingListener struct {
	died       []*Entity
	killers    []*Entity
	teleported []string
}

func (l *recordingListener) EntityDied(e *Entity, cause *Entity) {
	l.died = append(l.died, e)
	l.killers = append(l.killers, cause)
}

func (l *recordingListener) EntityTeleported(e *Entity, from string, _ bool) {
	l.teleported = append(l.teleported, e.Name()+"@"+from)
}
