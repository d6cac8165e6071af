package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"

	"github.com/annel0/archipelo-server/internal/config"
	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/eventbus"
	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/network"
	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/storage"
	"github.com/annel0/archipelo-server/internal/vec"
)

type fakeConn struct {
	id     string
	remote net.Addr
	local  net.Addr

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeConn(id, remote string) *fakeConn {
	r, _ := net.ResolveTCPAddr("tcp", remote)
	l, _ := net.ResolveTCPAddr("tcp", "10.0.0.1:8443")
	return &fakeConn{id: id, remote: r, local: l}
}

func (c *fakeConn) ID() string           { return c.id }
func (c *fakeConn) Transport() string    { return "fake" }
func (c *fakeConn) RemoteAddr() net.Addr { return c.remote }
func (c *fakeConn) LocalAddr() net.Addr  { return c.local }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return network.ErrConnClosed
	}
	c.sent = append(c.sent, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) packets(t *testing.T, want protocol.Type) []protocol.Packet {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	ser := protocol.NewJSONSerializer()
	var out []protocol.Packet
	for _, frame := range c.sent {
		p, err := ser.Decode(frame)
		require.NoError(t, err)
		if p.PacketType() == want {
			out = append(out, p)
		}
	}
	return out
}

type fakeAuth map[string]string

func (a fakeAuth) Authenticate(_ context.Context, email, password string) (string, error) {
	if pw, ok := a[email]; ok && pw == password {
		return email[:len(email)-len("@archipelo.local")], nil
	}
	return "", network.ErrBadCredentials
}

type fixture struct {
	srv   *Server
	store storage.SnapshotStore
	logs  *observer.ObservedLogs
	ser   protocol.Serializer
}

func newFixture(t *testing.T, bus eventbus.EventBus) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.World.Maps = []string{"town", "cave"}
	cfg.World.Spawn = config.SpawnConfig{Map: "town", X: 1, Y: 2, Direction: "left"}
	cfg.Network.CompressionThreshold = 0

	types := entity.NewTypeRegistry()
	require.NoError(t, types.Register(&entity.Type{ID: "player", MaxHealth: 20, Styles: 1, Speed: 4, ShowHealthBar: true}))
	require.NoError(t, types.Register(&entity.Type{ID: "slime", MaxHealth: 5, Styles: 1}))

	logger, logs := logging.NewObservedLogger("server")
	store := storage.NewMemoryStore()
	srv, err := New(cfg, Deps{
		Types:  types,
		Auth:   fakeAuth{"alice@archipelo.local": "secret", "bob@archipelo.local": "hunter2"},
		Store:  store,
		Bus:    bus,
		Logger: logger,
	})
	require.NoError(t, err)
	require.Empty(t, srv.Transports(), "без ключей транспорты не создаются")
	require.NoError(t, srv.World().LoadMap(context.Background(), "town"))
	return &fixture{srv: srv, store: store, logs: logs, ser: protocol.NewJSONSerializer()}
}

func (f *fixture) send(t *testing.T, c *fakeConn, p protocol.Packet) {
	t.Helper()
	data, err := f.ser.Encode(p)
	require.NoError(t, err)
	f.srv.Network().OnFrame(c, data)
}

func (f *fixture) login(t *testing.T, id, remote, email, password string) *fakeConn {
	t.Helper()
	c := newFakeConn(id, remote)
	f.srv.Network().OnOpen(c)
	f.send(t, c, &protocol.Login{Email: email, Password: password, Version: f.srv.Network().Version()})
	f.srv.Scheduler().DrainCommands()
	return c
}

func TestNewRequiresPlayerType(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, Deps{Types: entity.NewTypeRegistry()})
	assert.Error(t, err)

	_, err = New(cfg, Deps{})
	assert.Error(t, err)
}

func TestLoginSpawnsPlayer(t *testing.T) {
	f := newFixture(t, nil)
	c := f.login(t, "c1", "1.1.1.1:1000", "alice@archipelo.local", "secret")

	logins := c.packets(t, protocol.TypeLogin)
	require.Len(t, logins, 1)
	assert.Equal(t, protocol.LoginOK, logins[0].(*protocol.Login).Result)

	e, ok := f.srv.World().Entity("alice")
	require.True(t, ok, "персонаж появился в мире")
	assert.Equal(t, "town", e.Location().MapName())
	assert.Equal(t, vec.Vec2{X: 1, Y: 2}, e.Position())
	assert.Equal(t, entity.Left, e.Direction())
	assert.True(t, e.IsPlayer())
	assert.NotEmpty(t, c.packets(t, protocol.TypeEntityAdd), "игрок получает снимки сущностей карты")
}

func TestLogoutSavesAndRestoresPlayer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := f.login(t, "c1", "1.1.1.1:1000", "alice@archipelo.local", "secret")

	f.send(t, c, &protocol.Move{X: 2, Y: 2, Direction: int(entity.Right), Speed: 1})
	f.srv.Scheduler().RunHighPass(time.Now())

	e, ok := f.srv.World().Entity("alice")
	require.True(t, ok)
	assert.Equal(t, vec.Vec2{X: 2, Y: 2}, e.Position())
	assert.Zero(t, f.srv.Network().Queue().Len(), "пакет движения обработан")

	f.srv.Network().OnClose(c, nil)
	f.srv.Scheduler().DrainCommands()

	_, ok = f.srv.World().Entity("alice")
	assert.False(t, ok, "персонаж убран из мира после выхода")
	assert.True(t, e.IsRemoved())

	rec, found, err := f.store.LoadPlayer(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "player", rec.Type)

	f.login(t, "c2", "1.1.1.1:1001", "alice@archipelo.local", "secret")
	back, ok := f.srv.World().Entity("alice")
	require.True(t, ok)
	assert.NotSame(t, e, back)
	assert.Equal(t, vec.Vec2{X: 2, Y: 2}, back.Position(), "позиция восстановлена из сохранения")
	assert.Equal(t, entity.Right, back.Direction())
}

func TestBadLoginDoesNotSpawn(t *testing.T) {
	f := newFixture(t, nil)
	c := f.login(t, "c1", "1.1.1.1:1000", "alice@archipelo.local", "wrong")

	logins := c.packets(t, protocol.TypeLogin)
	require.Len(t, logins, 1)
	assert.Equal(t, protocol.LoginBadCredentials, logins[0].(*protocol.Login).Result)
	_, ok := f.srv.World().Entity("alice")
	assert.False(t, ok)
}

func TestFormRouting(t *testing.T) {
	f := newFixture(t, nil)
	c := f.login(t, "c1", "1.1.1.1:1000", "alice@archipelo.local", "secret")

	var got []string
	f.srv.Forms().Register("shop", func(e *entity.Entity, form *protocol.FormInteract) bool {
		got = append(got, e.Name()+":"+form.Command)
		return true
	})

	f.send(t, c, &protocol.FormInteract{ID: "shop", Command: "buy"})
	f.send(t, c, &protocol.FormInteract{ID: "quest", Command: "accept"})
	f.srv.Scheduler().RunHighPass(time.Now())

	assert.Equal(t, []string{"alice:buy"}, got)
	assert.Equal(t, 1, f.srv.Network().Queue().Len(), "форма без обработчика ждёт в очереди до истечения срока")

	f.srv.Network().Update(time.Now().Add(network.PacketExpiry))
	assert.Zero(t, f.srv.Network().Queue().Len())
}

func TestPlayerRespawnsAfterDeath(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "c1", "1.1.1.1:1000", "alice@archipelo.local", "secret")

	e, ok := f.srv.World().Entity("alice")
	require.True(t, ok)
	e.TeleportTo(vec.Vec2{X: 10, Y: 10})
	require.True(t, e.Heal(-100, nil), "урон больше здоровья убивает")
	assert.True(t, e.IsRemoved())

	f.srv.Scheduler().DrainCommands()
	back, ok := f.srv.World().Entity("alice")
	require.True(t, ok, "игрок возрождается")
	assert.NotSame(t, e, back)
	assert.Equal(t, vec.Vec2{X: 1, Y: 2}, back.Position())
	assert.Equal(t, 20.0, back.Health())
}

func TestNoRespawnAfterLogout(t *testing.T) {
	f := newFixture(t, nil)
	c := f.login(t, "c1", "1.1.1.1:1000", "alice@archipelo.local", "secret")

	e, ok := f.srv.World().Entity("alice")
	require.True(t, ok)
	f.srv.Network().OnClose(c, nil)
	e.Heal(-100, nil)
	f.srv.Scheduler().DrainCommands()

	_, ok = f.srv.World().Entity("alice")
	assert.False(t, ok)
}

func TestDomainEventsPublished(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	f := newFixture(t, bus)

	var mu sync.Mutex
	var types []string
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		types = append(types, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	f.srv.events.Start()
	c := f.login(t, "c1", "1.1.1.1:1000", "alice@archipelo.local", "secret")
	e, _ := f.srv.World().Entity("alice")
	require.True(t, e.Teleport(vec.Vec2{X: 5, Y: 5}, entity.Up, "cave"))
	f.srv.Network().OnClose(c, nil)
	f.srv.Scheduler().DrainCommands()

	f.srv.events.Stop()
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		eventbus.TypeMapLoaded,
		eventbus.TypePlayerLoggedIn,
		eventbus.TypeMapLoaded,
		eventbus.TypeEntityTeleported,
		eventbus.TypePlayerLoggedOut,
	}, types)
}

func TestRunSavesOnShutdown(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.srv.World().Spawn(ctx, "slime", "blob", "town", vec.Vec2{X: 3}, entity.Down, nil)
	require.NoError(t, err)
	require.NoError(t, f.srv.Scheduler().Submit(func() {
		_, err := f.srv.Players().Join(ctx, "alice")
		assert.NoError(t, err)
	}))

	done := make(chan error, 1)
	go func() { done <- f.srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		var ok bool
		err := f.srv.Scheduler().Call(ctx, func() { _, ok = f.srv.World().Entity("alice") })
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run не завершился после отмены")
	}

	_, found, err := f.store.LoadPlayer(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, found, "игрок сохранён при остановке")

	records, err := f.store.LoadMap(context.Background(), "town")
	require.NoError(t, err)
	require.Len(t, records, 1, "сохраняются только не-игроки")
	assert.Equal(t, "blob", records[0].Name)
}
