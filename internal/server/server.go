// Package server собирает компоненты мира, сети и хранения в работающий сервер.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/archipelo-server/internal/config"
	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/eventbus"
	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/network"
	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/storage"
	"github.com/annel0/archipelo-server/internal/tick"
	"github.com/annel0/archipelo-server/internal/world"
)

// EventSource имя источника доменных событий сервера.
const EventSource = "archipelo-server"

const shutdownTimeout = 10 * time.Second

// Deps внешние зависимости сервера.
type Deps struct {
	Types *entity.TypeRegistry
	Auth  network.Authenticator
	// Store может быть nil: тогда мир не сохраняется.
	Store storage.SnapshotStore
	// Bus может быть nil: тогда доменные события не публикуются.
	Bus eventbus.EventBus
	// Registry может быть nil: метрики не регистрируются.
	Registry prometheus.Registerer
	Logger   *logging.Logger
}

// Server игровой сервер: мир, планировщик, сетевой менеджер и транспорты.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	serializer protocol.Serializer
	manager    *network.NetworkManager
	world      *world.World
	sched      *tick.Scheduler
	players    *Players
	forms      *FormRouter
	events     *EventForwarder
	transports []network.Transport
}

// New собирает сервер по конфигурации. Транспорты создаются только при
// заданных ключах: WSS требует tls_cert/tls_key, KCP требует kcp_key.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Types == nil {
		return nil, errors.New("не задан реестр типов сущностей")
	}
	if _, ok := deps.Types.Get(cfg.World.PlayerType); !ok {
		return nil, fmt.Errorf("тип игрока %q не зарегистрирован", cfg.World.PlayerType)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetServerLogger()
	}

	serializer, err := protocol.NewSerializer(cfg.Network.Codec, cfg.Network.CompressionThreshold)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, logger: logger, serializer: serializer}

	s.manager = network.NewNetworkManager(
		network.ManagerConfig{Version: cfg.Server.Version},
		serializer, deps.Auth, componentLogger(deps.Logger, logging.GetNetworkLogger),
		network.NewMetrics(deps.Registry),
	)

	gameLogger := componentLogger(deps.Logger, logging.GetGameLogger)
	s.world = world.New(deps.Types, deps.Store, cfg.World.Maps, gameLogger)
	s.sched = tick.New(tick.Config{
		LowInterval:  cfg.Tick.LowInterval(),
		HighInterval: cfg.Tick.HighInterval(),
	}, logger, tick.NewMetrics(deps.Registry))

	pub := eventbus.NewPublisher(deps.Bus, EventSource, logger)
	s.events = NewEventForwarder(pub, eventbus.DefaultMemoryCapacity, logger)
	s.world.Context().Listener = s.events
	s.world.SetMapListener(s.events)

	s.players = NewPlayers(s.world, deps.Store, s.sched, s.manager, s.events, cfg.World, gameLogger)
	s.events.onDeath = s.players.respawn
	s.manager.AddListener(s.players)

	s.forms = NewFormRouter(s.world, gameLogger)
	s.manager.Queue().AddHandler(s.forms)
	s.manager.Queue().AddHandler(NewMoveHandler(s.world, gameLogger))

	s.sched.OnHigh(func(now time.Time) {
		s.manager.Update(now)
		s.world.TickHigh(now)
	})
	s.sched.OnLow(s.world.TickLow)

	s.buildTransports(deps.Logger)
	return s, nil
}

func componentLogger(override *logging.Logger, get func() *logging.Logger) *logging.Logger {
	if override != nil {
		return override
	}
	return get()
}

func (s *Server) buildTransports(override *logging.Logger) {
	netLogger := componentLogger(override, logging.GetNetworkLogger)
	srv := s.cfg.Server
	if srv.TLSCert != "" && srv.TLSKey != "" {
		s.AddTransport(network.NewWSTransport(network.WSConfig{
			Addr:       fmt.Sprintf(":%d", srv.GetWSPort()),
			CertFile:   srv.TLSCert,
			KeyFile:    srv.TLSKey,
			SendBuffer: s.cfg.Network.SendBuffer,
		}, s.manager, netLogger))
	} else {
		s.logger.Warn("WSS транспорт отключён: не заданы server.tls_cert и server.tls_key")
	}
	if srv.KCPKey != "" {
		s.AddTransport(network.NewKCPTransport(network.KCPConfig{
			Addr:       fmt.Sprintf(":%d", srv.GetKCPPort()),
			Key:        srv.KCPKey,
			Salt:       srv.KCPSalt,
			SendBuffer: s.cfg.Network.SendBuffer,
		}, s.manager, netLogger))
	}
}

// AddTransport подключает дополнительный транспорт. Вызывается до Run.
func (s *Server) AddTransport(t network.Transport) {
	s.transports = append(s.transports, t)
}

func (s *Server) World() *world.World              { return s.world }
func (s *Server) Scheduler() *tick.Scheduler       { return s.sched }
func (s *Server) Network() *network.NetworkManager { return s.manager }
func (s *Server) Players() *Players                { return s.players }
func (s *Server) Forms() *FormRouter               { return s.forms }
func (s *Server) Transports() []network.Transport  { return s.transports }

// Run загружает стартовую карту, запускает транспорты и крутит симуляцию до
// отмены ctx. После остановки игроки и карты сохраняются.
func (s *Server) Run(ctx context.Context) error {
	if err := s.world.LoadMap(ctx, s.cfg.World.Spawn.Map); err != nil {
		return fmt.Errorf("стартовая карта: %w", err)
	}
	s.events.Start()

	started := make([]network.Transport, 0, len(s.transports))
	for _, t := range s.transports {
		if err := t.Start(ctx); err != nil {
			s.stopTransports(started)
			s.events.Stop()
			return fmt.Errorf("запуск транспорта %s: %w", t.Name(), err)
		}
		started = append(started, t)
	}
	if len(started) == 0 {
		s.logger.Warn("Нет ни одного транспорта: игроки не смогут подключиться")
	}

	s.logger.Info("✅ Сервер %s запущен, карт загружено: %d", s.cfg.Server.Version, len(s.world.MapNames()))
	err := s.sched.Run(ctx)

	s.shutdown(started)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Server) stopTransports(ts []network.Transport) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, t := range ts {
		if err := t.Stop(ctx); err != nil {
			s.logger.Warn("Остановка транспорта %s: %v", t.Name(), err)
		}
	}
}

// shutdown выполняется после остановки планировщика, поэтому мир доступен
// только из этой горутины.
func (s *Server) shutdown(started []network.Transport) {
	s.logger.Info("Остановка сервера...")
	s.stopTransports(started)
	s.manager.LogoutAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.players.LeaveAll(ctx); err != nil {
		s.logger.Error("Сохранение игроков: %v", err)
	}
	if err := s.world.SaveAll(ctx); err != nil {
		s.logger.Error("Сохранение карт: %v", err)
	}
	s.events.Stop()
	if c, ok := s.serializer.(*protocol.CompressingSerializer); ok {
		c.Close()
	}
	s.logger.Info("👋 Сервер остановлен")
}
