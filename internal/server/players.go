package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/archipelo-server/internal/config"
	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/network"
	"github.com/annel0/archipelo-server/internal/player"
	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/storage"
	"github.com/annel0/archipelo-server/internal/tick"
	"github.com/annel0/archipelo-server/internal/vec"
	"github.com/annel0/archipelo-server/internal/world"
)

const storageTimeout = 5 * time.Second

// Players управляет персонажами вошедших игроков: загружает их при входе,
// сохраняет и убирает из мира при выходе. Реализует network.SessionListener.
type Players struct {
	world  *world.World
	store  storage.SnapshotStore
	sched  *tick.Scheduler
	sender player.Sender
	events *EventForwarder
	typeID string
	spawn  config.SpawnConfig
	logger *logging.Logger

	// online аккаунты с активной сессией; меняется только в потоке симуляции.
	online map[string]bool
}

// NewPlayers создаёт менеджер персонажей. store и events могут быть nil.
func NewPlayers(w *world.World, store storage.SnapshotStore, sched *tick.Scheduler, sender player.Sender,
	events *EventForwarder, cfg config.WorldConfig, logger *logging.Logger) *Players {
	if logger == nil {
		logger = logging.GetGameLogger()
	}
	return &Players{
		world:  w,
		store:  store,
		sched:  sched,
		sender: sender,
		events: events,
		typeID: cfg.PlayerType,
		spawn:  cfg.Spawn,
		logger: logger,
		online: make(map[string]bool),
	}
}

// PlayerLoggedIn ставит загрузку персонажа в поток симуляции.
func (p *Players) PlayerLoggedIn(s *network.Session) {
	account, _ := s.Account()
	key := string(s.Key)
	if err := p.sched.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		p.online[account] = true
		if _, err := p.Join(ctx, account); err != nil {
			p.logger.Error("Не удалось ввести игрока %s в мир: %v", account, err)
			p.sender.SendTo(account, &protocol.PopupText{
				Message:  "Не удалось загрузить персонажа",
				Severity: protocol.SeverityError,
			})
			return
		}
		if p.events != nil {
			p.events.playerLoggedIn(account, key)
		}
	}); err != nil {
		p.logger.Warn("Вход %s не обработан: %v", account, err)
	}
}

// PlayerLoggedOut ставит сохранение персонажа в поток симуляции.
func (p *Players) PlayerLoggedOut(s *network.Session) {
	account, _ := s.Account()
	key := string(s.Key)
	if err := p.sched.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		delete(p.online, account)
		if err := p.Leave(ctx, account); err != nil {
			p.logger.Error("Выход игрока %s: %v", account, err)
		}
		if p.events != nil {
			p.events.playerLoggedOut(account, key)
		}
	}); err != nil {
		p.logger.Debug("Выход %s не обработан: %v", account, err)
	}
}

// Online true, если аккаунт вошёл. Вызывается в потоке симуляции.
func (p *Players) Online(account string) bool { return p.online[account] }

// Join помещает персонажа аккаунта в мир: из сохранения или на точку появления.
// Выполняется в потоке симуляции.
func (p *Players) Join(ctx context.Context, account string) (*entity.Entity, error) {
	if e, ok := p.world.Entity(account); ok {
		p.logger.Caution("Персонаж %s уже в мире", account)
		return e, nil
	}

	behavior := player.New(account, p.sender)
	if p.store != nil {
		rec, found, err := p.store.LoadPlayer(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("загрузка персонажа: %w", err)
		}
		if found {
			rec.Name = account
			if rec.Type == "" {
				rec.Type = p.typeID
			}
			e, err := p.world.Restore(ctx, rec, p.spawn.Map, behavior)
			if err != nil {
				return nil, err
			}
			p.logger.Info("Игрок %s вернулся на карту %s", account, e.Location().MapName())
			return e, nil
		}
	}

	e, err := p.spawnFresh(ctx, account, behavior)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Новый игрок %s появился на карте %s", account, p.spawn.Map)
	return e, nil
}

func (p *Players) spawnFresh(ctx context.Context, account string, behavior *player.Behavior) (*entity.Entity, error) {
	dir, err := entity.ParseDirection(p.spawn.Direction)
	if err != nil {
		dir = entity.Down
	}
	pos := vec.Vec2{X: p.spawn.X, Y: p.spawn.Y}
	return p.world.Spawn(ctx, p.typeID, account, p.spawn.Map, pos, dir, behavior)
}

// Leave сохраняет персонажа и убирает его из мира. Выполняется в потоке симуляции.
func (p *Players) Leave(ctx context.Context, account string) error {
	e, ok := p.world.Entity(account)
	if !ok {
		return nil
	}
	var saveErr error
	if p.store != nil {
		rec := storage.Record{Name: e.Name(), Type: e.Type().ID, Snapshot: e.PersistentSnapshot()}
		if err := p.store.SavePlayer(ctx, account, rec); err != nil {
			saveErr = fmt.Errorf("сохранение персонажа: %w", err)
		}
	}
	e.Remove()
	return saveErr
}

// LeaveAll сохраняет и убирает всех игроков. Используется при остановке,
// когда планировщик уже не принимает команды.
func (p *Players) LeaveAll(ctx context.Context) error {
	var errs []error
	for _, name := range p.world.MapNames() {
		m, ok := p.world.GetMap(name)
		if !ok {
			continue
		}
		for _, e := range m.Entities() {
			b, ok := player.FromEntity(e)
			if !ok {
				continue
			}
			if err := p.Leave(ctx, b.Account()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// respawn возвращает погибшего игрока на точку появления с полным здоровьем.
func (p *Players) respawn(e *entity.Entity) {
	b, ok := player.FromEntity(e)
	if !ok {
		return
	}
	account := b.Account()
	if err := p.sched.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		if !p.online[account] {
			return
		}
		if _, ok := p.world.Entity(account); ok {
			return
		}
		if _, err := p.spawnFresh(ctx, account, player.New(account, p.sender)); err != nil {
			p.logger.Error("Не удалось возродить %s: %v", account, err)
		}
	}); err != nil {
		p.logger.Debug("Возрождение %s не выполнено: %v", account, err)
	}
}
