package entity

import (
	"context"
	"time"

	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/vec"
)

// Map карта, которой принадлежит сущность.
type Map interface {
	Name() string
	// AddEntity регистрирует сущность на карте и показывает её наблюдателям.
	AddEntity(e *Entity)
	// RemoveEntity снимает сущность с карты.
	RemoveEntity(e *Entity)
	// Observers игроки на карте.
	Observers() []Observer
	SpawnParticles(kind string, at vec.Vec2, amount int)
}

// MapRegistry реестр карт мира.
type MapRegistry interface {
	IsMapLoaded(name string) bool
	LoadMap(ctx context.Context, name string) error
	Map(name string) (Map, bool)
}

// Listener получает уведомления о свершившихся (не отменённых) событиях.
type Listener interface {
	EntityDied(e *Entity, cause *Entity)
	EntityTeleported(e *Entity, fromMap string, mapChanged bool)
}

// Context явные зависимости сущностей вместо глобальных синглтонов.
type Context struct {
	Maps     MapRegistry
	Hooks    *Hooks
	Logger   *logging.Logger
	Listener Listener
	Now      func() time.Time
}

// NewContext создаёт контекст с пустыми хуками.
func NewContext(maps MapRegistry, logger *logging.Logger) *Context {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Context{
		Maps:   maps,
		Hooks:  &Hooks{},
		Logger: logger,
		Now:    time.Now,
	}
}
