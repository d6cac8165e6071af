package server

import (
	"sync"

	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/network"
	"github.com/annel0/archipelo-server/internal/player"
	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/world"
)

// FormHandler обрабатывает действие игрока в форме. false оставляет пакет в очереди.
type FormHandler func(e *entity.Entity, form *protocol.FormInteract) bool

// FormRouter направляет пакеты FormInteract обработчику формы по её id.
type FormRouter struct {
	world  *world.World
	logger *logging.Logger

	mu    sync.RWMutex
	forms map[string]FormHandler
}

func NewFormRouter(w *world.World, logger *logging.Logger) *FormRouter {
	if logger == nil {
		logger = logging.GetGameLogger()
	}
	return &FormRouter{world: w, logger: logger, forms: make(map[string]FormHandler)}
}

// Register задаёт обработчик формы id, заменяя прежний.
func (r *FormRouter) Register(id string, h FormHandler) {
	r.mu.Lock()
	r.forms[id] = h
	r.mu.Unlock()
}

// Unregister убирает обработчик формы.
func (r *FormRouter) Unregister(id string) {
	r.mu.Lock()
	delete(r.forms, id)
	r.mu.Unlock()
}

// HandlePacket реализует network.PacketHandler.
func (r *FormRouter) HandlePacket(q *network.QueuedPacket) bool {
	form, ok := q.Packet.(*protocol.FormInteract)
	if !ok {
		return false
	}
	r.mu.RLock()
	h, ok := r.forms[form.ID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e, ok := r.world.Entity(q.Account)
	if !ok {
		r.logger.Debug("Форма %s от %s: персонаж не в мире", form.ID, q.Account)
		return false
	}
	return h(e, form)
}

// MoveHandler применяет пакеты движения к персонажам игроков.
type MoveHandler struct {
	world  *world.World
	logger *logging.Logger
}

func NewMoveHandler(w *world.World, logger *logging.Logger) *MoveHandler {
	if logger == nil {
		logger = logging.GetGameLogger()
	}
	return &MoveHandler{world: w, logger: logger}
}

// HandlePacket реализует network.PacketHandler. Движение без персонажа
// в мире отбрасывается: такой пакет уже нечему применять.
func (h *MoveHandler) HandlePacket(q *network.QueuedPacket) bool {
	mv, ok := q.Packet.(*protocol.Move)
	if !ok {
		return false
	}
	e, ok := h.world.Entity(q.Account)
	if !ok {
		h.logger.Debug("Движение от %s без персонажа", q.Account)
		return true
	}
	b, ok := player.FromEntity(e)
	if !ok || b.Account() != q.Account {
		h.logger.Caution("Сущность %s не принадлежит игроку %s", e.Name(), q.Account)
		return true
	}
	b.ApplyMove(e, mv, q.Arrival)
	return true
}
