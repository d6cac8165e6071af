package network

import (
	"sync"
	"time"

	"github.com/annel0/archipelo-server/internal/protocol"
)

// PacketExpiry время хранения необработанного пакета.
const PacketExpiry = 5000 * time.Millisecond

// QueuedPacket входящий пакет с временем прихода и источником.
type QueuedPacket struct {
	Packet  protocol.Packet
	From    SessionKey
	Account string
	Arrival time.Time
}

// PacketHandler обработчик входящих пакетов. true означает «пакет обработан».
// Пакет могут просмотреть несколько обработчиков.
type PacketHandler interface {
	HandlePacket(p *QueuedPacket) bool
}

// PacketHandlerFunc адаптер функции к PacketHandler.
type PacketHandlerFunc func(p *QueuedPacket) bool

func (f PacketHandlerFunc) HandlePacket(p *QueuedPacket) bool { return f(p) }

type handlerEntry struct {
	id      uint64
	handler PacketHandler
}

// PacketQueue буфер входящих пакетов. Push вызывается из сетевых горутин,
// Update из потока симуляции.
type PacketQueue struct {
	mu       sync.Mutex
	packets  []*QueuedPacket
	handlers []handlerEntry
	nextID   uint64
	metrics  *Metrics
}

// NewPacketQueue создаёт очередь. metrics может быть nil.
func NewPacketQueue(metrics *Metrics) *PacketQueue {
	return &PacketQueue{metrics: metrics}
}

// Push добавляет пакет в очередь.
func (q *PacketQueue) Push(p *QueuedPacket) {
	q.mu.Lock()
	q.packets = append(q.packets, p)
	q.mu.Unlock()
}

// AddHandler регистрирует обработчик и возвращает функцию отписки.
func (q *PacketQueue) AddHandler(h PacketHandler) func() {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	q.handlers = append(q.handlers, handlerEntry{id: id, handler: h})
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		for i, e := range q.handlers {
			if e.id == id {
				q.handlers = append(q.handlers[:i:i], q.handlers[i+1:]...)
				return
			}
		}
	}
}

// Len число пакетов в очереди.
func (q *PacketQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}

// Update предлагает каждый пакет копии списка обработчиков. Пакет уходит из
// очереди, как только его обработали, или если с момента прихода прошло не
// меньше PacketExpiry; просроченный пакет обработчикам уже не предлагается.
// Возвращает число обработанных пакетов.
func (q *PacketQueue) Update(now time.Time) int {
	q.mu.Lock()
	pending := q.packets
	q.packets = nil
	handlers := make([]PacketHandler, len(q.handlers))
	for i, e := range q.handlers {
		handlers[i] = e.handler
	}
	q.mu.Unlock()

	var keep []*QueuedPacket
	handled, expired := 0, 0
	for _, p := range pending {
		if now.Sub(p.Arrival) >= PacketExpiry {
			expired++
			continue
		}
		consumed := false
		for _, h := range handlers {
			if h.HandlePacket(p) {
				consumed = true
			}
		}
		if consumed {
			handled++
			continue
		}
		keep = append(keep, p)
	}

	q.mu.Lock()
	// Пакеты, пришедшие во время обработки, идут после оставшихся.
	q.packets = append(keep, q.packets...)
	depth := len(q.packets)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.expired.Add(float64(expired))
		q.metrics.queueDepth.Set(float64(depth))
	}
	return handled
}

// DropFrom удаляет все пакеты источника.
func (q *PacketQueue) DropFrom(key SessionKey) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.packets[:0]
	dropped := 0
	for _, p := range q.packets {
		if p.From == key {
			dropped++
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(q.packets); i++ {
		q.packets[i] = nil
	}
	q.packets = kept
	return dropped
}
