package network

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/annel0/archipelo-server/internal/protocol"
)

func queued(p protocol.Packet, at time.Time) *QueuedPacket {
	return &QueuedPacket{Packet: p, From: "1.2.3.4;10.0.0.1;5000", Account: "acc", Arrival: at}
}

func TestPacketQueueExpiry(t *testing.T) {
	t.Run("Unhandled packet is dropped after expiry", func(t *testing.T) {
		q := NewPacketQueue(nil)
		q.Push(queued(&protocol.Move{}, t0))

		q.Update(t0.Add(time.Second))
		assert.Equal(t, 1, q.Len(), "пакет должен ждать обработчика")

		q.Update(t0.Add(5001 * time.Millisecond))
		assert.Equal(t, 0, q.Len())
	})

	t.Run("Expired packet is never offered", func(t *testing.T) {
		q := NewPacketQueue(nil)
		offered := 0
		q.Push(queued(&protocol.Move{}, t0))
		q.AddHandler(PacketHandlerFunc(func(*QueuedPacket) bool {
			offered++
			return true
		}))

		q.Update(t0.Add(PacketExpiry))
		assert.Zero(t, offered)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("Expired counter", func(t *testing.T) {
		m := NewMetrics(nil)
		q := NewPacketQueue(m)
		q.Push(queued(&protocol.Move{}, t0))
		q.Push(queued(&protocol.Move{}, t0.Add(4*time.Second)))

		q.Update(t0.Add(6 * time.Second))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.expired))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.queueDepth))
	})
}

func TestPacketQueueHandlers(t *testing.T) {
	t.Run("Every handler sees the packet", func(t *testing.T) {
		q := NewPacketQueue(nil)
		var seen []string
		q.AddHandler(PacketHandlerFunc(func(*QueuedPacket) bool {
			seen = append(seen, "a")
			return true
		}))
		q.AddHandler(PacketHandlerFunc(func(*QueuedPacket) bool {
			seen = append(seen, "b")
			return false
		}))
		q.Push(queued(&protocol.Move{}, t0))

		handled := q.Update(t0)
		assert.Equal(t, 1, handled)
		assert.Equal(t, []string{"a", "b"}, seen)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("Unhandled packet stays until a handler appears", func(t *testing.T) {
		q := NewPacketQueue(nil)
		q.Push(queued(&protocol.FormInteract{ID: "shop"}, t0))
		q.Update(t0)
		assert.Equal(t, 1, q.Len())

		var got *QueuedPacket
		q.AddHandler(PacketHandlerFunc(func(p *QueuedPacket) bool {
			got = p
			return true
		}))
		q.Update(t0.Add(time.Second))
		if assert.NotNil(t, got) {
			assert.Equal(t, "shop", got.Packet.(*protocol.FormInteract).ID)
			assert.Equal(t, "acc", got.Account)
		}
	})

	t.Run("Handler registered during pass waits for next pass", func(t *testing.T) {
		q := NewPacketQueue(nil)
		late := 0
		q.AddHandler(PacketHandlerFunc(func(*QueuedPacket) bool {
			q.AddHandler(PacketHandlerFunc(func(*QueuedPacket) bool {
				late++
				return false
			}))
			return false
		}))
		q.Push(queued(&protocol.Move{}, t0))

		q.Update(t0)
		assert.Zero(t, late)
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		q := NewPacketQueue(nil)
		calls := 0
		remove := q.AddHandler(PacketHandlerFunc(func(*QueuedPacket) bool {
			calls++
			return false
		}))
		remove()
		q.Push(queued(&protocol.Move{}, t0))
		q.Update(t0)
		assert.Zero(t, calls)
	})

	t.Run("Packets pushed during pass are kept in order", func(t *testing.T) {
		q := NewPacketQueue(nil)
		pushed := false
		q.AddHandler(PacketHandlerFunc(func(p *QueuedPacket) bool {
			if !pushed {
				pushed = true
				q.Push(queued(&protocol.Logout{}, t0))
			}
			return false
		}))
		q.Push(queued(&protocol.Move{}, t0))

		q.Update(t0)
		assert.Equal(t, 2, q.Len())
	})
}

func TestPacketQueueDropFrom(t *testing.T) {
	q := NewPacketQueue(nil)
	q.Push(&QueuedPacket{Packet: &protocol.Move{}, From: "a", Arrival: t0})
	q.Push(&QueuedPacket{Packet: &protocol.Move{}, From: "b", Arrival: t0})
	q.Push(&QueuedPacket{Packet: &protocol.Move{}, From: "a", Arrival: t0})

	assert.Equal(t, 2, q.DropFrom("a"))
	assert.Equal(t, 1, q.Len())
}
