// Package player связывает сущность игрока с его сетевой сессией.
package player

import (
	"math"
	"time"

	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/protocol"
	"github.com/annel0/archipelo-server/internal/vec"
)

const (
	// moveWindow наибольший интервал между пакетами движения, за который начисляется путь.
	moveWindow = time.Second
	// moveTolerance запас на сетевой джиттер при проверке скорости.
	moveTolerance = 1.25
)

// Sender доставляет пакеты по имени аккаунта.
type Sender interface {
	SendTo(account string, p protocol.Packet) bool
}

// Behavior поведение сущности игрока. Реализует entity.Observer, поэтому
// мир считает такую сущность игроком и рассылает ей пакеты карты.
type Behavior struct {
	entity.BaseBehavior

	account  string
	sender   Sender
	lastMove time.Time
}

// New создаёт поведение игрока аккаунта account.
func New(account string, sender Sender) *Behavior {
	return &Behavior{account: account, sender: sender}
}

// FromEntity возвращает поведение игрока сущности, если это игрок.
func FromEntity(e *entity.Entity) (*Behavior, bool) {
	b, ok := e.Behavior().(*Behavior)
	return b, ok
}

func (b *Behavior) Account() string { return b.account }

// SendPacket реализует entity.Observer.
func (b *Behavior) SendPacket(p protocol.Packet) {
	if b.sender == nil {
		return
	}
	b.sender.SendTo(b.account, p)
}

// Popup показывает игроку всплывающее сообщение.
func (b *Behavior) Popup(message string, severity protocol.Severity) {
	b.SendPacket(&protocol.PopupText{Message: message, Severity: severity})
}

// ApplyMove применяет пакет движения к сущности e. Перемещение дальше, чем
// позволяет скорость типа, урезается, а клиент получает исправленную позицию.
// Возвращает false, если позиция была исправлена или пакет отвергнут.
func (b *Behavior) ApplyMove(e *entity.Entity, mv *protocol.Move, now time.Time) bool {
	logger := e.Context().Logger

	target := vec.Vec2{X: mv.X, Y: mv.Y}
	if !finite(target.X) || !finite(target.Y) || !finite(mv.Speed) {
		logger.Caution("Игрок %s прислал некорректные координаты", e.Name())
		b.correct(e)
		return false
	}

	if dir := entity.Direction(mv.Direction); dir.Valid() {
		e.SetDirection(dir)
	}

	maxSpeed := e.Type().Speed
	speed := math.Max(0, math.Min(mv.Speed, maxSpeed))

	dt := moveWindow
	if !b.lastMove.IsZero() && now.Sub(b.lastMove) < moveWindow {
		dt = now.Sub(b.lastMove)
	}
	b.lastMove = now

	from := e.Position()
	maxDist := maxSpeed * dt.Seconds() * moveTolerance
	dist := from.DistanceTo(target)
	accepted := true
	if dist > maxDist {
		logger.Caution("Игрок %s: перемещение %.2f при допустимом %.2f", e.Name(), dist, maxDist)
		if dist > 0 {
			target = from.Add(target.Sub(from).Mul(maxDist / dist))
		}
		accepted = false
	}

	e.SetPosition(target)
	e.SetSpeed(speed)
	if !accepted {
		b.correct(e)
	}
	return accepted
}

// correct отправляет клиенту серверную позицию его персонажа.
func (b *Behavior) correct(e *entity.Entity) {
	pos := e.Position()
	b.SendPacket(&protocol.Teleport{
		Name:      e.Name(),
		X:         pos.X,
		Y:         pos.Y,
		Direction: int(e.Direction()),
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
