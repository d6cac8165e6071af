// Package protocol описывает пакеты клиент-серверного обмена и их кодеки.
package protocol

import (
	"fmt"

	"github.com/annel0/archipelo-server/internal/snapshot"
)

// Type идентификатор пакета на проводе.
type Type uint16

const (
	TypeLogin Type = iota + 1
	TypeLogout
	TypeTeleport
	TypePopupText
	TypeFormInteract
	TypeEntityAdd
	TypeEntityRemove
	TypeWorldSnapshot
	TypeParticles
	TypeMove
)

var typeNames = map[Type]string{
	TypeLogin:         "login",
	TypeLogout:        "logout",
	TypeTeleport:      "teleport",
	TypePopupText:     "popup_text",
	TypeFormInteract:  "form_interact",
	TypeEntityAdd:     "entity_add",
	TypeEntityRemove:  "entity_remove",
	TypeWorldSnapshot: "world_snapshot",
	TypeParticles:     "particles",
	TypeMove:          "move",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("packet(%d)", uint16(t))
}

// Packet любой пакет протокола.
type Packet interface {
	PacketType() Type
}

// ErrUnknownPacketType неизвестный тип пакета на входе.
var ErrUnknownPacketType = fmt.Errorf("неизвестный тип пакета")

// NewPacket создаёт пустой пакет по типу для декодирования.
func NewPacket(t Type) (Packet, error) {
	switch t {
	case TypeLogin:
		return &Login{}, nil
	case TypeLogout:
		return &Logout{}, nil
	case TypeTeleport:
		return &Teleport{}, nil
	case TypePopupText:
		return &PopupText{}, nil
	case TypeFormInteract:
		return &FormInteract{}, nil
	case TypeEntityAdd:
		return &EntityAdd{}, nil
	case TypeEntityRemove:
		return &EntityRemove{}, nil
	case TypeWorldSnapshot:
		return &WorldSnapshot{}, nil
	case TypeParticles:
		return &Particles{}, nil
	case TypeMove:
		return &Move{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownPacketType, uint16(t))
}

// LoginResult результат входа.
type LoginResult int

const (
	LoginNone LoginResult = iota
	LoginOK
	LoginBadVersion
	LoginBadCredentials
)

func (r LoginResult) String() string {
	switch r {
	case LoginOK:
		return "OK"
	case LoginBadVersion:
		return "BAD_VERSION"
	case LoginBadCredentials:
		return "BAD_LOGIN"
	}
	return "NONE"
}

// Login запрос входа от клиента и ответ сервера.
type Login struct {
	Email    string      `json:"email"`
	Password string      `json:"password,omitempty"`
	Version  string      `json:"version"`
	Result   LoginResult `json:"result,omitempty"`
}

// Logout выход игрока.
type Logout struct{}

// Teleport уведомление о телепорте сущности.
type Teleport struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Direction  int     `json:"direction"`
	MapChanged bool    `json:"map_changed"`
}

// Severity важность всплывающего сообщения.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityCaution
	SeverityError
)

// PopupText всплывающее сообщение игроку.
type PopupText struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// FormInteract действие игрока в форме (диалог, магазин и т.п.).
type FormInteract struct {
	ID      string            `json:"id"`
	Command string            `json:"command"`
	Data    map[string]string `json:"data,omitempty"`
}

// EntityAdd сущность появилась в поле зрения: полный снимок.
type EntityAdd struct {
	Snapshot *snapshot.Snapshot `json:"snapshot"`
}

// EntityRemove сущность исчезла с карты.
type EntityRemove struct {
	Name string `json:"name"`
}

// WorldSnapshot рассылка медленного тика: интерполяция и изменения всех сущностей карты.
type WorldSnapshot struct {
	Map     string               `json:"map"`
	Time    int64                `json:"time"`
	Interp  []*snapshot.Snapshot `json:"interp"`
	Changes []*snapshot.Snapshot `json:"changes,omitempty"`
}

// Particles эффект частиц.
type Particles struct {
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Amount int     `json:"amount"`
}

// Move желаемое положение персонажа от клиента.
type Move struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction int     `json:"direction"`
	Speed     float64 `json:"speed"`
}

func (*Login) PacketType() Type         { return TypeLogin }
func (*Logout) PacketType() Type        { return TypeLogout }
func (*Teleport) PacketType() Type      { return TypeTeleport }
func (*PopupText) PacketType() Type     { return TypePopupText }
func (*FormInteract) PacketType() Type  { return TypeFormInteract }
func (*EntityAdd) PacketType() Type     { return TypeEntityAdd }
func (*EntityRemove) PacketType() Type  { return TypeEntityRemove }
func (*WorldSnapshot) PacketType() Type { return TypeWorldSnapshot }
func (*Particles) PacketType() Type     { return TypeParticles }
func (*Move) PacketType() Type          { return TypeMove }
