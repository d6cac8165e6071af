package entity

import (
	"fmt"
	"strings"

	"github.com/annel0/archipelo-server/internal/vec"
)

// Direction направление взгляда сущности.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Valid true для одного из четырёх направлений.
func (d Direction) Valid() bool { return d >= Up && d <= Left }

// Unit единичный вектор направления (ось Y направлена вниз).
func (d Direction) Unit() vec.Vec2 {
	switch d {
	case Up:
		return vec.Vec2{Y: -1}
	case Right:
		return vec.Vec2{X: 1}
	case Down:
		return vec.Vec2{Y: 1}
	case Left:
		return vec.Vec2{X: -1}
	}
	return vec.Vec2{}
}

// ParseDirection разбирает имя направления.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "up":
		return Up, nil
	case "right":
		return Right, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	}
	return Down, fmt.Errorf("неизвестное направление %q", s)
}
