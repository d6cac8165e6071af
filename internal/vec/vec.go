package vec

import "math"

// Vec2 точка или смещение на карте в тайловых единицах.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mul умножает вектор на скаляр
func (v Vec2) Mul(scalar float64) Vec2 {
	return Vec2{X: v.X * scalar, Y: v.Y * scalar}
}

// Lerp линейная интерполяция от v к other, t в [0,1].
func (v Vec2) Lerp(other Vec2, t float64) Vec2 {
	return Vec2{X: v.X + (other.X-v.X)*t, Y: v.Y + (other.Y-v.Y)*t}
}

// Length возвращает длину вектора
func (v Vec2) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	return v.Sub(other).Length()
}

// Rect прямоугольник: левый верхний угол и размер.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Min() Vec2 { return Vec2{X: r.X, Y: r.Y} }

func (r Rect) Center() Vec2 { return Vec2{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Translate сдвигает прямоугольник на смещение.
func (r Rect) Translate(d Vec2) Rect {
	return Rect{X: r.X + d.X, Y: r.Y + d.Y, W: r.W, H: r.H}
}

// Contains true если точка лежит внутри (правая и нижняя границы исключены).
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Intersects проверяет пересечение прямоугольников с ненулевой площадью.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}
