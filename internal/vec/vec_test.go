package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2Arithmetic(t *testing.T) {
	a := Vec2{X: 1, Y: 2}
	b := Vec2{X: 4, Y: 6}

	assert.Equal(t, Vec2{X: 5, Y: 8}, a.Add(b))
	assert.Equal(t, Vec2{X: 3, Y: 4}, b.Sub(a))
	assert.Equal(t, 5.0, a.DistanceTo(b))
	assert.Equal(t, Vec2{X: 2.5, Y: 4}, a.Lerp(b, 0.5))
}

func TestRectIntersects(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 2, H: 2}

	assert.True(t, r.Intersects(Rect{X: 1, Y: 1, W: 2, H: 2}))
	assert.False(t, r.Intersects(Rect{X: 2, Y: 0, W: 1, H: 1}), "касание по ребру не пересечение")
	assert.True(t, r.Contains(Vec2{X: 1.5, Y: 0}))
	assert.False(t, r.Contains(Vec2{X: 2, Y: 0}))
	assert.Equal(t, Vec2{X: 4, Y: 4}, r.Translate(Vec2{X: 3, Y: 3}).Center())
}
