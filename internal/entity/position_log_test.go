package entity

import (
	"testing"
	"time"

	"github.com/annel0/archipelo-server/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPositionLogTimestampsNeverRegress(t *testing.T) {
	log := NewPositionLog()
	log.Add(t0, vec.Vec2{X: 1}, 1)
	log.Add(t0.Add(-time.Second), vec.Vec2{X: 2}, 1)

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, t0, entries[1].Time, "запись из прошлого получает время последней")
}

func TestPositionLogPruneKeepsWindow(t *testing.T) {
	log := NewPositionLog()
	for i := 0; i <= 30; i++ {
		log.Add(t0.Add(time.Duration(i)*100*time.Millisecond), vec.Vec2{X: float64(i)}, 1)
	}
	now := t0.Add(3 * time.Second)
	log.Prune(now)

	oldest, ok := log.Oldest()
	require.True(t, ok)
	assert.False(t, oldest.Time.After(now.Add(-PositionLogWindow)), "граница окна покрыта")

	for _, e := range log.Entries()[1:] {
		assert.True(t, e.Time.After(now.Add(-PositionLogWindow)))
	}
	assert.Equal(t, 21, log.Len())
}

func TestPositionLogInterpolates(t *testing.T) {
	log := NewPositionLog()
	log.Add(t0, vec.Vec2{X: 0, Y: 0}, 1)
	log.Add(t0.Add(100*time.Millisecond), vec.Vec2{X: 10, Y: 0}, 1)

	pos, ok := log.PositionAt(t0.Add(25 * time.Millisecond))
	require.True(t, ok)
	assert.InDelta(t, 2.5, pos.X, 1e-9)

	pos, ok = log.PositionAt(t0.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, vec.Vec2{X: 10}, pos)

	_, ok = log.PositionAt(t0.Add(-time.Millisecond))
	assert.False(t, ok)
}

func TestPositionLogEqualTimestamps(t *testing.T) {
	log := NewPositionLog()
	log.Add(t0, vec.Vec2{X: 1}, 1)
	log.Add(t0, vec.Vec2{X: 2}, 1)

	pos, ok := log.PositionAt(t0)
	require.True(t, ok)
	assert.Equal(t, vec.Vec2{X: 2}, pos)
}

func TestPositionLogClear(t *testing.T) {
	log := NewPositionLog()
	log.Add(t0, vec.Vec2{}, 0)
	log.Clear()

	assert.Equal(t, 0, log.Len())
	_, ok := log.PositionAt(t0)
	assert.False(t, ok)
}
