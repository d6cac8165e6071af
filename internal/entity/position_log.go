package entity

import (
	"time"

	"github.com/annel0/archipelo-server/internal/vec"
)

// PositionLogWindow сколько истории позиций хранится для запросов с учётом задержки.
const PositionLogWindow = 2 * time.Second

// PositionEntry запись журнала позиций.
type PositionEntry struct {
	Time  time.Time
	Pos   vec.Vec2
	Speed float64
}

// PositionLog ограниченная по времени история позиций сущности.
// Метки времени не убывают: запись со временем раньше последней
// получает время последней записи.
type PositionLog struct {
	entries []PositionEntry
	window  time.Duration
}

func NewPositionLog() *PositionLog {
	return &PositionLog{window: PositionLogWindow}
}

// Add добавляет запись в конец журнала.
func (l *PositionLog) Add(t time.Time, pos vec.Vec2, speed float64) {
	if n := len(l.entries); n > 0 && t.Before(l.entries[n-1].Time) {
		t = l.entries[n-1].Time
	}
	l.entries = append(l.entries, PositionEntry{Time: t, Pos: pos, Speed: speed})
}

// Prune удаляет записи старше окна. Последняя запись до границы окна
// сохраняется, чтобы запрос на самой границе можно было интерполировать.
func (l *PositionLog) Prune(now time.Time) {
	cutoff := now.Add(-l.window)
	drop := 0
	for drop+1 < len(l.entries) && !l.entries[drop+1].Time.After(cutoff) {
		drop++
	}
	if drop > 0 {
		l.entries = append(l.entries[:0], l.entries[drop:]...)
	}
}

// PositionAt позиция на момент t. false, если журнал пуст или t раньше старейшей записи.
// Между записями позиция интерполируется, после последней равна последней.
func (l *PositionLog) PositionAt(t time.Time) (vec.Vec2, bool) {
	n := len(l.entries)
	if n == 0 || t.Before(l.entries[0].Time) {
		return vec.Vec2{}, false
	}
	last := l.entries[n-1]
	if !t.Before(last.Time) {
		return last.Pos, true
	}

	// первая запись строго позже t
	lo, hi := 0, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if l.entries[mid].Time.After(t) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	next := l.entries[lo]
	prev := l.entries[lo-1]

	span := next.Time.Sub(prev.Time)
	if span <= 0 {
		return next.Pos, true
	}
	frac := float64(t.Sub(prev.Time)) / float64(span)
	return prev.Pos.Lerp(next.Pos, frac), true
}

// Clear очищает журнал (после телепорта история недействительна).
func (l *PositionLog) Clear() {
	l.entries = l.entries[:0]
}

func (l *PositionLog) Len() int { return len(l.entries) }

// Entries копия записей.
func (l *PositionLog) Entries() []PositionEntry {
	out := make([]PositionEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Oldest старейшая запись.
func (l *PositionLog) Oldest() (PositionEntry, bool) {
	if len(l.entries) == 0 {
		return PositionEntry{}, false
	}
	return l.entries[0], true
}
