package entity

import (
	"time"

	"github.com/annel0/archipelo-server/internal/snapshot"
)

// Animator текущая анимация сущности.
type Animator struct {
	ID      string
	Meta    string
	Elapsed time.Duration
}

func (a Animator) snapshot() *snapshot.Snapshot {
	return snapshot.New().
		SetString("id", a.ID).
		SetString("meta", a.Meta).
		SetInt("elapsed", a.Elapsed.Milliseconds())
}

func animatorFromSnapshot(s *snapshot.Snapshot, def string) Animator {
	if s == nil {
		return Animator{ID: def}
	}
	return Animator{
		ID:      s.String("id", def),
		Meta:    s.String("meta", ""),
		Elapsed: time.Duration(s.Int("elapsed", 0)) * time.Millisecond,
	}
}

// Animation текущая анимация.
func (e *Entity) Animation() Animator { return e.anim }

// SetAnimation запускает анимацию с начала и кладёт её в изменения.
func (e *Entity) SetAnimation(id, meta string) {
	e.anim = Animator{ID: id, Meta: meta}
	e.changes.SetSnapshot("animation", e.anim.snapshot())
}

// advanceAnimation продвигает анимацию; по окончании не зацикленной
// анимации поведение выбирает следующую, иначе включается анимация по умолчанию.
func (e *Entity) advanceAnimation(dt time.Duration) {
	if e.anim.ID == "" || dt <= 0 {
		return
	}
	e.anim.Elapsed += dt

	def, ok := e.typ.Animations[e.anim.ID]
	if !ok || def.Loop || def.Duration() <= 0 {
		return
	}
	if e.anim.Elapsed < def.Duration() {
		return
	}

	finished := e.anim.ID
	next := ""
	if e.behavior != nil {
		next = e.behavior.AnimationCompleted(e, finished)
	}
	if next == "" {
		next = e.typ.DefaultAnimation
	}
	e.SetAnimation(next, "")
}
