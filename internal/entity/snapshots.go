package entity

import "github.com/annel0/archipelo-server/internal/snapshot"

func (e *Entity) identity() *snapshot.Snapshot {
	return snapshot.New().SetString("name", e.name).SetString("type", e.typ.ID)
}

func (e *Entity) editByComponents(v snapshot.Variant, s *snapshot.Snapshot) *snapshot.Snapshot {
	for _, c := range e.components {
		c.EditSnapshot(e, v, s)
	}
	return s
}

// FullSnapshot полное состояние для нового наблюдателя.
func (e *Entity) FullSnapshot() *snapshot.Snapshot {
	s := e.identity().
		SetPoint("pos", e.loc.Pos).
		SetInt("direction", int64(e.loc.Direction)).
		SetInt("style", int64(e.style))
	if e.typ.ShowHealthBar {
		s.SetFloat("health", e.health).SetFloat("max_health", e.typ.MaxHealth)
	}
	s.SetSnapshot("animation", e.anim.snapshot())
	return e.editByComponents(snapshot.Full, s)
}

// ChangesSnapshot накопленные изменения с идентификацией или nil, если изменений нет.
func (e *Entity) ChangesSnapshot() *snapshot.Snapshot {
	delta := e.editByComponents(snapshot.Changes, e.changes.Clone())
	if delta.IsEmpty() {
		return nil
	}
	return e.identity().Merge(delta)
}

// InterpSnapshot данные для плавного движения на клиенте.
func (e *Entity) InterpSnapshot() *snapshot.Snapshot {
	s := snapshot.New().
		SetString("name", e.name).
		SetPoint("pos", e.loc.Pos).
		SetInt("direction", int64(e.loc.Direction)).
		SetFloat("speed", e.speed)
	return e.editByComponents(snapshot.Interp, s)
}

// PersistentSnapshot состояние для сохранения.
func (e *Entity) PersistentSnapshot() *snapshot.Snapshot {
	s := snapshot.New().
		SetString("map", e.loc.MapName()).
		SetPoint("pos", e.loc.Pos).
		SetInt("direction", int64(e.loc.Direction)).
		SetInt("style", int64(e.style)).
		SetFloat("health", e.health).
		SetSnapshot("animation", e.anim.snapshot())
	return e.editByComponents(snapshot.Persistent, s)
}

// Snapshot снимок указанного вида.
func (e *Entity) Snapshot(v snapshot.Variant) *snapshot.Snapshot {
	switch v {
	case snapshot.Changes:
		return e.ChangesSnapshot()
	case snapshot.Interp:
		return e.InterpSnapshot()
	case snapshot.Persistent:
		return e.PersistentSnapshot()
	default:
		return e.FullSnapshot()
	}
}
