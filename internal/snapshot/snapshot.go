// Package snapshot реализует упорядоченный набор типизированных полей,
// которым сущности описывают своё состояние клиентам и хранилищу.
package snapshot

import (
	"fmt"

	"github.com/annel0/archipelo-server/internal/vec"
)

// Kind тип значения поля.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindBool
	KindString
	KindSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func parseKind(s string) (Kind, error) {
	for k := KindInt; k <= KindSnapshot; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("неизвестный тип поля %q", s)
}

// Variant вид снимка.
type Variant uint8

const (
	// Full полное состояние для наблюдателя, впервые увидевшего сущность.
	Full Variant = iota
	// Changes накопленные изменения с прошлой рассылки.
	Changes
	// Interp данные для интерполяции на клиенте, отправляются каждый медленный тик.
	Interp
	// Persistent состояние для сохранения между сессиями.
	Persistent
)

func (v Variant) String() string {
	switch v {
	case Full:
		return "full"
	case Changes:
		return "changes"
	case Interp:
		return "interp"
	case Persistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// Value типизированное значение поля.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	snap *Snapshot
}

func IntValue(v int64) Value { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }
func NestedValue(v *Snapshot) Value { return Value{kind: KindSnapshot, snap: v} }

func (v Value) Kind() Kind { return v.kind }

// Interface возвращает значение как interface{} (int64, float64, bool, string, *Snapshot).
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindSnapshot:
		return v.snap
	}
	return nil
}

// Field пара ключ-значение.
type Field struct {
	Key   string
	Value Value
}

// Snapshot упорядоченное отображение имя поля -> значение.
// Повторная запись ключа заменяет значение, сохраняя позицию.
type Snapshot struct {
	fields []Field
	index  map[string]int
}

// New создаёт пустой снимок.
func New() *Snapshot {
	return &Snapshot{index: make(map[string]int)}
}

func (s *Snapshot) set(key string, v Value) *Snapshot {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[key]; ok {
		s.fields[i].Value = v
		return s
	}
	s.index[key] = len(s.fields)
	s.fields = append(s.fields, Field{Key: key, Value: v})
	return s
}

func (s *Snapshot) Set(key string, v Value) *Snapshot { return s.set(key, v) }
func (s *Snapshot) SetInt(key string, v int64) *Snapshot { return s.set(key, IntValue(v)) }
func (s *Snapshot) SetFloat(key string, v float64) *Snapshot { return s.set(key, FloatValue(v)) }
func (s *Snapshot) SetBool(key string, v bool) *Snapshot { return s.set(key, BoolValue(v)) }
func (s *Snapshot) SetString(key string, v string) *Snapshot { return s.set(key, StringValue(v)) }
func (s *Snapshot) SetSnapshot(key string, v *Snapshot) *Snapshot {
	return s.set(key, NestedValue(v))
}

// SetPoint записывает точку вложенным снимком {x, y}.
func (s *Snapshot) SetPoint(key string, p vec.Vec2) *Snapshot {
	return s.set(key, NestedValue(New().SetFloat("x", p.X).SetFloat("y", p.Y)))
}

// Get возвращает значение поля.
func (s *Snapshot) Get(key string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	i, ok := s.index[key]
	if !ok {
		return Value{}, false
	}
	return s.fields[i].Value, true
}

func (s *Snapshot) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Int возвращает целое поле; float усекается, иначе def.
func (s *Snapshot) Int(key string, def int64) int64 {
	v, ok := s.Get(key)
	switch {
	case !ok:
		return def
	case v.kind == KindInt:
		return v.i
	case v.kind == KindFloat:
		return int64(v.f)
	}
	return def
}

// Float возвращает вещественное поле; int приводится, иначе def.
func (s *Snapshot) Float(key string, def float64) float64 {
	v, ok := s.Get(key)
	switch {
	case !ok:
		return def
	case v.kind == KindFloat:
		return v.f
	case v.kind == KindInt:
		return float64(v.i)
	}
	return def
}

func (s *Snapshot) Bool(key string, def bool) bool {
	if v, ok := s.Get(key); ok && v.kind == KindBool {
		return v.b
	}
	return def
}

func (s *Snapshot) String(key string, def string) string {
	if v, ok := s.Get(key); ok && v.kind == KindString {
		return v.s
	}
	return def
}

// Nested возвращает вложенный снимок или nil.
func (s *Snapshot) Nested(key string) *Snapshot {
	if v, ok := s.Get(key); ok && v.kind == KindSnapshot {
		return v.snap
	}
	return nil
}

// Point читает точку, записанную SetPoint.
func (s *Snapshot) Point(key string, def vec.Vec2) vec.Vec2 {
	n := s.Nested(key)
	if n == nil {
		return def
	}
	return vec.Vec2{X: n.Float("x", def.X), Y: n.Float("y", def.Y)}
}

// Fields возвращает поля в порядке записи.
func (s *Snapshot) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Keys возвращает имена полей в порядке записи.
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

func (s *Snapshot) IsEmpty() bool { return s.Len() == 0 }

// Clear удаляет все поля.
func (s *Snapshot) Clear() {
	s.fields = s.fields[:0]
	s.index = make(map[string]int)
}

// Merge переносит поля other поверх s.
func (s *Snapshot) Merge(other *Snapshot) *Snapshot {
	for _, f := range other.Fields() {
		s.set(f.Key, f.Value)
	}
	return s
}

// Clone глубокая копия.
func (s *Snapshot) Clone() *Snapshot {
	c := New()
	for _, f := range s.Fields() {
		v := f.Value
		if v.kind == KindSnapshot && v.snap != nil {
			v.snap = v.snap.Clone()
		}
		c.set(f.Key, v)
	}
	return c
}

// Equal сравнивает содержимое и порядок полей.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i, f := range s.fields {
		g := o.fields[i]
		if f.Key != g.Key || f.Value.kind != g.Value.kind {
			return false
		}
		if f.Value.kind == KindSnapshot {
			if !f.Value.snap.Equal(g.Value.snap) {
				return false
			}
			continue
		}
		if f.Value.Interface() != g.Value.Interface() {
			return false
		}
	}
	return true
}

// ToMap переводит снимок в map для JSON-ответов и structpb.
// Порядок полей при этом теряется.
func (s *Snapshot) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, s.Len())
	for _, f := range s.Fields() {
		switch f.Value.kind {
		case KindSnapshot:
			m[f.Key] = f.Value.snap.ToMap()
		case KindInt:
			m[f.Key] = float64(f.Value.i)
		default:
			m[f.Key] = f.Value.Interface()
		}
	}
	return m
}
