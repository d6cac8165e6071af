package entity

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/annel0/archipelo-server/internal/vec"
	"gopkg.in/yaml.v3"
)

// RectDef именованный прямоугольник коллизии относительно позиции сущности.
type RectDef struct {
	Name string   `yaml:"name"`
	Rect vec.Rect `yaml:",inline"`
	Hard bool     `yaml:"hard"`
}

// AnimationDef описание анимации типа.
type AnimationDef struct {
	Frames  int  `yaml:"frames"`
	FrameMs int  `yaml:"frame_ms"`
	Loop    bool `yaml:"loop"`
}

// Duration полная длительность одного проигрывания.
func (a AnimationDef) Duration() time.Duration {
	return time.Duration(a.Frames*a.FrameMs) * time.Millisecond
}

// Type общий для всех экземпляров дескриптор сущности. После загрузки не меняется.
type Type struct {
	ID               string                  `yaml:"id"`
	MaxHealth        float64                 `yaml:"max_health"`
	Speed            float64                 `yaml:"speed"`
	Styles           int                     `yaml:"styles"`
	ShowHealthBar    bool                    `yaml:"show_health_bar"`
	DefaultAnimation string                  `yaml:"default_animation"`
	FootstepOffset   vec.Vec2                `yaml:"footstep_offset"`
	HeadOffset       vec.Vec2                `yaml:"head_offset"`
	View             vec.Rect                `yaml:"view"`
	Collision        []RectDef               `yaml:"collision"`
	Animations       map[string]AnimationDef `yaml:"animations"`
}

// Validate проверяет дескриптор.
func (t *Type) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("тип без id")
	}
	if t.MaxHealth <= 0 {
		return fmt.Errorf("тип %s: max_health должен быть > 0", t.ID)
	}
	if t.Styles < 1 {
		return fmt.Errorf("тип %s: styles должен быть >= 1", t.ID)
	}
	if t.DefaultAnimation != "" {
		if _, ok := t.Animations[t.DefaultAnimation]; !ok {
			return fmt.Errorf("тип %s: нет анимации по умолчанию %q", t.ID, t.DefaultAnimation)
		}
	}
	return nil
}

// TypeRegistry реестр типов сущностей.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*Type)}
}

// Register добавляет тип; повторный id: ошибка.
func (r *TypeRegistry) Register(t *Type) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.ID]; exists {
		return fmt.Errorf("тип %s уже зарегистрирован", t.ID)
	}
	r.types[t.ID] = t
	return nil
}

func (r *TypeRegistry) Get(id string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	return t, ok
}

// IDs отсортированный список типов.
func (r *TypeRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type typesFile struct {
	Types []*Type `yaml:"types"`
}

// LoadTypes разбирает YAML c описаниями типов и регистрирует их.
func (r *TypeRegistry) LoadTypes(data []byte) error {
	var f typesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("разбор типов сущностей: %w", err)
	}
	for _, t := range f.Types {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// LoadTypesFile читает файл типов.
func (r *TypeRegistry) LoadTypesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("чтение %s: %w", path, err)
	}
	return r.LoadTypes(data)
}
