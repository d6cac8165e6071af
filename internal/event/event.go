// Package event содержит синхронные отменяемые хуки, через которые
// проходят мутации сущностей (лечение, смерть, телепорт, взаимодействие).
package event

import "sync"

// Event событие, которое обработчик может отменить.
type Event interface {
	IsCancelled() bool
}

// Cancellable встраивается в структуры событий.
type Cancellable struct {
	cancelled bool
}

func (c *Cancellable) IsCancelled() bool { return c.cancelled }

// Cancel отменяет событие. Следующий обработчик может снять отмену через SetCancelled(false).
func (c *Cancellable) Cancel() { c.cancelled = true }

func (c *Cancellable) SetCancelled(v bool) { c.cancelled = v }

// Handler обработчик события. Может менять изменяемые поля события.
type Handler[E Event] func(e E)

type registration[E Event] struct {
	id       uint64
	priority int
	fn       Handler[E]
}

// Pipeline упорядоченный список обработчиков одного типа события.
// Обработчики с большим приоритетом вызываются раньше, при равном приоритете
// в порядке регистрации. Все обработчики вызываются даже после отмены.
type Pipeline[E Event] struct {
	mu       sync.RWMutex
	handlers []registration[E]
	nextID   uint64
}

// Register добавляет обработчик с приоритетом 0 и возвращает функцию отписки.
func (p *Pipeline[E]) Register(h Handler[E]) func() {
	return p.RegisterPriority(0, h)
}

// RegisterPriority добавляет обработчик с заданным приоритетом.
func (p *Pipeline[E]) RegisterPriority(priority int, h Handler[E]) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	reg := registration[E]{id: id, priority: priority, fn: h}

	pos := len(p.handlers)
	for i, r := range p.handlers {
		if priority > r.priority {
			pos = i
			break
		}
	}
	p.handlers = append(p.handlers, registration[E]{})
	copy(p.handlers[pos+1:], p.handlers[pos:])
	p.handlers[pos] = reg

	return func() { p.unregister(id) }
}

func (p *Pipeline[E]) unregister(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.handlers {
		if r.id == id {
			p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
			return
		}
	}
}

// Len количество обработчиков.
func (p *Pipeline[E]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}

// Trigger синхронно прогоняет событие через обработчики и
// возвращает true, если в итоге событие отменено.
func (p *Pipeline[E]) Trigger(e E) bool {
	p.mu.RLock()
	handlers := make([]registration[E], len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	for _, r := range handlers {
		r.fn(e)
	}
	return e.IsCancelled()
}
