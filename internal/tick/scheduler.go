// Package tick содержит планировщик симуляции: два периодических прохода
// (медленный и быстрый) и очередь команд, выполняемых в том же потоке.
package tick

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/archipelo-server/internal/logging"
)

// ErrStopped планировщик остановлен, команда не будет выполнена.
var ErrStopped = errors.New("планировщик остановлен")

// Rate вид прохода.
type Rate string

const (
	Low  Rate = "low"
	High Rate = "high"
)

// PassFunc обработчик прохода.
type PassFunc func(now time.Time)

// Config параметры планировщика.
type Config struct {
	LowInterval  time.Duration
	HighInterval time.Duration
}

// DefaultConfig 20 и 60 проходов в секунду.
func DefaultConfig() Config {
	return Config{LowInterval: time.Second / 20, HighInterval: time.Second / 60}
}

// Scheduler выполняет проходы и команды строго последовательно в одной горутине.
type Scheduler struct {
	cfg     Config
	logger  *logging.Logger
	metrics *Metrics
	now     func() time.Time

	passMu sync.Mutex
	low    []PassFunc
	high   []PassFunc

	cmdMu   sync.Mutex
	pending []func()
	wake    chan struct{}
	stopped bool
}

// New создаёт планировщик. metrics может быть nil.
func New(cfg Config, logger *logging.Logger, metrics *Metrics) *Scheduler {
	def := DefaultConfig()
	if cfg.LowInterval <= 0 {
		cfg.LowInterval = def.LowInterval
	}
	if cfg.HighInterval <= 0 {
		cfg.HighInterval = def.HighInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Scheduler{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
}

// SetClock подменяет источник времени (для тестов).
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// OnLow добавляет обработчик медленного прохода. Обработчики вызываются в порядке добавления.
func (s *Scheduler) OnLow(fn PassFunc) {
	s.passMu.Lock()
	s.low = append(s.low, fn)
	s.passMu.Unlock()
}

// OnHigh добавляет обработчик быстрого прохода.
func (s *Scheduler) OnHigh(fn PassFunc) {
	s.passMu.Lock()
	s.high = append(s.high, fn)
	s.passMu.Unlock()
}

// Submit ставит команду в очередь потока симуляции. Не блокируется.
func (s *Scheduler) Submit(fn func()) error {
	s.cmdMu.Lock()
	if s.stopped {
		s.cmdMu.Unlock()
		return ErrStopped
	}
	s.pending = append(s.pending, fn)
	n := len(s.pending)
	s.cmdMu.Unlock()

	s.metrics.pending.Set(float64(n))
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call выполняет fn в потоке симуляции и ждёт завершения.
func (s *Scheduler) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := s.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run крутит цикл до отмены ctx. Проходы и команды никогда не выполняются параллельно.
func (s *Scheduler) Run(ctx context.Context) error {
	lowTicker := time.NewTicker(s.cfg.LowInterval)
	defer lowTicker.Stop()
	highTicker := time.NewTicker(s.cfg.HighInterval)
	defer highTicker.Stop()

	s.logger.Info("Планировщик запущен: low=%v high=%v", s.cfg.LowInterval, s.cfg.HighInterval)
	defer s.stop()

	for {
		select {
		case <-ctx.Done():
			s.DrainCommands()
			s.logger.Info("Планировщик остановлен")
			return ctx.Err()
		case <-s.wake:
			s.DrainCommands()
		case <-highTicker.C:
			s.RunHighPass(s.now())
		case <-lowTicker.C:
			s.RunLowPass(s.now())
		}
	}
}

func (s *Scheduler) stop() {
	s.cmdMu.Lock()
	s.stopped = true
	s.cmdMu.Unlock()
}

// RunLowPass выполняет медленный проход синхронно.
func (s *Scheduler) RunLowPass(now time.Time) {
	s.runPass(Low, now)
}

// RunHighPass выполняет быстрый проход синхронно.
func (s *Scheduler) RunHighPass(now time.Time) {
	s.DrainCommands()
	s.runPass(High, now)
}

func (s *Scheduler) runPass(rate Rate, now time.Time) {
	s.passMu.Lock()
	handlers := s.high
	if rate == Low {
		handlers = s.low
	}
	handlers = append([]PassFunc(nil), handlers...)
	s.passMu.Unlock()

	start := time.Now()
	for _, fn := range handlers {
		s.safely(string(rate), func() { fn(now) })
	}
	s.metrics.passDuration.WithLabelValues(string(rate)).Observe(time.Since(start).Seconds())
	s.metrics.passes.WithLabelValues(string(rate)).Inc()
}

// DrainCommands выполняет все накопленные команды.
func (s *Scheduler) DrainCommands() {
	s.cmdMu.Lock()
	cmds := s.pending
	s.pending = nil
	s.cmdMu.Unlock()
	s.metrics.pending.Set(0)

	for _, cmd := range cmds {
		s.safely("command", cmd)
	}
}

// safely перехватывает панику обработчика, чтобы один сбой не останавливал симуляцию.
func (s *Scheduler) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.panics.Inc()
			s.logger.Error("Паника в %s: %v", what, fmt.Sprint(r))
		}
	}()
	fn()
}
