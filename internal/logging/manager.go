package logging

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Имена компонентов сервера.
const (
	ComponentServer  = "server"
	ComponentNetwork = "network"
	ComponentGame    = "game"
	ComponentStorage = "storage"
	ComponentAPI     = "api"
	ComponentAuth    = "auth"
	ComponentEvents  = "events"
)

// LoggerManager раздаёт логгеры компонентов и держит общий уровень.
type LoggerManager struct {
	mu       sync.RWMutex
	loggers  map[string]*Logger
	factory  func(component string) (*Logger, error)
	level    LogLevel
	levelSet bool
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// NewLoggerManager создаёт менеджер; factory == nil означает файловые логгеры NewLogger.
func NewLoggerManager(factory func(component string) (*Logger, error)) *LoggerManager {
	if factory == nil {
		factory = NewLogger
	}
	return &LoggerManager{
		loggers: make(map[string]*Logger),
		factory: factory,
	}
}

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = NewLoggerManager(nil)
	})
	return globalManager
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении.
// Новый логгер получает общий уровень, если он задан через SetLevel.
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	logger, err := lm.factory(component)
	if err != nil {
		return nil, fmt.Errorf("логгер компонента %s: %w", component, err)
	}
	if lm.levelSet {
		logger.SetLevel(lm.level)
	}
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер или консольный fallback при ошибке
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		return NewConsoleLogger(component)
	}
	return logger
}

// SetLevel меняет уровень всех уже созданных логгеров и запоминает его для будущих.
func (lm *LoggerManager) SetLevel(level LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.level, lm.levelSet = level, true
	for _, logger := range lm.loggers {
		logger.SetLevel(level)
	}
}

// SetLogLevel устанавливает уровень одного компонента.
func (lm *LoggerManager) SetLogLevel(component string, level LogLevel) error {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("логгер компонента %s не создан", component)
	}
	logger.SetLevel(level)
	return nil
}

// ListComponents возвращает отсортированный список компонентов.
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// CloseAll закрывает все логгеры и забывает их.
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("закрытие логгера %s: %w", component, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetNetworkLogger() *Logger { return GetComponentLogger(ComponentNetwork) }
func GetServerLogger() *Logger  { return GetComponentLogger(ComponentServer) }
func GetGameLogger() *Logger    { return GetComponentLogger(ComponentGame) }
func GetStorageLogger() *Logger { return GetComponentLogger(ComponentStorage) }
func GetAPILogger() *Logger     { return GetComponentLogger(ComponentAPI) }
