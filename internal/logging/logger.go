package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	CAUTION
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case CAUTION:
		return "CAUTION"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// zapLevel отображает уровень на zap. TRACE пишется как debug, CAUTION как warn.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case TRACE, DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case CAUTION, WARN:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ParseLevel разбирает имя уровня из конфигурации.
func ParseLevel(name string) (LogLevel, error) {
	for l := TRACE; l <= ERROR; l++ {
		if l.String() == name {
			return l, nil
		}
	}
	return INFO, fmt.Errorf("неизвестный уровень логирования %q", name)
}

// Logger компонентный логгер поверх zap.
type Logger struct {
	component string
	sugar     *zap.SugaredLogger
	file      *os.File

	mu       sync.RWMutex
	minLevel LogLevel
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

func newConsoleCore(level zapcore.LevelEnabler) zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000")
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level)
}

func newFileCore(file *os.File) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel)
}

// NewLogger создаёт логгер компонента: консоль + JSON файл в logs/.
func NewLogger(component string) (*Logger, error) {
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории logs: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join("logs", fmt.Sprintf("%s_%s.log", component, timestamp))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	core := zapcore.NewTee(newConsoleCore(zapcore.InfoLevel), newFileCore(file))
	return fromCore(component, core, file), nil
}

// NewConsoleLogger создаёт логгер только с выводом в stdout.
func NewConsoleLogger(component string) *Logger {
	return fromCore(component, newConsoleCore(zapcore.DebugLevel), nil)
}

// NewNopLogger возвращает логгер, который ничего не пишет.
func NewNopLogger() *Logger {
	return fromCore("nop", zapcore.NewNopCore(), nil)
}

func fromCore(component string, core zapcore.Core, file *os.File) *Logger {
	z := zap.New(core)
	if component != "" {
		z = z.Named(component)
	}
	return &Logger{
		component: component,
		sugar:     z.Sugar(),
		file:      file,
		minLevel:  DEBUG,
	}
}

// Component возвращает имя компонента логгера.
func (l *Logger) Component() string { return l.component }

// SetLevel задаёт минимальный уровень сообщений.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// With возвращает дочерний логгер с дополнительными полями.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	l.mu.RLock()
	lvl := l.minLevel
	l.mu.RUnlock()
	return &Logger{component: l.component, sugar: l.sugar.With(keysAndValues...), minLevel: lvl}
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.RLock()
	skip := level < l.minLevel
	l.mu.RUnlock()
	if skip {
		return
	}

	msg := fmt.Sprintf(format, args...)
	s := l.sugar
	if level == CAUTION {
		s = s.With("caution", true)
	}
	switch level.zapLevel() {
	case zapcore.DebugLevel:
		s.Debug(msg)
	case zapcore.InfoLevel:
		s.Info(msg)
	case zapcore.WarnLevel:
		s.Warn(msg)
	default:
		s.Error(msg)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }

// Caution логирует восстановимое нарушение (данные исправлены, работа продолжается).
func (l *Logger) Caution(format string, args ...interface{}) { l.log(CAUTION, format, args...) }
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// Close сбрасывает буферы и закрывает файл логов.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.sugar.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// InitDefaultLogger инициализирует глобальный логгер.
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	SetDefaultLogger(logger)
	return nil
}

// SetDefaultLogger подменяет глобальный логгер (используется в тестах).
func SetDefaultLogger(logger *Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// CloseDefaultLogger закрывает глобальный логгер.
func CloseDefaultLogger() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger != nil {
		_ = defaultLogger.Close()
		defaultLogger = nil
	}
}

// Default возвращает глобальный логгер; до инициализации пишет в консоль.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewConsoleLogger("")
	}
	return defaultLogger
}

func Trace(format string, args ...interface{}) { Default().Trace(format, args...) }
func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }
func Info(format string, args ...interface{}) { Default().Info(format, args...) }
func Caution(format string, args ...interface{}) { Default().Caution(format, args...) }
func Warn(format string, args ...interface{}) { Default().Warn(format, args...) }
func Error(format string, args ...interface{}) { Default().Error(format, args...) }

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}

// LogProtocolError логирует ошибки десериализации протокола
func LogProtocolError(logger *Logger, connID string, err error, data []byte) {
	logger.Error("Protocol error from %s: %v", connID, err)
	if len(data) > 0 {
		logger.Debug("Raw data (%d bytes):\n%s", len(data), HexDump(data))
	}
}
