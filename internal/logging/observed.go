package logging

import (
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedLogger возвращает логгер, записи которого можно проверить в тестах.
func NewObservedLogger(component string) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return fromCore(component, core, nil), logs
}

// CautionCount считает записи уровня CAUTION.
func CautionCount(logs *observer.ObservedLogs) int {
	n := 0
	for _, e := range logs.All() {
		for _, f := range e.Context {
			if f.Key == "caution" {
				n++
				break
			}
		}
	}
	return n
}
