// Package middleware содержит gin-middleware наблюдаемости для REST API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/archipelo-server/internal/logging"
)

// TraceIDKey ключ trace-ID в gin.Context.
const TraceIDKey = "trace_id"

// Заголовки trace-ID: входящий от клиента и исходящий в ответе.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderTraceID   = "X-Trace-Id"
)

// requestTraceID выбирает trace-ID: span OpenTelemetry, затем заголовок клиента, затем новый UUID.
func requestTraceID(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	if id := c.GetHeader(HeaderRequestID); id != "" && len(id) <= 64 {
		return id
	}
	return uuid.NewString()
}

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи.
type RequestLogger struct {
	logger *logging.Logger
}

// NewRequestLogger создаёт middleware; logger == nil означает логгер API.
func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	if logger == nil {
		logger = logging.GetAPILogger()
	}
	return &RequestLogger{logger: logger}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := requestTraceID(c)
		c.Set(TraceIDKey, traceID)
		c.Header(HeaderTraceID, traceID)

		start := time.Now()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		rl.logger.Debug("[HTTP] ▶ %s %s ip=%s trace=%s", method, path, c.ClientIP(), traceID)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= 500:
			rl.logger.Error("[HTTP] ◀ %s %s %d %s trace=%s", method, path, status, latency, traceID)
		case status == 401 || status == 403:
			rl.logger.Caution("[HTTP] ◀ %s %s %d %s ip=%s trace=%s", method, path, status, latency, c.ClientIP(), traceID)
		default:
			rl.logger.Info("[HTTP] ◀ %s %s %d %s trace=%s", method, path, status, latency, traceID)
		}
	}
}
