// Package api административный REST API сервера.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/archipelo-server/internal/auth"
	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/middleware"
	"github.com/annel0/archipelo-server/internal/network"
	"github.com/annel0/archipelo-server/internal/tick"
	"github.com/annel0/archipelo-server/internal/world"
)

// callTimeout сколько запрос ждёт выполнения в потоке симуляции.
const callTimeout = 2 * time.Second

// Config содержит зависимости REST сервера
type Config struct {
	Addr      string
	Version   string
	Auth      *auth.RepoAuthenticator
	Tokens    *auth.TokenIssuer
	World     *world.World
	Scheduler *tick.Scheduler
	Sessions  *network.ConnectionRegistry
	// Registry и Gatherer по умолчанию глобальные реестры Prometheus.
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// RestServer представляет REST API сервер
type RestServer struct {
	cfg     Config
	router  *gin.Engine
	logger  *logging.Logger
	metrics *ServerMetrics
	server  *http.Server
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetAPILogger()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("archipelo-rest"))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())
	router.Use(middleware.NewPrometheusMiddleware(cfg.Registry).Handler())
	middleware.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		cfg:     cfg,
		router:  router,
		logger:  cfg.Logger,
		metrics: NewServerMetrics(),
	}
	rs.setupRoutes()
	return rs
}

// Handler HTTP-обработчик сервера; удобно для httptest.
func (rs *RestServer) Handler() http.Handler { return rs.router }

func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.POST("/auth/login", rs.handleLogin)

	// Все остальные эндпоинты только для администраторов
	admin := api.Group("/")
	admin.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	{
		admin.GET("/sessions", rs.handleSessions)
		admin.GET("/maps", rs.handleMaps)
		admin.POST("/maps/:map/save", rs.handleSaveMap)
		admin.GET("/maps/:map/entities/:name", rs.handleEntity)
		admin.GET("/diagnostics", rs.handleDiagnostics)
	}
}

// Start начинает обслуживание запросов в отдельной горутине.
func (rs *RestServer) Start() error {
	ln, err := net.Listen("tcp", rs.cfg.Addr)
	if err != nil {
		return err
	}
	rs.server = &http.Server{
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := rs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.logger.Error("REST API остановлен с ошибкой: %v", err)
		}
	}()
	rs.logger.Info("🌐 REST API слушает %s", ln.Addr())
	return nil
}

// Stop корректно останавливает сервер.
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.server == nil {
		return nil
	}
	return rs.server.Shutdown(ctx)
}

// simCall выполняет fn в потоке симуляции. Возвращает false и пишет ответ 503,
// если симуляция не ответила.
func (rs *RestServer) simCall(c *gin.Context, fn func()) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), callTimeout)
	defer cancel()
	if err := rs.cfg.Scheduler.Call(ctx, fn); err != nil {
		rs.logger.Warn("Запрос %s не выполнен в потоке симуляции: %v", c.FullPath(), err)
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Симуляция недоступна",
		})
		return false
	}
	return true
}
