package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/archipelo-server/internal/auth"
	"github.com/annel0/archipelo-server/internal/world"
)

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
	UserID  uint64 `json:"user_id,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MapInfo сведения о загруженной карте.
type MapInfo struct {
	Name     string `json:"name"`
	Entities int    `json:"entities"`
	Players  int    `json:"players"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": rs.cfg.Version,
		"time":    time.Now().Unix(),
	})
}

func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	user, err := rs.cfg.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		c.JSON(http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Неверный email или пароль",
		})
		return
	}
	if err != nil {
		rs.logger.Error("Ошибка входа %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	token, err := rs.cfg.Tokens.Generate(user)
	if err != nil {
		rs.logger.Error("Ошибка генерации токена для %s: %v", user.Name, err)
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Ошибка генерации токена",
		})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		Message: "Успешная авторизация",
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
	})
}

func (rs *RestServer) handleSessions(c *gin.Context) {
	sessions := rs.cfg.Sessions.List()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Активные сессии",
		Data: gin.H{
			"sessions":      sessions,
			"total":         len(sessions),
			"authenticated": rs.cfg.Sessions.AuthenticatedCount(),
		},
	})
}

func (rs *RestServer) handleMaps(c *gin.Context) {
	var loaded []MapInfo
	if !rs.simCall(c, func() {
		for _, name := range rs.cfg.World.MapNames() {
			m, ok := rs.cfg.World.GetMap(name)
			if !ok {
				continue
			}
			loaded = append(loaded, MapInfo{
				Name:     name,
				Entities: len(m.Entities()),
				Players:  len(m.Observers()),
			})
		}
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Карты",
		Data: gin.H{
			"loaded": loaded,
			"known":  rs.cfg.World.KnownMaps(),
		},
	})
}

func (rs *RestServer) handleSaveMap(c *gin.Context) {
	name := c.Param("map")
	var err error
	if !rs.simCall(c, func() {
		err = rs.cfg.World.SaveMap(c.Request.Context(), name)
	}) {
		return
	}
	if errors.Is(err, world.ErrMapNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Карта не загружена"})
		return
	}
	if err != nil {
		rs.logger.Error("Сохранение карты %s по запросу API: %v", name, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка сохранения"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Карта сохранена"})
}

func (rs *RestServer) handleEntity(c *gin.Context) {
	mapName, name := c.Param("map"), c.Param("name")
	var (
		snap     map[string]interface{}
		mapFound bool
	)
	if !rs.simCall(c, func() {
		m, ok := rs.cfg.World.GetMap(mapName)
		if !ok {
			return
		}
		mapFound = true
		if e, ok := m.Entity(name); ok {
			snap = e.FullSnapshot().ToMap()
		}
	}) {
		return
	}
	switch {
	case !mapFound:
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Карта не загружена"})
	case snap == nil:
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Сущность не найдена"})
	default:
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Полный снимок сущности", Data: snap})
	}
}

func (rs *RestServer) handleDiagnostics(c *gin.Context) {
	data := gin.H{
		"uptime":         rs.metrics.GetUptime(),
		"memory_details": rs.metrics.GetDetailedMemoryStats(),
		"server_time":    time.Now().Unix(),
	}
	if v, err := rs.metrics.GetCPUUsage(); err == nil {
		data["cpu_percent"] = v
	}
	if v, err := rs.metrics.GetSystemCPUUsage(); err == nil {
		data["system_cpu"] = v
	}
	if v, err := rs.metrics.GetRSS(); err == nil {
		data["rss_mb"] = v
	}
	if v, err := rs.metrics.GetSystemMemory(); err == nil {
		data["system_memory_percent"] = v
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Диагностика",
		Data:    data,
	})
}
