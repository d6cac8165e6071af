package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tick      TickConfig      `yaml:"tick"`
	World     WorldConfig     `yaml:"world"`
	Network   NetworkConfig   `yaml:"network"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	// Version версия протокола; клиент с другой версией получает BAD_VERSION.
	Version  string `yaml:"version"`
	WSPort   int    `yaml:"ws_port"`
	KCPPort  int    `yaml:"kcp_port"`
	RESTPort int    `yaml:"rest_port"`
	TLSCert  string `yaml:"tls_cert"`
	TLSKey   string `yaml:"tls_key"`
	KCPKey   string `yaml:"kcp_key"`
	KCPSalt  string `yaml:"kcp_salt"`
}

type TickConfig struct {
	LowRateHz  int `yaml:"low_rate_hz"`
	HighRateHz int `yaml:"high_rate_hz"`
}

type SpawnConfig struct {
	Map       string  `yaml:"map"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Direction string  `yaml:"direction"`
}

type WorldConfig struct {
	Maps        []string    `yaml:"maps"`
	PlayerType  string      `yaml:"player_type"`
	Spawn       SpawnConfig `yaml:"spawn"`
	EntityTypes string      `yaml:"entity_types"`
}

type NetworkConfig struct {
	Codec                string `yaml:"codec"` // json | proto
	CompressionThreshold int    `yaml:"compression_threshold"`
	SendBuffer           int    `yaml:"send_buffer"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"` // memory | badger | redis | mongo
	BadgerPath string `yaml:"badger_path"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	MongoURI   string `yaml:"mongo_uri"`
	MongoDB    string `yaml:"mongo_db"`
}

type AuthConfig struct {
	Backend   string `yaml:"backend"` // memory | maria | mongo
	MariaDSN  string `yaml:"maria_dsn"`
	MongoURI  string `yaml:"mongo_uri"`
	MongoDB   string `yaml:"mongo_db"`
	JWTSecret string `yaml:"jwt_secret"`
}

type EventBusConfig struct {
	Backend   string `yaml:"backend"` // memory | jetstream
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Version: "1.0.0"},
		Tick:   TickConfig{LowRateHz: 20, HighRateHz: 60},
		World: WorldConfig{
			Maps:        []string{"start"},
			PlayerType:  "player",
			Spawn:       SpawnConfig{Map: "start", Direction: "down"},
			EntityTypes: "configs/entity_types.yaml",
		},
		Network:   NetworkConfig{Codec: "json", CompressionThreshold: 1024, SendBuffer: 256},
		Storage:   StorageConfig{Backend: "memory", MongoDB: "archipelo"},
		Auth:      AuthConfig{Backend: "memory", MongoDB: "archipelo"},
		EventBus:  EventBusConfig{Backend: "memory", Stream: "ARCHIPELO", Retention: 24},
		Telemetry: TelemetryConfig{ServiceName: "archipelo-server"},
		Logging:   LoggingConfig{Level: "INFO"},
	}
}

// GetWSPort возвращает порт WebSocket с поддержкой fallback значений
func (s *ServerConfig) GetWSPort() int {
	return getPortWithEnvFallback(s.WSPort, "ARCHIPELO_WS_PORT", 8443)
}

// GetKCPPort возвращает KCP порт с поддержкой fallback значений
func (s *ServerConfig) GetKCPPort() int {
	return getPortWithEnvFallback(s.KCPPort, "ARCHIPELO_KCP_PORT", 7778)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "ARCHIPELO_REST_PORT", 8088)
}

// LowInterval период медленного тика.
func (t TickConfig) LowInterval() time.Duration {
	return hzToInterval(t.LowRateHz, 20)
}

// HighInterval период быстрого тика.
func (t TickConfig) HighInterval() time.Duration {
	return hzToInterval(t.HighRateHz, 60)
}

func hzToInterval(hz, def int) time.Duration {
	if hz <= 0 {
		hz = def
	}
	return time.Second / time.Duration(hz)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	if c.Server.Version == "" {
		return fmt.Errorf("server.version не задан")
	}
	if c.Tick.LowRateHz > 0 && c.Tick.HighRateHz > 0 && c.Tick.LowRateHz > c.Tick.HighRateHz {
		return fmt.Errorf("tick.low_rate_hz (%d) больше high_rate_hz (%d)", c.Tick.LowRateHz, c.Tick.HighRateHz)
	}
	switch c.Storage.Backend {
	case "memory", "badger", "redis", "mongo":
	default:
		return fmt.Errorf("неизвестный storage.backend %q", c.Storage.Backend)
	}
	switch c.Auth.Backend {
	case "memory", "maria", "mongo":
	default:
		return fmt.Errorf("неизвестный auth.backend %q", c.Auth.Backend)
	}
	switch c.Network.Codec {
	case "json", "proto":
	default:
		return fmt.Errorf("неизвестный network.codec %q", c.Network.Codec)
	}
	if len(c.World.Maps) == 0 {
		return fmt.Errorf("world.maps пуст")
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV ARCHIPELO_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("ARCHIPELO_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
