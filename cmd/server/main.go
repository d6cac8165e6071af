package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/archipelo-server/internal/api"
	"github.com/annel0/archipelo-server/internal/auth"
	"github.com/annel0/archipelo-server/internal/config"
	"github.com/annel0/archipelo-server/internal/entity"
	"github.com/annel0/archipelo-server/internal/eventbus"
	"github.com/annel0/archipelo-server/internal/logging"
	"github.com/annel0/archipelo-server/internal/observability"
	"github.com/annel0/archipelo-server/internal/server"
	"github.com/annel0/archipelo-server/internal/storage"
)

const stopTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию ARCHIPELO_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	if err := run(*configPath); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("конфигурация: %w", err)
	}
	applyLogLevel(cfg.Logging.Level)

	logging.Info("🎮 Запуск Archipelo Server %s", cfg.Server.Version)
	logging.Info("📡 Конфигурация: WSS=%d, KCP=%d, REST=%d, storage=%s, auth=%s, eventbus=%s",
		cfg.Server.GetWSPort(), cfg.Server.GetKCPPort(), cfg.Server.GetRESTPort(),
		cfg.Storage.Backend, cfg.Auth.Backend, cfg.EventBus.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry, logging.Default())
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Остановка телеметрии: %v", err)
		}
	}()

	types := entity.NewTypeRegistry()
	if err := types.LoadTypesFile(cfg.World.EntityTypes); err != nil {
		return fmt.Errorf("типы сущностей: %w", err)
	}
	logging.Debug("Загружено типов сущностей: %d", len(types.IDs()))

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("Закрытие хранилища: %v", err)
		}
	}()

	users, err := auth.OpenRepository(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("репозиторий пользователей: %w", err)
	}
	defer users.Close()
	authenticator := auth.NewRepoAuthenticator(users, logging.GetComponentLogger(logging.ComponentAuth))
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("JWT: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		logging.Warn("⚠️ auth.jwt_secret не задан, токены не переживут перезапуск")
	}

	bus, err := eventbus.Open(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("шина событий: %w", err)
	}
	defer bus.Close()
	if sub, err := eventbus.StartLoggingListener(bus, logging.GetComponentLogger(logging.ComponentEvents)); err != nil {
		logging.Warn("Не удалось подписать логгер событий: %v", err)
	} else {
		defer sub.Unsubscribe()
	}
	busMetrics := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	busMetrics.Start()
	defer busMetrics.Stop()

	srv, err := server.New(cfg, server.Deps{
		Types:    types,
		Auth:     authenticator,
		Store:    store,
		Bus:      bus,
		Registry: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("сборка сервера: %w", err)
	}

	rest := api.NewRestServer(api.Config{
		Addr:      fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Version:   cfg.Server.Version,
		Auth:      authenticator,
		Tokens:    tokens,
		World:     srv.World(),
		Scheduler: srv.Scheduler(),
		Sessions:  srv.Network().Registry(),
		Gatherer:  prometheus.DefaultGatherer,
	})
	if err := rest.Start(); err != nil {
		return fmt.Errorf("REST API: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := rest.Stop(stopCtx); err != nil {
			logging.Error("Остановка REST API: %v", err)
		}
	}()

	return srv.Run(ctx)
}

func applyLogLevel(name string) {
	if name == "" {
		return
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		logging.Warn("Неизвестный уровень логирования %q, оставлен по умолчанию", name)
		return
	}
	logging.Default().SetLevel(level)
	logging.GetLoggerManager().SetLevel(level)
}
