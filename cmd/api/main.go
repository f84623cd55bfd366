// Package main - точка входа HTTP API движка подбора Perfect Connect.
//
// API принимает симпатии участников, отдаёт взаимные связи и отчёты
// об общности, а также предоставляет административный запуск сверки.
// Периодическая сверка выполняется отдельным процессом (cmd/worker).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Moeed-Tahir/perfect-connect/config"
	"github.com/Moeed-Tahir/perfect-connect/internal/app"
	"github.com/Moeed-Tahir/perfect-connect/internal/application/command"
	httpapi "github.com/Moeed-Tahir/perfect-connect/internal/interface/http"
	"github.com/Moeed-Tahir/perfect-connect/pkg/logger"
	"github.com/Moeed-Tahir/perfect-connect/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ И МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:     cfg.Observability.LogLevel,
		Format:    cfg.Observability.LogFormat,
		AddCaller: !cfg.IsProduction(),
		Service:   cfg.App.Name + "-api",
	})
	log.Info().
		Str("env", cfg.App.Environment).
		Str("storage", cfg.Storage.Backend).
		Bool("redis", !cfg.Redis.Disabled).
		Msg("starting Perfect Connect API")

	// nil-менеджер метрик безопасен: все методы Record* становятся no-op.
	var m *metrics.Manager
	if cfg.Observability.MetricsEnabled {
		m = metrics.NewManager(metrics.WithNamespace(cfg.Observability.MetricsPrefix))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩА, REDIS, EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	container, err := app.New(ctx, cfg, log, m)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() {
		log.Info().Msg("closing connections...")
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("error while closing connections")
		}
	}()

	if err := container.SubscribeNotifications(); err != nil {
		return fmt.Errorf("failed to subscribe notifications: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ОБРАБОТЧИКИ (CQRS)
	// ─────────────────────────────────────────────────────────────────────────
	queries := container.Queries()
	deps := httpapi.Dependencies{
		ToggleInterest:    container.ToggleInterest(),
		UpsertParticipant: command.NewUpsertParticipantHandler(container.Participants),
		SetProgramPause:   command.NewSetProgramPauseHandler(container.Participants, container.Bus),
		BlockParticipant:  command.NewBlockParticipantHandler(container.Participants, container.Blocks),
		Reconcile:         container.Reconciler(),

		GetConnections:     queries.GetConnections,
		GetCommonalities:   queries.GetCommonalities,
		ListInterests:      queries.ListInterests,
		HasPendingInterest: queries.HasPendingInterest,
		DiscoverCandidates: queries.DiscoverCandidates,

		Features:      container.Features,
		HealthChecker: container.Health,
		Metrics:       m,
		Logger:        log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	srvCfg := httpapi.DefaultConfig()
	srvCfg.Addr = cfg.HTTP.Addr
	if cfg.HTTP.ReadTimeout > 0 {
		srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	}
	if cfg.HTTP.WriteTimeout > 0 {
		srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	}
	if cfg.HTTP.IdleTimeout > 0 {
		srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	}
	srvCfg.AllowedOrigins = cfg.HTTP.CORSOrigins
	srvCfg.RateLimit = cfg.HTTP.RateLimit
	srvCfg.RateWindow = cfg.HTTP.RateWindow
	srvCfg.APIKeyHashes = cfg.HTTP.APIKeyHashes

	server, err := httpapi.NewServer(srvCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := container.ShutdownContext()
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("shutdown completed")
	return nil
}
