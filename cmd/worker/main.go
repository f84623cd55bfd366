// Package main - точка входа для фоновых процессов (Worker) Perfect Connect.
//
// Worker отвечает за периодические задачи:
// - Сверка связей с живыми симпатиями (восстановление потерянных записей)
// - Удаление связей, у пары которых не осталось ни одной симпатии
//
// Запись симпатии и запись связи не атомарны, поэтому Worker гарантирует,
// что набор связей в итоге сходится к набору взаимных симпатий.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Moeed-Tahir/perfect-connect/config"
	"github.com/Moeed-Tahir/perfect-connect/internal/app"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/scheduler"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/scheduler/jobs"
	"github.com/Moeed-Tahir/perfect-connect/pkg/logger"
	"github.com/Moeed-Tahir/perfect-connect/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
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
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:     cfg.Observability.LogLevel,
		Format:    cfg.Observability.LogFormat,
		AddCaller: !cfg.IsProduction(),
		Service:   cfg.App.Name + "-worker",
	})
	log.Info().
		Str("env", cfg.App.Environment).
		Str("storage", cfg.Storage.Backend).
		Dur("reconcile_interval", cfg.Reconcile.Interval).
		Msg("starting Perfect Connect Worker")

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

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЛАНИРОВЩИК ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = log
	schedCfg.Metrics = m
	sched := scheduler.New(schedCfg)

	sched.OnJobComplete(func(result scheduler.JobResult) {
		event := log.Debug()
		if !result.Success {
			event = log.Warn().Err(result.Error)
		}
		event.
			Str("job", result.JobName).
			Dur("duration", result.Duration).
			Bool("manual", result.Manual).
			Msg("job finished")
	})

	if container.Features.IsEnabled(config.FeatureScheduledReconcile, nil) {
		job := jobs.NewReconcileConnectionsJob(container.Reconciler(), log, jobs.ReconcileConnectionsConfig{
			BatchSize: cfg.Reconcile.BatchSize,
			Timeout:   cfg.Reconcile.Timeout,
		})
		schedule := scheduler.NewIntervalSchedule(cfg.Reconcile.Interval, cfg.Reconcile.RunOnStart)
		if err := sched.Register(job, schedule); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}
	} else {
		log.Warn().Msg("scheduled reconciliation is disabled by feature flag")
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, info := range sched.ListJobs() {
		log.Info().
			Str("job", info.Name).
			Str("schedule", info.Schedule).
			Bool("enabled", info.Enabled).
			Time("next_run", info.NextRun).
			Msg("job scheduled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info().Msg("Perfect Connect Worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := container.ShutdownContext()
	defer cancel()

	// Stop ждёт завершения текущих задач; ограничиваем ожидание таймаутом.
	done := make(chan error, 1)
	go func() { done <- sched.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("scheduler stop failed")
		}
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown timeout exceeded, abandoning running jobs")
	}

	log.Info().Msg("shutdown completed")
	return nil
}
