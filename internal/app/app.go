package app

import (
	"context"
	"log/slog"

	"orderwatch/internal/classify"
	"orderwatch/internal/config"
	"orderwatch/internal/infrastructure/health"
	"orderwatch/internal/infrastructure/interval"
	"orderwatch/internal/infrastructure/telegram"
	"orderwatch/internal/infrastructure/woocommerce"
	"orderwatch/internal/ledger"
	"orderwatch/internal/logging"
	"orderwatch/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	reconciler *usecase.Reconciler
	scheduler  *usecase.Scheduler
	health     *health.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	source := woocommerce.NewSource(woocommerce.Config{
		LoginURL:    cfg.Source.LoginURL,
		OrdersURL:   cfg.Source.OrdersURL,
		Email:       cfg.Source.Email,
		Password:    cfg.Source.Password,
		StatusLabel: cfg.Source.StatusLabel,
		Headless:    !cfg.Source.ShowBrowser,
		LoginWait:   cfg.Source.LoginWait(),
		NavTimeout:  cfg.Source.NavTimeout(),
		ActTimeout:  cfg.Source.ActTimeout(),
	}, baseLogger.With("component", "source"))

	notifier := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)

	reconciler := usecase.NewReconciler(usecase.ReconcilerDeps{
		Source:      source,
		Classifier:  classify.New(cfg.Classifier.Markers),
		Ledger:      ledger.New(),
		Notifier:    notifier,
		Logger:      baseLogger.With("component", "reconciler"),
		Parallelism: cfg.Scan.Parallelism,
		Verbose:     cfg.Notifications.Verbose,
	})

	scheduler := usecase.NewScheduler(
		interval.New(cfg.Scan.Interval()),
		reconciler,
		notifier,
		baseLogger.With("component", "scheduler"),
	)

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		reconciler: reconciler,
		scheduler:  scheduler,
		health:     health.NewServer(cfg.Health.Port, baseLogger.With("component", "health")),
	}
}

// Run starts the liveness endpoint and the scan loop, then blocks until the
// context is cancelled and both are torn down.
func (a *Application) Run(ctx context.Context) error {
	healthErr := make(chan error, 1)
	go func() {
		healthErr <- a.health.Start()
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-healthErr:
		if err != nil {
			a.logger.Error("liveness server stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Scan.Interval())
	defer cancel()
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	return a.health.Shutdown(shutdownCtx)
}

// RunOnce executes a single reconciliation cycle, for the scan subcommand.
func (a *Application) RunOnce(ctx context.Context) error {
	report, err := a.reconciler.RunCycle(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("cycle complete",
		"run_id", report.RunID,
		"candidates", report.Candidates,
		"advanced", len(report.Advanced),
		"failed", len(report.Failed),
		"errors", report.Errors,
	)
	return nil
}
