package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orderwatch/internal/ports"
)

// Scheduler wires the interval driver with the reconciler. Cycles run
// strictly one at a time: the driver invokes the job inline and only starts
// waiting for the next slot after it returns.
type Scheduler struct {
	driver     ports.Scheduler
	reconciler *Reconciler
	notifier   ports.Notifier
	logger     *slog.Logger

	// lastCrash suppresses repeat alerts for the same persistent cycle
	// error. Only the driver goroutine touches it.
	lastCrash string
}

// NewScheduler returns a helper to start/stop the recurring scan.
func NewScheduler(driver ports.Scheduler, reconciler *Reconciler, notifier ports.Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, reconciler: reconciler, notifier: notifier, logger: logger}
}

// Start registers the cycle job with the driver. A failing cycle is logged,
// surfaced once on the alert channel, and never terminates the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.reconciler == nil {
		return nil
	}

	return s.driver.Start(ctx, func(t time.Time) {
		s.runCycle(ctx, t)
	})
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context, trigger time.Time) {
	log := s.log()

	report, err := s.reconciler.RunCycle(ctx)
	if err != nil {
		log.Error("cycle failed", "run_id", report.RunID, "error", err)
		s.reportCrash(ctx, err)
		return
	}

	s.lastCrash = ""
	log.Info("cycle complete",
		"run_id", report.RunID,
		"trigger", trigger.Format(time.RFC3339),
		"candidates", report.Candidates,
		"advanced", len(report.Advanced),
		"failed", len(report.Failed),
		"errors", report.Errors,
	)
}

// reportCrash alerts on whole-cycle failures, once per distinct error text,
// so a broken login does not page every interval until someone fixes it.
func (s *Scheduler) reportCrash(ctx context.Context, err error) {
	if s.notifier == nil {
		return
	}
	msg := fmt.Sprintf("Order watcher error: %v", err)
	if msg == s.lastCrash {
		return
	}
	s.lastCrash = msg
	if nerr := s.notifier.Send(ctx, msg); nerr != nil {
		s.log().Warn("crash notification dropped", "error", nerr)
	}
}

func (s *Scheduler) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
