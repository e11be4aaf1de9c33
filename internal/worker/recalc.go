package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/liftoff-ranking/internal/config"
	"github.com/liftoff-ranking/internal/service"
)

// Recalculator recalculates every user's ranking
type Recalculator interface {
	RecalculateAll(ctx context.Context) (service.RecalcSummary, error)
}

// RecalcWorker periodically recalculates all rankings. Streaks lapse when a
// UTC day passes without a workout, which no workout event announces.
type RecalcWorker struct {
	recalc  Recalculator
	config  *config.RecalcConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
	last    service.RecalcSummary
}

// NewRecalcWorker creates a new recalculation worker
func NewRecalcWorker(recalc Recalculator, cfg *config.RecalcConfig, logger *slog.Logger) *RecalcWorker {
	return &RecalcWorker{
		recalc: recalc,
		config: cfg,
		logger: logger,
	}
}

// Start begins the background recalculation loop
func (w *RecalcWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.Info("recalc worker started", "interval", w.config.Interval)

	go w.run(ctx, stopCh, doneCh)
	return nil
}

// Stop stops the background loop and waits for an in-flight cycle
func (w *RecalcWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.logger.Info("recalc worker stopped")
	return nil
}

func (w *RecalcWorker) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single recalculation cycle
func (w *RecalcWorker) RunOnce(ctx context.Context) service.RecalcSummary {
	w.logger.Info("starting recalculation cycle")

	summary, err := w.recalc.RecalculateAll(ctx)
	if err != nil {
		w.logger.Error("recalculation cycle failed", "error", err)
	} else {
		w.logger.Info("recalculation cycle completed",
			"duration", summary.Duration,
			"processed", summary.Processed,
			"errors", summary.Failed,
		)
	}

	w.mu.Lock()
	w.last = summary
	w.mu.Unlock()
	return summary
}

// LastSummary returns the outcome of the most recent cycle
func (w *RecalcWorker) LastSummary() service.RecalcSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// IsRunning returns whether the worker is currently running
func (w *RecalcWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
