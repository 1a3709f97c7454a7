package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/service"
)

// CutoffWorker drives the end-of-shift auto checkout on a fixed cadence.
// The sweep itself is idempotent, so tick frequency only bounds latency.
type CutoffWorker struct {
	worktime *service.WorkTimeService
	interval time.Duration
	logger   *zap.Logger
}

// NewCutoffWorker constructs the worker.
func NewCutoffWorker(worktime *service.WorkTimeService, interval time.Duration, logger *zap.Logger) *CutoffWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CutoffWorker{worktime: worktime, interval: interval, logger: logger}
}

// Run blocks until the context is cancelled, sweeping once per interval.
func (w *CutoffWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.worktime.SweepAutoCheckout(ctx); err != nil {
				w.logger.Error("cutoff sweep failed", zap.Error(err))
			}
		}
	}
}
