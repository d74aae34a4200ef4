package services

import (
	"context"
	"time"

	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

// RetentionSweeper periodically expires pending checks past their grace window.
type RetentionSweeper struct {
	log      *logger.Logger
	svc      DeliveryService
	interval time.Duration
}

func NewRetentionSweeper(baseLog *logger.Logger, svc DeliveryService, interval time.Duration) *RetentionSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RetentionSweeper{
		log:      baseLog.With("component", "RetentionSweeper"),
		svc:      svc,
		interval: interval,
	}
}

// Run sweeps once immediately, then every interval until ctx is done.
func (w *RetentionSweeper) Run(ctx context.Context) error {
	w.log.Info("Starting retention sweeper", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Retention sweeper stopped")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetentionSweeper) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Retention sweep panic", "panic", r)
		}
	}()
	if _, err := w.svc.ExpireOverdueChecks(ctx, time.Time{}); err != nil && ctx.Err() == nil {
		w.log.Warn("Retention sweep failed", "error", err)
	}
}
