package worker

import (
	"context"
	"sync"
	"time"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/service"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// ModerationWorker applies moderation decisions submitted through Kafka
type ModerationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewModerationWorker creates a new moderation worker
func NewModerationWorker(
	consumer *broker.Consumer,
	moderation *service.ModerationService,
) *ModerationWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnModerationRequested(moderation.HandleModerationRequested)

	return &ModerationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *ModerationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting moderation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ModerationWorker) Stop() error {
	w.logger.Info("Stopping moderation worker")
	return w.consumer.Close()
}

// StalePurger removes pending listings that were never moderated
type StalePurger interface {
	ClearStalePending(ctx context.Context, maxAge time.Duration) (int, error)
}

// PurgeWorker periodically drops pending listings older than the retention
type PurgeWorker struct {
	purger    StalePurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPurgeWorker creates a new purge worker
func NewPurgeWorker(purger StalePurger, interval, retention time.Duration) *PurgeWorker {
	return &PurgeWorker{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    util.GetLogger(),
		stop:      make(chan struct{}),
	}
}

// Start runs a purge immediately and then on every tick until ctx is
// cancelled or Stop is called
func (w *PurgeWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting purge worker",
		zap.Duration("interval", w.interval),
		zap.Duration("retention", w.retention))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
		}
	}
}

func (w *PurgeWorker) runOnce(ctx context.Context) {
	n, err := w.purger.ClearStalePending(ctx, w.retention)
	if err != nil {
		util.SideEffectFailuresTotal.WithLabelValues("purge_stale_pending").Inc()
		w.logger.Error("Failed to purge stale pending listings", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("Purged stale pending listings", zap.Int("count", n))
	}
}

// Stop stops the worker
func (w *PurgeWorker) Stop() error {
	w.logger.Info("Stopping purge worker")
	w.stopOnce.Do(func() { close(w.stop) })
	return nil
}
