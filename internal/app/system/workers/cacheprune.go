// internal/app/system/workers/cacheprune.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/teampulse/internal/app/store/localcache"
	"go.uber.org/zap"
)

// CachePrune is a background worker that removes stale insight reports and
// old assistant messages from the local cache.
type CachePrune struct {
	cache       *localcache.Cache
	log         *zap.Logger
	interval    time.Duration
	insightsTTL time.Duration
	chatTTL     time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewCachePrune creates a new cache prune worker.
//
// Parameters:
//   - cache: the local cache
//   - logger: zap logger for logging
//   - interval: how often to prune (e.g., 1 hour)
//   - insightsTTL: reports fetched longer ago than this are deleted
//   - chatTTL: messages older than this are deleted
func NewCachePrune(cache *localcache.Cache, logger *zap.Logger, interval, insightsTTL, chatTTL time.Duration) *CachePrune {
	return &CachePrune{
		cache:       cache,
		log:         logger,
		interval:    interval,
		insightsTTL: insightsTTL,
		chatTTL:     chatTTL,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background prune loop. A non-positive interval leaves
// the worker idle.
func (w *CachePrune) Start() {
	if w.interval <= 0 {
		w.log.Warn("cache prune worker not started: interval must be positive",
			zap.Duration("interval", w.interval))
		return
	}
	w.wg.Add(1)
	go w.run()
	w.log.Info("cache prune worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("insights_ttl", w.insightsTTL),
		zap.Duration("chat_ttl", w.chatTTL))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *CachePrune) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("cache prune worker stopped")
}

func (w *CachePrune) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Prune(context.Background())
		}
	}
}

// Prune runs one pass. It is exported so tests can drive it directly.
func (w *CachePrune) Prune(parent context.Context) (insights, messages int64) {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	now := w.now()
	var err error
	if w.insightsTTL > 0 {
		if insights, err = w.cache.PruneInsights(ctx, now.Add(-w.insightsTTL)); err != nil {
			w.log.Error("failed to prune cached insights", zap.Error(err))
		}
	}
	if w.chatTTL > 0 {
		if messages, err = w.cache.PruneMessages(ctx, now.Add(-w.chatTTL)); err != nil {
			w.log.Error("failed to prune chat messages", zap.Error(err))
		}
	}

	if insights > 0 || messages > 0 {
		w.log.Info("pruned local cache",
			zap.Int64("insights", insights),
			zap.Int64("messages", messages))
	}
	return insights, messages
}
