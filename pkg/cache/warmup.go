package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"smmpanel/pkg/logger"
)

// WarmUpFunc restores one component's state from the cache.
type WarmUpFunc func(ctx context.Context, c Cache) error

// WarmUpManager runs the registered restore steps at startup so a restarted process
// prices with the last catalog and rate it saw instead of the built-in defaults.
type WarmUpManager struct {
	cache  Cache
	logger logger.Logger

	mutex sync.Mutex
	tasks map[string]WarmUpFunc
}

func NewWarmUpManager(cache Cache, logger logger.Logger) *WarmUpManager {
	return &WarmUpManager{
		cache:  cache,
		logger: logger,
		tasks:  make(map[string]WarmUpFunc),
	}
}

func (w *WarmUpManager) Register(name string, fn WarmUpFunc) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.tasks[name] = fn
}

// WarmUp runs every task concurrently. A missing snapshot is not an error.
func (w *WarmUpManager) WarmUp(ctx context.Context) error {
	w.mutex.Lock()
	tasks := make(map[string]WarmUpFunc, len(w.tasks))
	for name, fn := range w.tasks {
		tasks[name] = fn
	}
	w.mutex.Unlock()

	start := time.Now()
	w.logger.Info("Cache warm-up started", map[string]interface{}{"tasks": len(tasks)})

	var (
		wg    conc.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for name, fn := range tasks {
		wg.Go(func() {
			err := fn(ctx, w.cache)
			if err == nil || errors.Is(err, ErrCacheMiss) {
				w.logger.Debug("Warm-up task finished", map[string]interface{}{
					"task": name,
					"miss": err != nil,
				})
				return
			}

			w.logger.Error("Warm-up task failed", map[string]interface{}{
				"task":  name,
				"error": err.Error(),
			})
			errMu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			errMu.Unlock()
		})
	}
	wg.Wait()

	w.logger.Info("Cache warm-up finished", map[string]interface{}{
		"duration": time.Since(start).String(),
		"failed":   len(errs),
	})
	return errors.Join(errs...)
}
