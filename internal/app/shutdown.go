package app

import (
	"context"
	"time"
)

// Shutdown stops all components: context cancellation stops the Telegram
// listener and the cron runner, then the worker pool drains in-flight
// fires, and the store closes last.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.cancel()

	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to stop metrics server", err)
		}
	}

	if a.sched != nil {
		if err := a.sched.Stop(); err != nil {
			a.logger.Error("failed to stop scheduler", err)
		}
	}

	if a.pool != nil {
		a.pool.Stop()
	}

	var storeErr error
	if a.store != nil {
		storeErr = a.store.Close()
		if storeErr != nil {
			a.logger.Error("failed to close reminder store", storeErr)
		}
	}

	a.started = false
	a.logger.Info("shutdown complete")
	return storeErr
}
