package main

import (
	"context"
	"sync"
	"time"
)

// startBackground runs every registered loop until ctx is cancelled. The
// returned channel closes once all of them have returned.
func (app *application) startBackground(ctx context.Context) <-chan struct{} {
	var wg sync.WaitGroup
	for _, fn := range app.background {
		wg.Add(1)
		go func(fn func(ctx context.Context)) {
			defer wg.Done()
			fn(ctx)
		}(fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// pruneStalePushTokensDaily drops device tokens not refreshed for 90 days.
func (app *application) pruneStalePushTokensDaily(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		n, err := app.store.PushTokens.PruneStale(ctx, 90*24*time.Hour)
		if err != nil {
			if ctx.Err() == nil {
				app.logger.Errorw("Error pruning stale push tokens", "error", err)
			}
		} else {
			app.logger.Infow("Pruned stale push tokens", "count", n, "at", time.Now().Format(time.RFC1123))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
