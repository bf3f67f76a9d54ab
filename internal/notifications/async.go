package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

// Async runs notification sends off the request path. Failures are logged only.
type Async struct {
	wg      sync.WaitGroup
	logger  *zap.SugaredLogger
	timeout time.Duration
}

func NewAsync(logger *zap.SugaredLogger) *Async {
	return &Async{logger: logger, timeout: defaultSendTimeout}
}

// CallAsync starts fn on its own goroutine with a fresh timeout context, so the
// send outlives the request that triggered it.
func (a *Async) CallAsync(fn func(ctx context.Context) error, name string) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Errorw("notification panicked", "name", name, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			a.logger.Warnw("notification failed", "name", name, "error", err)
		}
	}()
}

// Wait blocks until every started send has returned.
func (a *Async) Wait() {
	a.wg.Wait()
}
