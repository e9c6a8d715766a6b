package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/unixpickle/rip"
)

// fitContext returns a context which is cancelled by the
// first Ctrl+C, by SIGTERM, or once timeout has elapsed.
// A zero timeout means no limit.
//
// A second Ctrl+C terminates the program.
func fitContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	// rip only listens for os.Interrupt.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	ctx, cancel := context.WithCancel(sigCtx)
	r := rip.NewRIP()
	done := ctx.Done()
	go func() {
		select {
		case <-r.Chan():
			cancel()
		case <-done:
		}
	}()
	release := func() {
		cancel()
		r.Close()
		stopSignals()
	}
	if timeout <= 0 {
		return ctx, release
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, timeout)
	return timeoutCtx, func() {
		cancelTimeout()
		release()
	}
}
