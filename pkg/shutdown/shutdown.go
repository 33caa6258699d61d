// Package shutdown provides signal-driven lifecycle control for the
// engine process.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retrolog/pkg/logger"
)

// NotifyContext returns a context canceled on SIGINT/SIGTERM.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// GraceContext returns a context bounding how long shutdown may take
// once a signal arrives.
func GraceContext(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}

// Abort logs a fatal startup error and exits. The small delay gives log
// sinks time to flush.
func Abort(contextMsg string, err error) {
	logger.Error("startup_fatal", "msg", contextMsg, "err", err)
	time.Sleep(200 * time.Millisecond)
	os.Exit(2)
}
