//go:build unix

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchResume treats SIGCONT as the process returning to the foreground.
func (a *App) watchResume(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGCONT)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			a.logger.Info("resumed, re-checking connectivity")
			a.lifecycle.Foreground()
		}
	}
}
