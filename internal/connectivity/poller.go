package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
)

// FetchFunc returns a fresh network state.
type FetchFunc func(ctx context.Context) (domain.NetworkState, error)

// Poller turns a one-shot probe into a periodic state stream. Every result is
// reported; subscribers such as Monitor filter unchanged states against their
// own view, which other probes (CheckNow) may have moved.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	logger   *slog.Logger

	subscribers listeners[domain.NetworkState]
}

// NewPoller creates a Poller that calls fetch every interval.
func NewPoller(fetch FetchFunc, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Poller{fetch: fetch, interval: interval, logger: logger}
}

// Subscribe registers fn to receive every polled state.
func (p *Poller) Subscribe(fn func(domain.NetworkState)) (unsubscribe func()) {
	return p.subscribers.add(fn)
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs a single fetch and emits the result.
func (p *Poller) Poll(ctx context.Context) {
	s, err := p.fetch(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "connectivity poll failed", slog.String("error", err.Error()))
		return
	}
	p.subscribers.emit(s)
}
