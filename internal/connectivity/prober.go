package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
)

// ProberConfig configures an HTTPProber.
type ProberConfig struct {
	URL            string
	Timeout        time.Duration
	Interval       time.Duration
	ConnectionType string
}

// HTTPProber is a NetworkProvider for hosts without an OS reachability API.
// Any HTTP answer from URL counts as reachable; a transport failure as offline.
type HTTPProber struct {
	cfg    ProberConfig
	client *http.Client
	poller *Poller
}

// NewHTTPProber creates a prober. Call Run to start emitting changes.
func NewHTTPProber(cfg ProberConfig, logger *slog.Logger) *HTTPProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.ConnectionType == "" {
		cfg.ConnectionType = "unknown"
	}
	p := &HTTPProber{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	p.poller = NewPoller(p.Fetch, cfg.Interval, logger)
	return p
}

// Fetch probes the reachability URL once.
func (p *HTTPProber) Fetch(ctx context.Context) (domain.NetworkState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.cfg.URL, nil)
	if err != nil {
		return domain.NetworkState{}, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.NetworkState{}, ctx.Err()
		}
		return domain.NetworkState{
			IsConnected:         false,
			IsInternetReachable: domain.Reachable(false),
			ConnectionType:      "none",
		}, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return domain.NetworkState{
		IsConnected:         true,
		IsInternetReachable: domain.Reachable(true),
		ConnectionType:      p.cfg.ConnectionType,
	}, nil
}

// Subscribe registers fn for the states observed by Run.
func (p *HTTPProber) Subscribe(fn func(domain.NetworkState)) (unsubscribe func()) {
	return p.poller.Subscribe(fn)
}

// Run polls the reachability URL until ctx is cancelled.
func (p *HTTPProber) Run(ctx context.Context) {
	p.poller.Run(ctx)
}
