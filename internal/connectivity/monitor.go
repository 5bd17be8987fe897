package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
)

// ErrQueued reports that an operation was deferred until connectivity returns.
var ErrQueued = errors.New("operation queued until connectivity returns")

// Operation is a deferred unit of work replayed after reconnecting.
type Operation func(ctx context.Context) error

// NetworkProvider reports device reachability.
type NetworkProvider interface {
	Fetch(ctx context.Context) (domain.NetworkState, error)
	Subscribe(fn func(domain.NetworkState)) (unsubscribe func())
}

// LifecycleProvider reports foreground/background transitions.
type LifecycleProvider interface {
	Subscribe(fn func(domain.AppState)) (unsubscribe func())
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInitialState overrides the optimistic "connected, reachability unknown" start state.
func WithInitialState(s domain.NetworkState) MonitorOption {
	return func(m *Monitor) { m.state = s }
}

// Monitor tracks connectivity and replays queued operations when the device
// goes from offline to online.
type Monitor struct {
	network   NetworkProvider
	lifecycle LifecycleProvider
	logger    *slog.Logger

	mu      sync.Mutex
	state   domain.NetworkState
	queue   []Operation
	baseCtx context.Context
	started bool
	unsubs  []func()

	subscribers listeners[domain.NetworkState]
}

// NewMonitor creates a Monitor. lifecycle may be nil.
func NewMonitor(network NetworkProvider, lifecycle LifecycleProvider, logger *slog.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		network:   network,
		lifecycle: lifecycle,
		logger:    logger,
		state:     domain.NetworkState{IsConnected: true, ConnectionType: "unknown"},
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	offlineGauge.Set(boolToFloat(m.state.IsOffline()))
	return m
}

// Start subscribes to the providers and performs the initial probe.
// ctx is also the parent context of replayed operations.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.baseCtx = ctx
	m.mu.Unlock()

	unsubs := []func(){m.network.Subscribe(m.apply)}
	if m.lifecycle != nil {
		unsubs = append(unsubs, m.lifecycle.Subscribe(m.onAppState))
	}
	m.mu.Lock()
	m.unsubs = unsubs
	m.mu.Unlock()

	if _, err := m.CheckNow(ctx); err != nil {
		m.logger.WarnContext(ctx, "initial connectivity probe failed",
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Stop releases the provider subscriptions. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// State returns the last known network state.
func (m *Monitor) State() domain.NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsOffline reports whether the device is currently considered offline.
func (m *Monitor) IsOffline() bool {
	return m.State().IsOffline()
}

// CheckNow probes the network provider and applies the result immediately.
func (m *Monitor) CheckNow(ctx context.Context) (domain.NetworkState, error) {
	s, err := m.network.Fetch(ctx)
	if err != nil {
		return m.State(), fmt.Errorf("fetch network state: %w", err)
	}
	m.apply(s)
	return s, nil
}

// Subscribe registers fn to observe state changes.
func (m *Monitor) Subscribe(fn func(domain.NetworkState)) (unsubscribe func()) {
	return m.subscribers.add(fn)
}

// Enqueue defers op until the next offline to online transition.
func (m *Monitor) Enqueue(op Operation) {
	if op == nil {
		return
	}
	m.mu.Lock()
	m.queue = append(m.queue, op)
	depth := len(m.queue)
	m.mu.Unlock()

	queueDepth.Set(float64(depth))
	m.logger.Debug("operation queued", slog.Int("queue_depth", depth))
}

// QueueLen returns the number of deferred operations.
func (m *Monitor) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunOrQueue runs op now, or queues it when offline. The returned error wraps
// ErrQueued whenever op was queued. A network failure re-probes and queues op
// only if the device turns out to be offline; server and client errors are
// returned as-is.
func (m *Monitor) RunOrQueue(ctx context.Context, op Operation) error {
	if m.enqueueIfOffline(op) {
		return apperrors.Network(ErrQueued)
	}

	err := op(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || apperrors.KindOf(err) != apperrors.KindNetwork {
		return err
	}

	if _, probeErr := m.CheckNow(ctx); probeErr != nil {
		m.logger.WarnContext(ctx, "connectivity probe after failed operation",
			slog.String("error", probeErr.Error()),
		)
	}
	if m.enqueueIfOffline(op) {
		return fmt.Errorf("%w: %w", ErrQueued, err)
	}
	return err
}

// enqueueIfOffline appends op when the current state is offline. The check and
// the append share the lock with apply, so op cannot miss a drain.
func (m *Monitor) enqueueIfOffline(op Operation) bool {
	m.mu.Lock()
	if !m.state.IsOffline() {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, op)
	depth := len(m.queue)
	m.mu.Unlock()

	queueDepth.Set(float64(depth))
	m.logger.Debug("operation queued", slog.Int("queue_depth", depth))
	return true
}

func (m *Monitor) onAppState(s domain.AppState) {
	if s != domain.AppStateActive {
		return
	}
	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()

	if _, err := m.CheckNow(ctx); err != nil {
		m.logger.WarnContext(ctx, "foreground connectivity probe failed",
			slog.String("error", err.Error()),
		)
	}
}

// apply records a new state and drains the queue on an offline to online transition.
func (m *Monitor) apply(next domain.NetworkState) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	wasOffline := prev.IsOffline()
	nowOffline := next.IsOffline()

	var pending []Operation
	if wasOffline && !nowOffline {
		pending = m.queue
		m.queue = nil
	}
	ctx := m.baseCtx
	m.mu.Unlock()

	offlineGauge.Set(boolToFloat(nowOffline))
	if wasOffline != nowOffline {
		m.logger.Info("connectivity changed",
			slog.Bool("offline", nowOffline),
			slog.String("connection_type", next.ConnectionType),
		)
	}
	if !sameState(prev, next) {
		m.subscribers.emit(next)
	}
	if wasOffline && !nowOffline {
		queueDepth.Set(float64(m.QueueLen()))
		m.drain(ctx, pending)
	}
}

// drain runs the snapshot sequentially. Failures are logged and dropped.
func (m *Monitor) drain(ctx context.Context, ops []Operation) {
	if len(ops) == 0 {
		return
	}
	m.logger.InfoContext(ctx, "replaying queued operations", slog.Int("count", len(ops)))

	for i, op := range ops {
		if err := runSafely(ctx, op); err != nil {
			queueReplays.WithLabelValues("failed").Inc()
			m.logger.WarnContext(ctx, "queued operation failed, dropping",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		queueReplays.WithLabelValues("succeeded").Inc()
	}
}

func runSafely(ctx context.Context, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queued operation panicked: %v", r)
		}
	}()
	return op(ctx)
}

func sameState(a, b domain.NetworkState) bool {
	if a.IsConnected != b.IsConnected || a.ConnectionType != b.ConnectionType {
		return false
	}
	switch {
	case a.IsInternetReachable == nil && b.IsInternetReachable == nil:
		return true
	case a.IsInternetReachable == nil || b.IsInternetReachable == nil:
		return false
	default:
		return *a.IsInternetReachable == *b.IsInternetReachable
	}
}
