package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
	"github.com/pbengoa/Tourline-front-sub001/pkg/logger"
)

// fakeNetwork is a NetworkProvider whose state is set by the test.
type fakeNetwork struct {
	mu       sync.Mutex
	state    domain.NetworkState
	fetchErr error
	fetches  int

	subscribers listeners[domain.NetworkState]
}

var (
	online  = domain.NetworkState{IsConnected: true, IsInternetReachable: domain.Reachable(true), ConnectionType: "wifi"}
	offline = domain.NetworkState{IsConnected: false, IsInternetReachable: domain.Reachable(false), ConnectionType: "none"}
)

func (f *fakeNetwork) Fetch(context.Context) (domain.NetworkState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.state, f.fetchErr
}

func (f *fakeNetwork) Subscribe(fn func(domain.NetworkState)) func() {
	return f.subscribers.add(fn)
}

// push simulates an OS network event.
func (f *fakeNetwork) push(s domain.NetworkState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.subscribers.emit(s)
}

func (f *fakeNetwork) setProbe(s domain.NetworkState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeNetwork) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func startedMonitor(t *testing.T, initial domain.NetworkState) (*Monitor, *fakeNetwork, *ManualLifecycle) {
	t.Helper()
	net := &fakeNetwork{state: initial}
	lc := NewManualLifecycle()
	m := NewMonitor(net, lc, logger.Discard())
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m, net, lc
}

func TestMonitor_InitialStateIsOptimistic(t *testing.T) {
	m := NewMonitor(&fakeNetwork{}, nil, logger.Discard())
	assert.False(t, m.IsOffline())
	assert.Nil(t, m.State().IsInternetReachable)
}

func TestMonitor_StartAppliesInitialProbe(t *testing.T) {
	m, net, _ := startedMonitor(t, offline)
	assert.True(t, m.IsOffline())
	assert.Equal(t, 1, net.fetchCount())
}

func TestMonitor_StartTwiceIsNoop(t *testing.T) {
	m, net, _ := startedMonitor(t, online)
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, 1, net.fetchCount())
}

func TestMonitor_IsOfflineDerivation(t *testing.T) {
	tests := []struct {
		name  string
		state domain.NetworkState
		want  bool
	}{
		{"disconnected", domain.NetworkState{IsConnected: false}, true},
		{"connected unknown reachability", domain.NetworkState{IsConnected: true}, false},
		{"connected unreachable", domain.NetworkState{IsConnected: true, IsInternetReachable: domain.Reachable(false)}, true},
		{"connected reachable", online, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, net, _ := startedMonitor(t, online)
			net.push(tt.state)
			assert.Equal(t, tt.want, m.IsOffline())
		})
	}
}

func TestMonitor_DrainsInOrderOnReconnect(t *testing.T) {
	m, net, _ := startedMonitor(t, offline)

	var order []int
	for i := 1; i <= 3; i++ {
		m.Enqueue(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	require.Equal(t, 3, m.QueueLen())

	net.push(online)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, m.QueueLen())
}

func TestMonitor_FailingItemDoesNotStopDrain(t *testing.T) {
	m, net, _ := startedMonitor(t, offline)

	var ran []string
	m.Enqueue(func(context.Context) error { ran = append(ran, "a"); return nil })
	m.Enqueue(func(context.Context) error { ran = append(ran, "b"); return errors.New("boom") })
	m.Enqueue(func(context.Context) error { ran = append(ran, "c"); panic("kaboom") })
	m.Enqueue(func(context.Context) error { ran = append(ran, "d"); return nil })

	net.push(online)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ran)
	assert.Equal(t, 0, m.QueueLen(), "failed items are dropped, not re-queued")
}

func TestMonitor_EachItemRunsExactlyOnce(t *testing.T) {
	m, net, _ := startedMonitor(t, offline)

	runs := 0
	m.Enqueue(func(context.Context) error { runs++; return nil })

	net.push(online)
	net.push(offline)
	net.push(online)
	assert.Equal(t, 1, runs)
}

func TestMonitor_NoDrainWithoutTransition(t *testing.T) {
	m, net, _ := startedMonitor(t, online)

	runs := 0
	m.Enqueue(func(context.Context) error { runs++; return nil })

	// online -> online is not a transition
	net.push(domain.NetworkState{IsConnected: true, IsInternetReachable: domain.Reachable(true), ConnectionType: "cellular"})
	assert.Equal(t, 0, runs)
	assert.Equal(t, 1, m.QueueLen())
}

func TestMonitor_ItemsEnqueuedDuringDrainWaitForNextTransition(t *testing.T) {
	m, net, _ := startedMonitor(t, offline)

	late := 0
	m.Enqueue(func(context.Context) error {
		m.Enqueue(func(context.Context) error { late++; return nil })
		return nil
	})

	net.push(online)
	assert.Equal(t, 0, late)
	assert.Equal(t, 1, m.QueueLen())

	net.push(offline)
	net.push(online)
	assert.Equal(t, 1, late)
	assert.Equal(t, 0, m.QueueLen())
}

func TestMonitor_ForegroundTriggersProbe(t *testing.T) {
	m, net, lc := startedMonitor(t, offline)

	ran := false
	m.Enqueue(func(context.Context) error { ran = true; return nil })

	net.setProbe(online)
	lc.Background()
	assert.True(t, m.IsOffline(), "background does not probe")

	lc.Foreground()
	assert.False(t, m.IsOffline())
	assert.True(t, ran)
}

func TestMonitor_CheckNowError(t *testing.T) {
	net := &fakeNetwork{state: online, fetchErr: errors.New("no radio")}
	m := NewMonitor(net, nil, logger.Discard())

	_, err := m.CheckNow(context.Background())
	require.Error(t, err)
	assert.False(t, m.IsOffline(), "failed probe keeps the previous state")
}

func TestMonitor_SubscribeAndStop(t *testing.T) {
	m, net, _ := startedMonitor(t, online)

	var seen []bool
	unsub := m.Subscribe(func(s domain.NetworkState) { seen = append(seen, s.IsOffline()) })

	net.push(offline)
	net.push(offline)
	net.push(online)
	unsub()
	net.push(offline)
	assert.Equal(t, []bool{true, false}, seen)

	m.Stop()
	m.Stop()
	net.push(online)
	assert.True(t, m.IsOffline(), "stopped monitor ignores provider events")
}

func TestMonitor_RunOrQueue(t *testing.T) {
	t.Run("runs immediately when online", func(t *testing.T) {
		m, _, _ := startedMonitor(t, online)
		ran := false
		require.NoError(t, m.RunOrQueue(context.Background(), func(context.Context) error { ran = true; return nil }))
		assert.True(t, ran)
		assert.Equal(t, 0, m.QueueLen())
	})

	t.Run("queues without running when offline", func(t *testing.T) {
		m, _, _ := startedMonitor(t, offline)
		ran := false
		err := m.RunOrQueue(context.Background(), func(context.Context) error { ran = true; return nil })
		assert.ErrorIs(t, err, ErrQueued)
		assert.Equal(t, apperrors.KindNetwork, apperrors.KindOf(err))
		assert.False(t, ran)
		assert.Equal(t, 1, m.QueueLen())
	})

	t.Run("queues on network failure once the device is found offline", func(t *testing.T) {
		m, net, _ := startedMonitor(t, online)
		net.setProbe(offline)
		netErr := apperrors.Network(errors.New("connection reset"))
		err := m.RunOrQueue(context.Background(), func(context.Context) error { return netErr })
		assert.ErrorIs(t, err, ErrQueued)
		assert.ErrorIs(t, err, apperrors.ErrNetwork)
		assert.True(t, m.IsOffline())
		assert.Equal(t, 1, m.QueueLen())

		net.push(online)
		assert.Equal(t, 0, m.QueueLen())
	})

	t.Run("does not queue network failure while the backend is still reachable", func(t *testing.T) {
		m, net, _ := startedMonitor(t, online)
		err := m.RunOrQueue(context.Background(), func(context.Context) error {
			return apperrors.Network(errors.New("connection reset"))
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrQueued)
		assert.Equal(t, 2, net.fetchCount())
		assert.Equal(t, 0, m.QueueLen())
	})

	t.Run("does not queue server errors", func(t *testing.T) {
		m, net, _ := startedMonitor(t, online)
		err := m.RunOrQueue(context.Background(), func(context.Context) error {
			return apperrors.FromResponse(http.StatusServiceUnavailable, "", "")
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrQueued)
		assert.Equal(t, apperrors.KindServer, apperrors.KindOf(err))
		assert.Equal(t, 1, net.fetchCount())
		assert.Equal(t, 0, m.QueueLen())
	})

	t.Run("does not queue client errors", func(t *testing.T) {
		m, _, _ := startedMonitor(t, online)
		err := m.RunOrQueue(context.Background(), func(context.Context) error {
			return apperrors.FromResponse(http.StatusUnprocessableEntity, "", "")
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrQueued)
		assert.Equal(t, 0, m.QueueLen())
	})
}

func TestHTTPProber_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	prober := NewHTTPProber(ProberConfig{URL: server.URL, ConnectionType: "ethernet"}, logger.Discard())
	s, err := prober.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, s.IsOffline())
	assert.Equal(t, "ethernet", s.ConnectionType)

	server.Close()
	s, err = prober.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, s.IsOffline())
}

func TestPoller_EmitsEveryResult(t *testing.T) {
	net := &fakeNetwork{state: online}
	p := NewPoller(net.Fetch, 0, logger.Discard())

	var seen []domain.NetworkState
	p.Subscribe(func(s domain.NetworkState) { seen = append(seen, s) })

	ctx := context.Background()
	p.Poll(ctx)
	p.Poll(ctx)
	net.setProbe(offline)
	p.Poll(ctx)
	assert.Equal(t, []domain.NetworkState{online, online, offline}, seen)
}

func TestPoller_SkipsFailedFetch(t *testing.T) {
	net := &fakeNetwork{state: online, fetchErr: errors.New("probe broke")}
	p := NewPoller(net.Fetch, 0, logger.Discard())

	var seen int
	p.Subscribe(func(domain.NetworkState) { seen++ })
	p.Poll(context.Background())
	assert.Zero(t, seen)
}

func TestMonitor_PollRecoversAfterForegroundProbeSawOutage(t *testing.T) {
	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx := context.Background()
	prober := NewHTTPProber(ProberConfig{URL: server.URL, ConnectionType: "ethernet"}, logger.Discard())
	lc := NewManualLifecycle()
	m := NewMonitor(prober, lc, logger.Discard())
	require.NoError(t, m.Start(ctx))
	t.Cleanup(m.Stop)

	prober.poller.Poll(ctx)
	require.False(t, m.IsOffline())

	// The outage is only seen by the foreground re-check, never by the poller.
	down.Store(true)
	lc.Foreground()
	require.True(t, m.IsOffline())

	var ran int
	m.Enqueue(func(context.Context) error { ran++; return nil })

	down.Store(false)
	prober.poller.Poll(ctx)
	prober.poller.Poll(ctx)

	assert.False(t, m.IsOffline())
	assert.Equal(t, 1, ran)
	assert.Zero(t, m.QueueLen())
}

func TestManualLifecycle(t *testing.T) {
	lc := NewManualLifecycle()
	assert.Equal(t, domain.AppStateActive, lc.State())

	var got []domain.AppState
	unsub := lc.Subscribe(func(s domain.AppState) { got = append(got, s) })
	lc.Background()
	lc.Foreground()
	unsub()
	lc.Background()

	assert.Equal(t, []domain.AppState{domain.AppStateBackground, domain.AppStateActive}, got)
	assert.Equal(t, domain.AppStateBackground, lc.State())
}
