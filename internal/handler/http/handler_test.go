package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pbengoa/Tourline-front-sub001/internal/api"
	"github.com/pbengoa/Tourline-front-sub001/internal/connectivity"
	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	"github.com/pbengoa/Tourline-front-sub001/internal/session"
	"github.com/pbengoa/Tourline-front-sub001/pkg/health"
	"github.com/pbengoa/Tourline-front-sub001/pkg/httpclient"
	"github.com/pbengoa/Tourline-front-sub001/pkg/logger"
)

// ============================================================================
// Mock SessionService
// ============================================================================

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) State() session.State {
	return m.Called().Get(0).(session.State)
}

func (m *mockSessions) SignIn(ctx context.Context, email, password string) (*domain.UserSnapshot, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserSnapshot), args.Error(1)
}

func (m *mockSessions) SignUp(ctx context.Context, in session.SignUpInput) (*domain.UserSnapshot, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserSnapshot), args.Error(1)
}

func (m *mockSessions) SignOut(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockSessions) RefreshUser(ctx context.Context) session.RefreshResult {
	return m.Called(ctx).Get(0).(session.RefreshResult)
}

func (m *mockSessions) ResetPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockSessions) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func (m *mockSessions) VerifyEmail(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

func (m *mockSessions) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

// ============================================================================
// Mock BookingService
// ============================================================================

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) List(ctx context.Context, page, limit int) ([]api.Booking, *httpclient.Pagination, error) {
	args := m.Called(ctx, page, limit)
	var items []api.Booking
	if v := args.Get(0); v != nil {
		items = v.([]api.Booking)
	}
	var p *httpclient.Pagination
	if v := args.Get(1); v != nil {
		p = v.(*httpclient.Pagination)
	}
	return items, p, args.Error(2)
}

func (m *mockBookings) Create(ctx context.Context, req api.BookingRequest) (*api.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.Booking), args.Error(1)
}

func (m *mockBookings) Cancel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// ============================================================================
// Fake network provider
// ============================================================================

type fakeNetwork struct {
	mu    sync.Mutex
	state domain.NetworkState
	err   error
	subs  []func(domain.NetworkState)
}

var (
	online  = domain.NetworkState{IsConnected: true, IsInternetReachable: domain.Reachable(true), ConnectionType: "ethernet"}
	offline = domain.NetworkState{IsConnected: false, IsInternetReachable: domain.Reachable(false), ConnectionType: "none"}
)

func (f *fakeNetwork) Fetch(context.Context) (domain.NetworkState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

func (f *fakeNetwork) Subscribe(fn func(domain.NetworkState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {}
}

func (f *fakeNetwork) push(s domain.NetworkState) {
	f.mu.Lock()
	f.state = s
	subs := append([]func(domain.NetworkState){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// ============================================================================
// Test helpers
// ============================================================================

type testEnv struct {
	router    http.Handler
	sessions  *mockSessions
	bookings  *mockBookings
	network   *fakeNetwork
	monitor   *connectivity.Monitor
	lifecycle *connectivity.ManualLifecycle
	ready     chan struct{}
}

func newTestEnv(t *testing.T, initial domain.NetworkState) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env := &testEnv{
		sessions:  &mockSessions{},
		bookings:  &mockBookings{},
		network:   &fakeNetwork{state: initial},
		lifecycle: connectivity.NewManualLifecycle(),
		ready:     make(chan struct{}),
	}
	env.monitor = connectivity.NewMonitor(env.network, env.lifecycle, logger.Discard())
	require.NoError(t, env.monitor.Start(ctx))
	t.Cleanup(env.monitor.Stop)

	h := health.NewHandler(time.Second)
	h.Register("session", health.Gate(env.ready))

	env.router = NewRouter(ctx, RouterConfig{
		Sessions:       env.sessions,
		Connectivity:   env.monitor,
		Lifecycle:      env.lifecycle,
		Bookings:       env.bookings,
		Health:         h,
		Logger:         logger.Discard(),
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Title   string            `json:"title"`
		Action  string            `json:"action"`
		Kind    string            `json:"kind"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil && env.Data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func signedIn(role domain.Role) session.State {
	return session.State{
		Status: session.StatusAuthenticated,
		User:   &domain.UserSnapshot{ID: "u-1", Email: "ana@example.com", FirstName: "Ana", Role: role},
	}
}
