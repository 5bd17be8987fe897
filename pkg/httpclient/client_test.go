package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
	"github.com/pbengoa/Tourline-front-sub001/pkg/logger"
)

// --- Fakes ---

type staticTokens struct {
	mu    sync.Mutex
	token string
	reads int
}

func (s *staticTokens) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.token, nil
}

func (s *staticTokens) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// recordingSleeper captures backoff delays instead of sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestClient(baseURL string, sleeper *recordingSleeper, opts ...Option) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 2 * time.Second
	base := []Option{
		WithSleeper(sleeper.sleep),
		WithJitter(func() float64 { return 0.05 }),
		WithLogger(logger.Discard()),
	}
	return New(cfg, append(base, opts...)...)
}

// --- Config & policy ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, "/auth/me", cfg.SessionCheckPath)
}

func TestBackoff_GrowsExponentially(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(time.Second, 0, 0))
	assert.Equal(t, 2*time.Second, Backoff(time.Second, 1, 0))
	assert.Equal(t, 4*time.Second, Backoff(time.Second, 2, 0))
	assert.Equal(t, 1100*time.Millisecond, Backoff(time.Second, 0, 0.1))
}

func TestBackoff_StrictlyIncreasingUnderMaxJitter(t *testing.T) {
	for n := 0; n < 5; n++ {
		high := Backoff(time.Second, n, 0.0999)
		low := Backoff(time.Second, n+1, 0)
		assert.Less(t, high, low, "retry %d with max jitter must stay below retry %d", n, n+1)
	}
}

func TestDefaultJitter_InRange(t *testing.T) {
	c := New(DefaultConfig())
	for i := 0; i < 500; i++ {
		j := c.jitter()
		assert.GreaterOrEqual(t, j, 0.0)
		assert.Less(t, j, 0.1)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for _, s := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableStatus(s), "status %d", s)
	}
	for _, s := range []int{200, 400, 401, 403, 404, 409, 422, 501} {
		assert.False(t, IsRetryableStatus(s), "status %d", s)
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.True(t, IsRetryableError(io.ErrUnexpectedEOF))
}

// --- Request path ---

func TestDo_InjectsHeadersAndToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(CorrelationHeader))
		assert.Equal(t, "/api/tours", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer server.Close()

	tokens := &staticTokens{token: "tok-1"}
	client := newTestClient(server.URL+"/api", &recordingSleeper{}, WithTokenSource(tokens))

	resp, err := client.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/tours",
		Query:  map[string][]string{"page": {"2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, resp.Attempts)
}

func TestDo_NoTokenNoAuthorizationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL, &recordingSleeper{}, WithTokenSource(&staticTokens{}))
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/health"})
	require.NoError(t, err)
}

func TestDo_ReadsTokenFreshlyPerAttempt(t *testing.T) {
	tokens := &staticTokens{token: "old"}
	var seen []string
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			tokens.set("new")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, &recordingSleeper{}, WithTokenSource(tokens))
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/bookings"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer old", "Bearer new"}, seen)
}

func TestDo_ConcurrentRequestsSeeRefreshedToken(t *testing.T) {
	tokens := &staticTokens{token: "expiring"}
	firstInFlight := make(chan struct{})
	releaseFirst := make(chan struct{})

	r := chi.NewRouter()
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer expiring", r.Header.Get("Authorization"))
		close(firstInFlight)
		<-releaseFirst
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/fast", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer refreshed", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(server.URL, &recordingSleeper{}, WithTokenSource(tokens))

	done := make(chan error, 1)
	go func() {
		_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
		done <- err
	}()

	<-firstInFlight
	tokens.set("refreshed")
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/fast"})
	require.NoError(t, err)

	close(releaseFirst)
	require.NoError(t, <-done)
}

func TestDo_HeaderOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "multipart/form-data", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, &recordingSleeper{})
	_, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/upload",
		Header: http.Header{"Content-Type": {"multipart/form-data"}},
	})
	require.NoError(t, err)
}

// --- Retry policy ---

func TestDo_RetriesRetryableStatusesExactlyThreeTimes(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				w.WriteHeader(status)
			}))
			defer server.Close()

			sleeper := &recordingSleeper{}
			client := newTestClient(server.URL, sleeper)

			_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/tours"})
			require.Error(t, err)

			assert.Equal(t, int32(4), atomic.LoadInt32(&attempts))
			assert.Equal(t, status, apperrors.StatusOf(err))

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, 4, appErr.Attempts)

			delays := sleeper.recorded()
			require.Len(t, delays, 3)
			for i := 1; i < len(delays); i++ {
				assert.Greater(t, delays[i], delays[i-1])
			}
		})
	}
}

func TestDo_RecoversAfterTransientFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(server.URL, sleeper)

	resp, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/tours"})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []time.Duration{1050 * time.Millisecond, 2100 * time.Millisecond}, sleeper.recorded())
}

func TestDo_ResendsIdenticalBodyAndCorrelationID(t *testing.T) {
	var bodies []string
	var ids []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		ids = append(ids, r.Header.Get(CorrelationHeader))
		n := len(bodies)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server.URL, &recordingSleeper{})
	_, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/bookings",
		Body:   map[string]string{"tourId": "t-1"},
	})
	require.NoError(t, err)

	require.Len(t, bodies, 3)
	for i := range bodies {
		assert.JSONEq(t, `{"tourId":"t-1"}`, bodies[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestDo_DoesNotRetryTerminalStatuses(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 409, 422, 501} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":{"code":"NOPE","message":"rejected"}}`))
			}))
			defer server.Close()

			sleeper := &recordingSleeper{}
			client := newTestClient(server.URL, sleeper)

			_, err := client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/bookings"})
			require.Error(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
			assert.Empty(t, sleeper.recorded())
			assert.Equal(t, "NOPE", apperrors.CodeOf(err))
			assert.Equal(t, status, apperrors.StatusOf(err))
		})
	}
}

func TestDo_NetworkErrorRetriedThenSurfacedAsNetworkKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(url, sleeper)

	_, err := client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login"})
	require.Error(t, err)

	assert.Equal(t, apperrors.KindNetwork, apperrors.KindOf(err))
	assert.True(t, errors.Is(err, apperrors.ErrNetwork))
	assert.Len(t, sleeper.recorded(), 3)
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.MaxRetries = 10
	cfg.RetryBaseDelay = 100 * time.Millisecond
	client := New(cfg, WithLogger(logger.Discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Do(ctx, Request{Method: http.MethodGet, Path: "/tours"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

// --- Session invalidation ---

func TestDo_401OnSessionCheckClearsCredentialsOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"TOKEN_EXPIRED","message":"token expired"}}`))
	}))
	defer server.Close()

	inv := new(mockInvalidator)
	inv.On("Clear", mock.Anything).Return(nil).Once()

	client := newTestClient(server.URL+"/api", &recordingSleeper{}, WithInvalidator(inv))
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/auth/me"})
	require.Error(t, err)

	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
	inv.AssertNumberOfCalls(t, "Clear", 1)
	inv.AssertExpectations(t)
}

func TestDo_401ElsewhereLeavesCredentialsUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	inv := new(mockInvalidator)
	client := newTestClient(server.URL, &recordingSleeper{}, WithInvalidator(inv))

	for _, path := range []string{"/admin/companies", "/bookings", "/auth/me/bookings"} {
		_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: path})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	}
	inv.AssertNotCalled(t, "Clear", mock.Anything)
}

// --- Envelope helpers ---

type tour struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestDoJSON_DecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"data":       []tour{{ID: "t1", Title: "Glacier walk"}},
			"pagination": map[string]int{"page": 1, "limit": 10, "total": 1, "totalPages": 1},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, &recordingSleeper{})
	env, err := DoJSON[[]tour](context.Background(), client, Request{Method: http.MethodGet, Path: "/tours"})
	require.NoError(t, err)

	require.Len(t, env.Data, 1)
	assert.Equal(t, "Glacier walk", env.Data[0].Title)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalPages)
}

func TestDoJSON_SuccessFalseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":false,"message":"tour is full"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &recordingSleeper{})
	_, err := DoJSON[tour](context.Background(), client, Request{Method: http.MethodPost, Path: "/bookings"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindGeneric, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "tour is full")
}

func TestPost_DecodesData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"t9","title":"Lake tour"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &recordingSleeper{})
	var out tour
	require.NoError(t, client.Post(context.Background(), "/tours", tour{Title: "Lake tour"}, &out))
	assert.Equal(t, "t9", out.ID)
}

func TestDo_InvalidBaseURL(t *testing.T) {
	client := newTestClient("://invalid", &recordingSleeper{})
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/tours"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}
