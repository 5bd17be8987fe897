package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/pbengoa/Tourline-front-sub001/internal/api"
	"github.com/pbengoa/Tourline-front-sub001/internal/config"
	"github.com/pbengoa/Tourline-front-sub001/internal/connectivity"
	"github.com/pbengoa/Tourline-front-sub001/internal/credential"
	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	handler "github.com/pbengoa/Tourline-front-sub001/internal/handler/http"
	"github.com/pbengoa/Tourline-front-sub001/internal/repository"
	"github.com/pbengoa/Tourline-front-sub001/internal/repository/memory"
	redisrepo "github.com/pbengoa/Tourline-front-sub001/internal/repository/redis"
	"github.com/pbengoa/Tourline-front-sub001/internal/session"
	"github.com/pbengoa/Tourline-front-sub001/pkg/health"
	"github.com/pbengoa/Tourline-front-sub001/pkg/httpclient"
	"github.com/pbengoa/Tourline-front-sub001/pkg/redisconn"
	"github.com/pbengoa/Tourline-front-sub001/pkg/tracing"
)

const serviceName = "tourline-agent"

// Version is set at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

// App wires together all dependencies and runs the Tourline agent.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rdb        *redis.Client
	sessions   *session.Manager
	monitor    *connectivity.Monitor
	prober     *connectivity.HTTPProber
	lifecycle  *connectivity.ManualLifecycle
	httpServer *http.Server

	shutdownTracer tracing.ShutdownFunc
	stopBackground context.CancelFunc
	unsubscribe    []func()
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownTracer, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Credential storage.
	var (
		kv  repository.KeyValue
		rdb *redis.Client
	)
	if cfg.RedisEnabled {
		rdb, err = redisconn.NewClient(ctx, redisconn.Config{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPass,
			DB:            cfg.RedisDB,
			DialTimeout:   5 * time.Second,
			SlowThreshold: cfg.RedisSlowLog,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		kv = redisrepo.NewKeyValue(rdb, cfg.RedisKeyPrefix)
	} else {
		logger.Warn("redis disabled, credentials are kept in memory only")
		kv = memory.NewKeyValue()
	}
	store := credential.NewStore(kv, logger)

	// Backend client.
	clientOpts := []httpclient.Option{
		httpclient.WithLogger(logger),
		httpclient.WithTokenSource(store),
		httpclient.WithInvalidator(store),
	}
	if cfg.BreakerEnabled {
		cb := httpclient.DefaultCircuitBreakerConfig("tourline-api")
		cb.Timeout = cfg.BreakerTimeout
		cb.MinRequests = cfg.BreakerMinRequests
		cb.FailureRatio = cfg.BreakerFailureRatio
		clientOpts = append(clientOpts, httpclient.WithCircuitBreaker(cb))
	}
	clientCfg := httpclient.DefaultConfig()
	clientCfg.BaseURL = cfg.APIBaseURL
	clientCfg.Timeout = cfg.APITimeout
	clientCfg.MaxRetries = cfg.MaxRetries
	clientCfg.RetryBaseDelay = cfg.RetryBaseDelay
	clientCfg.UserAgent = serviceName + "/" + Version
	client := httpclient.New(clientCfg, clientOpts...)

	// Session and connectivity.
	var sessionOpts []session.Option
	if cfg.KeepSessionWhenOffline {
		sessionOpts = append(sessionOpts, session.WithKeepSessionWhenOffline())
	}
	sessions := session.NewManager(api.NewAuthAPI(client), store, logger, sessionOpts...)

	prober := connectivity.NewHTTPProber(connectivity.ProberConfig{
		URL:            cfg.ProbeURL,
		Timeout:        cfg.ProbeTimeout,
		Interval:       cfg.ProbeInterval,
		ConnectionType: cfg.ProbeConnectionType,
	}, logger)
	lifecycle := connectivity.NewManualLifecycle()
	monitor := connectivity.NewMonitor(prober, lifecycle, logger)

	// Health checks.
	healthHandler := health.NewHandler(5 * time.Second)
	healthHandler.Register("session", health.Gate(sessions.Ready()))
	if rdb != nil {
		healthHandler.Register("redis", redisconn.Ping(rdb))
	}
	healthHandler.RegisterOptional("backend", func(context.Context) error {
		if monitor.IsOffline() {
			return errors.New("backend unreachable")
		}
		return nil
	})
	healthHandler.RegisterOptional("circuit_breaker", func(context.Context) error {
		if client.BreakerState() == gobreaker.StateOpen {
			return errors.New("circuit open")
		}
		return nil
	})

	bgCtx, stopBackground := context.WithCancel(context.Background())
	router := handler.NewRouter(bgCtx, handler.RouterConfig{
		Sessions:       sessions,
		Connectivity:   monitor,
		Lifecycle:      lifecycle,
		Bookings:       api.NewBookingsAPI(client),
		Health:         healthHandler,
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		sessions:       sessions,
		monitor:        monitor,
		prober:         prober,
		lifecycle:      lifecycle,
		httpServer:     httpServer,
		shutdownTracer: shutdownTracer,
		stopBackground: stopBackground,
	}, nil
}

// Handler returns the agent's HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Start begins connectivity monitoring and restores the persisted session in
// the background. It does not block on the session check.
func (a *App) Start(ctx context.Context) error {
	a.unsubscribe = append(a.unsubscribe,
		a.sessions.Subscribe(func(s session.State) {
			attrs := []any{slog.String("status", string(s.Status))}
			if s.User != nil {
				attrs = append(attrs, slog.String("user_id", s.User.ID), slog.String("role", string(s.User.Role)))
			}
			a.logger.Info("session state changed", attrs...)
		}),
		a.monitor.Subscribe(func(s domain.NetworkState) {
			a.logger.Debug("network state", slog.Bool("offline", s.IsOffline()), slog.Int("queue_depth", a.monitor.QueueLen()))
		}),
	)

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("start connectivity monitor: %w", err)
	}
	go a.prober.Run(ctx)

	go func() {
		bctx, cancel := context.WithTimeout(ctx, a.cfg.BootstrapTimeout)
		defer cancel()
		s := a.sessions.Bootstrap(bctx)
		a.logger.Info("session bootstrap complete", slog.String("status", string(s.Status)))
	}()

	go a.watchResume(ctx)
	return nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown()
		return err
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.stopBackground()
	a.monitor.Stop()
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	if n := a.monitor.QueueLen(); n > 0 {
		a.logger.Warn("discarding queued operations", slog.Int("count", n))
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
