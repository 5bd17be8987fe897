package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
	"github.com/pbengoa/Tourline-front-sub001/pkg/logger"
)

const (
	// CorrelationHeader carries the per-logical-request ID, identical on every retry.
	CorrelationHeader = "X-Correlation-ID"

	maxResponseBytes = 10 << 20
	maxJitter        = 0.1
)

// retryableStatuses is the fixed set of statuses treated as transient.
var retryableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Config holds HTTP client configuration
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	MaxConnsPerHost  int
	SessionCheckPath string
	UserAgent        string
}

// DefaultConfig returns the reference retry policy: 3 retries, 1s base delay.
func DefaultConfig() Config {
	return Config{
		Timeout:          10 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   time.Second,
		MaxConnsPerHost:  16,
		SessionCheckPath: "/auth/me",
		UserAgent:        "tourline-client/1.0",
	}
}

// TokenSource yields the current bearer token. It is consulted before every
// attempt so a token written mid-flight is picked up by the next attempt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SessionInvalidator drops persisted credentials.
type SessionInvalidator interface {
	Clear(ctx context.Context) error
}

// Request describes one logical request. It is never mutated by the client.
type Request struct {
	Method string
	// Path is resolved against Config.BaseURL unless it is an absolute URL.
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Attempt is the retry context of a single dispatch. Number 0 is the original
// request; Delay is the backoff slept before this attempt.
type Attempt struct {
	Number int
	Delay  time.Duration
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	if len(r.Body) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets where bearer tokens are read from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithInvalidator sets what is cleared when the session-check endpoint answers 401.
func WithInvalidator(inv SessionInvalidator) Option {
	return func(c *Client) { c.invalidator = inv }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithSleeper replaces the backoff wait. Tests use it to record delays.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithJitter replaces the jitter source; fn must return values in [0, 0.1).
func WithJitter(fn func() float64) Option {
	return func(c *Client) { c.jitter = fn }
}

// Client is the single choke point for outbound backend calls. It injects the
// bearer token, retries transient failures with exponential backoff and clears
// credentials when the session-check endpoint rejects the token.
type Client struct {
	httpClient  *http.Client
	config      Config
	tokens      TokenSource
	invalidator SessionInvalidator
	logger      *slog.Logger
	breaker     *gobreaker.CircuitBreaker[*Response]
	breakerName string
	sleep       func(ctx context.Context, d time.Duration) error
	jitter      func() float64
	tracer      trace.Tracer
}

// New creates a new HTTP client with retry and connection pooling
func New(cfg Config, opts ...Option) *Client {
	if cfg.SessionCheckPath == "" {
		cfg.SessionCheckPath = DefaultConfig().SessionCheckPath
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = DefaultConfig().MaxConnsPerHost
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config: cfg,
		logger: slog.Default(),
		sleep:  sleepContext,
		jitter: func() float64 { return rand.Float64() * maxJitter },
		tracer: otel.Tracer("github.com/pbengoa/Tourline-front-sub001/pkg/httpclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Backoff returns base * 2^n * (1 + jitter).
func Backoff(base time.Duration, n int, jitter float64) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(float64(base) * float64(uint64(1)<<uint(n)) * (1 + jitter))
}

// IsRetryableStatus reports whether status belongs to the transient set
// {408, 429, 500, 502, 503, 504}.
func IsRetryableStatus(status int) bool {
	_, ok := retryableStatuses[status]
	return ok
}

// IsRetryableError reports whether a transport error (no response received)
// may be retried. Caller cancellation never is.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || errors.Is(err, apperrors.ErrNetwork)
}

// Do executes req through the retry pipeline and returns the 2xx response or
// the terminal failure as an *errors.AppError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	correlationID := logger.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := c.tracer.Start(ctx, method+" "+target.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("url.path", target.Path),
			attribute.String("correlation_id", correlationID),
		),
	)
	defer span.End()

	call := func() (*Response, error) {
		return c.execute(ctx, method, target, req.Header, body, correlationID)
	}

	var resp *Response
	if c.breaker != nil {
		resp, err = c.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.WarnContext(ctx, "circuit breaker rejected request",
				slog.String("breaker", c.breakerName),
				slog.String("path", target.Path),
			)
			err = apperrors.Network(err)
		}
	} else {
		resp, err = call()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Int("http.retry_count", attemptsOf(err)-1))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("http.retry_count", resp.Attempts-1),
	)
	return resp, nil
}

// execute runs the Dispatched -> Backoff -> Dispatched loop for one logical request.
func (c *Client) execute(ctx context.Context, method string, target *url.URL, header http.Header, body []byte, correlationID string) (*Response, error) {
	attempt := Attempt{}
	for {
		start := time.Now()
		resp, err := c.send(ctx, method, target, header, body, correlationID)
		var status int
		if resp != nil {
			status = resp.StatusCode
		} else {
			status = apperrors.StatusOf(err)
		}
		requestDuration.WithLabelValues(method, statusLabel(status)).Observe(time.Since(start).Seconds())

		if err == nil {
			attemptsTotal.WithLabelValues(method, "success").Inc()
			resp.Attempts = attempt.Number + 1
			return resp, nil
		}

		retryable := c.retryable(ctx, err)
		if !retryable || attempt.Number >= c.config.MaxRetries {
			attemptsTotal.WithLabelValues(method, "terminal").Inc()
			setAttempts(err, attempt.Number+1)
			if retryable {
				c.logger.WarnContext(ctx, "request retries exhausted",
					slog.String("method", method),
					slog.String("path", target.Path),
					slog.Int("attempts", attempt.Number+1),
					slog.String("error", err.Error()),
				)
			}
			return nil, err
		}

		attemptsTotal.WithLabelValues(method, "retry").Inc()
		retriesTotal.WithLabelValues(method).Inc()

		next := Attempt{
			Number: attempt.Number + 1,
			Delay:  Backoff(c.config.RetryBaseDelay, attempt.Number, c.jitter()),
		}
		c.logger.DebugContext(ctx, "retrying request",
			slog.String("method", method),
			slog.String("path", target.Path),
			slog.Int("retry", next.Number),
			slog.Duration("delay", next.Delay),
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		if sleepErr := c.sleep(ctx, next.Delay); sleepErr != nil {
			setAttempts(err, attempt.Number+1)
			return nil, fmt.Errorf("%w: %w", sleepErr, err)
		}
		attempt = next
	}
}

// send performs exactly one dispatch.
func (c *Client) send(ctx context.Context, method string, target *url.URL, header http.Header, body []byte, correlationID string) (*Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	httpReq.Header.Set(CorrelationHeader, correlationID)
	for k, vals := range header {
		httpReq.Header.Del(k)
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "read auth token failed, sending unauthenticated",
				slog.String("error", err.Error()),
			)
		} else if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.Network(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       respBody,
		}, nil
	}

	appErr := ParseResponseError(httpResp.StatusCode, respBody)
	if httpResp.StatusCode == http.StatusUnauthorized && c.isSessionCheck(target) {
		c.invalidateSession(ctx, target)
	}
	return nil, appErr
}

// retryable applies the retryable/terminal split. It is coarser than Kind.
func (c *Client) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	if appErr.Status == 0 {
		return appErr.Kind == apperrors.KindNetwork && IsRetryableError(appErr.Err)
	}
	return IsRetryableStatus(appErr.Status)
}

// isSessionCheck reports whether target is the "who am I" endpoint, the only
// endpoint whose 401 proves the session is gone.
func (c *Client) isSessionCheck(target *url.URL) bool {
	check := strings.TrimSuffix(c.config.SessionCheckPath, "/")
	if check == "" {
		return false
	}
	return strings.HasSuffix(strings.TrimSuffix(target.Path, "/"), check)
}

func (c *Client) invalidateSession(ctx context.Context, target *url.URL) {
	sessionInvalidations.Inc()
	if c.invalidator == nil {
		return
	}
	c.logger.InfoContext(ctx, "session check rejected token, clearing credentials",
		slog.String("path", target.Path),
	)
	if err := c.invalidator.Clear(ctx); err != nil {
		c.logger.ErrorContext(ctx, "clear credentials failed",
			slog.String("error", err.Error()),
		)
	}
}

func (c *Client) resolve(req Request) (*url.URL, error) {
	ref, err := url.Parse(req.Path)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid request path %q: %v", req.Path, err))
	}

	target := ref
	if !ref.IsAbs() {
		base, err := url.Parse(c.config.BaseURL)
		if err != nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid base URL %q: %v", c.config.BaseURL, err))
		}
		joined := *base
		joined.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
		joined.RawQuery = ref.RawQuery
		target = &joined
	}

	if len(req.Query) > 0 {
		q := target.Query()
		for k, vals := range req.Query {
			for _, v := range vals {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}
	return target, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return data, nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func setAttempts(err error, n int) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		appErr.Attempts = n
	}
}

func attemptsOf(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Attempts > 0 {
		return appErr.Attempts
	}
	return 1
}

func statusLabel(status int) string {
	if status == 0 {
		return "none"
	}
	return fmt.Sprintf("%d", status)
}
