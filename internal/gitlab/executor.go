package gitlab

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
)

const (
	// DefaultMaxAttempts is the number of attempts per logical request.
	DefaultMaxAttempts = 20

	// DefaultBackoff is the fixed interval between attempts. No exponential
	// growth and no jitter: this is a low-QPS integration client.
	DefaultBackoff = 10 * time.Second

	// DefaultTimeout is the per-attempt HTTP timeout.
	DefaultTimeout = 10 * time.Second
)

// RetryConfig carries the retry knobs for an Executor. An explicit struct
// rather than package globals so tests can inject small values.
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

// DefaultRetryConfig returns the production retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
		Timeout:     DefaultTimeout,
	}
}

// Response is the outcome of one logical request: the final status code and
// the fully-read body. Status classification is the caller's job (see
// Validate); the executor only retries transport failures and 5xx.
type Response struct {
	StatusCode int
	Body       []byte
}

// SleepFunc suspends between attempts. Injectable so retry tests run
// without real clock delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor issues a single logical request with bounded fixed-interval
// retry over transient failures.
type Executor struct {
	baseURL string
	token   string
	client  *http.Client
	retry   RetryConfig
	logger  arbor.ILogger
	sleep   SleepFunc
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = client
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithRetryConfig overrides the retry settings.
func WithRetryConfig(cfg RetryConfig) ExecutorOption {
	return func(e *Executor) {
		if cfg.MaxAttempts >= 1 {
			e.retry.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.Backoff > 0 {
			e.retry.Backoff = cfg.Backoff
		}
		if cfg.Timeout > 0 {
			e.retry.Timeout = cfg.Timeout
		}
	}
}

// WithSleep overrides the inter-attempt sleep. Used by tests.
func WithSleep(sleep SleepFunc) ExecutorOption {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// NewExecutor creates an executor for the given API base URL and
// Private-Token credential.
func NewExecutor(baseURL, token string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{},
		retry:   DefaultRetryConfig(),
		sleep:   sleepContext,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Send issues the request, retrying transport timeouts, DNS failures and
// 5xx responses at a fixed interval up to MaxAttempts. Any other transport
// error propagates immediately; any response below 500 (including 4xx) is
// returned as-is for the caller to validate.
func (e *Executor) Send(ctx context.Context, req Request) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := e.attempt(ctx, req)
		if err != nil {
			// Caller cancellation is never retried, even when it surfaces
			// as a timeout-class error.
			if ctx.Err() != nil {
				return nil, err
			}
			if !isTransient(err) {
				return nil, err
			}
			if attempt >= e.retry.MaxAttempts {
				return nil, &TransientError{Attempts: attempt, Err: err}
			}
			if e.logger != nil {
				e.logger.Warn().
					Err(err).
					Str("method", req.Method).
					Str("path", req.Path).
					Int("attempt", attempt).
					Msg("Transient request failure, retrying")
			}
			if serr := e.sleep(ctx, e.retry.Backoff); serr != nil {
				return nil, serr
			}
			continue
		}

		if resp.StatusCode >= 500 {
			if attempt >= e.retry.MaxAttempts {
				return nil, &ServerError{StatusCode: resp.StatusCode, Attempts: attempt}
			}
			if e.logger != nil {
				e.logger.Warn().
					Str("method", req.Method).
					Str("path", req.Path).
					Int("status", resp.StatusCode).
					Int("attempt", attempt).
					Msg("Server error, retrying")
			}
			if serr := e.sleep(ctx, e.retry.Backoff); serr != nil {
				return nil, serr
			}
			continue
		}

		return resp, nil
	}
}

// attempt performs one HTTP round trip with the per-attempt timeout and
// reads the body to completion.
func (e *Executor) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.retry.Timeout)
	defer cancel()

	httpReq, err := req.build(attemptCtx, e.baseURL)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Private-Token", e.token)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// isTransient reports whether a transport error is expected to resolve
// itself on retry: DNS resolution failures and the timeout class. Everything
// else is terminal.
func isTransient(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Per-attempt timeouts surface as context.DeadlineExceeded.
	return errors.Is(err, context.DeadlineExceeded)
}

// sleepContext waits for the duration or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
