package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/seolens/audit-relay/internal/telemetry"
)

// Response captures what a single attempt produced.
type Response struct {
	StatusCode int
	Body       []byte
}

// CallFunc performs one attempt against the upstream. The context carries the
// per-attempt timeout.
type CallFunc func(ctx context.Context) (*Response, error)

// ClassifyFunc maps an attempt outcome to a retry decision:
//   - nil: success, return the response immediately.
//   - *Error: terminal, abort remaining attempts.
//   - anything else: retryable, subject to the attempt ceiling.
type ClassifyFunc func(resp *Response, err error) error

// Config controls Caller behavior.
type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
}

// Caller runs an upstream call with bounded retries and exponential backoff.
// Attempts are strictly sequential; attempt N+1 never starts before attempt
// N's backoff has elapsed.
type Caller struct {
	cfg    Config
	logger *zap.Logger
}

// NewCaller constructs a Caller, applying defaults for unset config values.
func NewCaller(cfg Config, logger *zap.Logger) *Caller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 60 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{cfg: cfg, logger: logger}
}

// Do executes the call until it succeeds, a terminal failure is classified,
// or the attempt ceiling is reached. Exhaustion surfaces as a 503 carrying
// the last retryable error.
func (c *Caller) Do(ctx context.Context, call CallFunc, classify ClassifyFunc) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		resp, callErr := call(attemptCtx)
		cancel()

		classified := classify(resp, callErr)
		if classified == nil {
			telemetry.ObserveRelayAttempt("success")
			return resp, nil
		}

		var terminal *Error
		if errors.As(classified, &terminal) {
			telemetry.ObserveRelayAttempt("terminal")
			c.logger.Warn("upstream call failed terminally",
				zap.Int("attempt", attempt),
				zap.Int("status", terminal.Status),
				zap.Error(classified),
			)
			return nil, classified
		}
		if IsAuthFailure(classified) {
			telemetry.ObserveRelayAttempt("terminal")
			c.logger.Warn("upstream authentication failure", zap.Int("attempt", attempt), zap.Error(classified))
			return nil, WrapError(http.StatusInternalServerError, "authentication failed", classified)
		}

		telemetry.ObserveRelayAttempt("retry")
		lastErr = classified
		c.logger.Warn("upstream call failed, will retry",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Error(classified),
		)

		if attempt < c.cfg.MaxAttempts {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, WrapError(http.StatusServiceUnavailable, "canceled while waiting to retry", err)
			}
		}
	}
	return nil, WrapError(
		http.StatusServiceUnavailable,
		fmt.Sprintf("upstream unavailable after %d attempts", c.cfg.MaxAttempts),
		lastErr,
	)
}

// backoff waits 2^(attempt-1) times the base delay: 1s, 2s, 4s with the
// default base.
func (c *Caller) backoff(ctx context.Context, attempt int) error {
	delay := c.cfg.BackoffBase << (attempt - 1)
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
