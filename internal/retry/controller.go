package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/metrics"
)

// Default schedule: 3s, 8s, 13s, ...
const (
	DefaultBaseDelay = 3 * time.Second
	DefaultStep      = 5 * time.Second
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config sets the backoff schedule shared by every operation of a Controller.
type Config struct {
	BaseDelay time.Duration
	Step      time.Duration
}

// Controller executes operations with retries. Attempt budgets are given per
// call so one controller serves both the sites and the questions endpoints.
type Controller struct {
	cfg      Config
	logger   *zap.Logger
	sleep    Sleeper
	classify Classifier
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSleeper replaces the real timer, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithClassifier replaces ClassifyAPIError.
func WithClassifier(cl Classifier) Option {
	return func(c *Controller) {
		if cl != nil {
			c.classify = cl
		}
	}
}

// NewController builds a Controller. Zero durations fall back to the defaults.
func NewController(cfg Config, logger *zap.Logger, opts ...Option) *Controller {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
		classify: ClassifyAPIError,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do calls fn until it succeeds, fails fatally or the attempt budget runs out.
// It returns the value and true on success. Any other outcome yields the zero
// value and false; failures are logged, not returned.
func Do[T any](ctx context.Context, c *Controller, op string, attempts int, fn func(context.Context) (T, error)) (T, bool) {
	var zero T
	policy := NewLinearPolicy(attempts, c.cfg.BaseDelay, c.cfg.Step)
	log := c.logger.With(zap.String("op", op))

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			log.Warn("retry loop canceled", zap.Int("attempt", attempt+1), zap.Error(err))
			metrics.ObserveRetry(op, "canceled")
			return zero, false
		}

		value, err := fn(ctx)
		if err == nil {
			metrics.ObserveRetry(op, "success")
			return value, true
		}

		switch c.classify(err) {
		case Fatal:
			log.Error("request failed permanently", zap.Int("attempt", attempt+1), zap.Error(err))
			metrics.ObserveRetry(op, "fatal")
			return zero, false
		case Throttled:
			log.Warn("throttled", zap.Int("attempt", attempt+1), zap.Error(err))
			metrics.ObserveRetry(op, "throttled")
		default:
			log.Error("request failed", zap.Int("attempt", attempt+1), zap.Error(err))
			metrics.ObserveRetry(op, "error")
		}

		if !policy.ShouldRetry(attempt) {
			log.Error("retries exhausted", zap.Int("attempts", policy.MaxAttempts()))
			metrics.ObserveRetry(op, "exhausted")
			return zero, false
		}

		wait := policy.Backoff(attempt)
		log.Debug("backing off", zap.Duration("wait", wait), zap.Int("attempt", attempt+1))
		if err := c.sleep(ctx, wait); err != nil {
			metrics.ObserveRetry(op, "canceled")
			return zero, false
		}
	}
}

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
