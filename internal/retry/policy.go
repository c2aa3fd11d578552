// Package retry runs upstream calls under a bounded, linearly growing backoff
// schedule.
package retry

import (
	"time"

	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
)

// Class is the retry decision for a failed attempt.
type Class int

// Failure classes.
const (
	// Transient failures are retried and logged at Error.
	Transient Class = iota
	// Throttled failures are retried and logged at Warn.
	Throttled
	// Fatal failures stop the loop immediately.
	Fatal
)

// Classifier maps a failed attempt's error to a Class.
type Classifier func(err error) Class

// ClassifyAPIError is the default Classifier for stackexchange client errors.
func ClassifyAPIError(err error) Class {
	switch {
	case stackexchange.IsThrottle(err):
		return Throttled
	case stackexchange.IsTransient(err):
		return Transient
	default:
		return Fatal
	}
}

// LinearPolicy waits base + attempt*step between attempts, never more than
// base + (maxAttempts-1)*step.
type LinearPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	step        time.Duration
}

// NewLinearPolicy builds a policy for the given attempt budget. A budget below
// one is raised to one.
func NewLinearPolicy(maxAttempts int, baseDelay, step time.Duration) LinearPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return LinearPolicy{maxAttempts: maxAttempts, baseDelay: baseDelay, step: step}
}

// MaxAttempts returns the attempt budget.
func (p LinearPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether another attempt may follow the zero-based
// attempt that just failed.
func (p LinearPolicy) ShouldRetry(attempt int) bool {
	return attempt+1 < p.maxAttempts
}

// Backoff returns the wait after the zero-based attempt that just failed.
func (p LinearPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if limit := p.maxAttempts - 1; attempt > limit {
		attempt = limit
	}
	return p.baseDelay + time.Duration(attempt)*p.step
}
