package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// WaitCondition is satisfied once Target is present on the page.
type WaitCondition struct {
	Target   schemas.UITarget
	Interval time.Duration
	// Timeout zero means wait until the caller cancels.
	Timeout time.Duration
}

// Pacer spaces out condition checks.
type Pacer interface {
	Wait(ctx context.Context) error
}

// PacerFactory builds a Pacer for one wait.
type PacerFactory func(interval time.Duration) Pacer

// RatePacer returns a token bucket that lets the first check through at once
// and one more per interval.
func RatePacer(interval time.Duration) Pacer {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Waiter polls a browser context until a condition holds.
type Waiter struct {
	newPacer PacerFactory
	logger   *zap.Logger
}

// NewWaiter returns a Waiter that builds one Pacer per wait. A nil factory
// means RatePacer.
func NewWaiter(newPacer PacerFactory, logger *zap.Logger) *Waiter {
	if newPacer == nil {
		newPacer = RatePacer
	}
	return &Waiter{newPacer: newPacer, logger: logger}
}

// Until blocks until cond holds, the bound in cond runs out, or ctx is done.
// Query errors are treated as "not yet": the page may be mid-navigation.
// It returns the number of checks made.
func (w *Waiter) Until(ctx context.Context, bc schemas.BrowserContext, cond WaitCondition) (int, error) {
	waitCtx := ctx
	if cond.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cond.Timeout)
		defer cancel()
	}
	pacer := w.newPacer(cond.Interval)

	attempts := 0
	for {
		if err := pacer.Wait(waitCtx); err != nil {
			return attempts, w.waitError(ctx, cond, err)
		}
		attempts++

		found, err := bc.Query(waitCtx, cond.Target)
		if err != nil {
			if waitCtx.Err() != nil {
				return attempts, w.waitError(ctx, cond, err)
			}
			w.logger.Debug("Condition check failed; retrying.", zap.Stringer("target", cond.Target), zap.Error(err))
			continue
		}
		if found {
			return attempts, nil
		}
	}
}

// waitError tells a caller cancellation apart from the wait's own bound.
// rate.Limiter also fails early when the next token would land after the
// deadline, so a non-context error with a bound is a timeout too.
func (w *Waiter) waitError(parent context.Context, cond WaitCondition, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if cond.Timeout > 0 {
		return fmt.Errorf("%w: %s after %s", ErrConditionTimeout, cond.Target, cond.Timeout)
	}
	return err
}
