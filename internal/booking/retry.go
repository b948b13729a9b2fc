package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shift-booking-backend/internal/logging"
)

// Booker performs a single booking attempt.
type Booker interface {
	AttemptBook(ctx context.Context, shift Shift) Outcome
}

// Result is the outcome of booking one shift with retries.
type Result struct {
	Success   bool
	Attempts  int
	Response  json.RawMessage
	LastError error
	// Exhausted is set when every attempt was used without a booking.
	Exhausted bool
}

// ErrorMessage is the text recorded on a failed item.
func (r Result) ErrorMessage() string {
	if r.Success {
		return ""
	}
	if r.Exhausted {
		if r.LastError == nil {
			return "Max retries exceeded"
		}
		return fmt.Sprintf("Max retries exceeded: %v", r.LastError)
	}
	if r.LastError == nil {
		return "booking aborted"
	}
	return r.LastError.Error()
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier books a shift with a fixed number of attempts and a fixed delay.
// Every failure is retried the same way, without backoff or jitter.
type Retrier struct {
	booker     Booker
	maxRetries int
	delay      time.Duration
	sleep      SleepFunc
	logger     *logging.Logger
}

// NewRetrier creates a Retrier. A nil sleep waits on a timer.
func NewRetrier(booker Booker, maxRetries int, delay time.Duration, sleep SleepFunc, logger *logging.Logger) *Retrier {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &Retrier{
		booker:     booker,
		maxRetries: maxRetries,
		delay:      delay,
		sleep:      sleep,
		logger:     logger,
	}
}

// BookWithRetry attempts the booking up to maxRetries times. There is no wait
// after the final attempt. A cancelled context stops early with the attempts
// made so far.
func (r *Retrier) BookWithRetry(ctx context.Context, shift Shift) Result {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempt - 1, LastError: err}
		}

		r.logger.Info(fmt.Sprintf("attempt %d/%d for user %s", attempt, r.maxRetries, shift.UserID))
		out := r.booker.AttemptBook(ctx, shift)
		if out.Kind == OutcomeBooked {
			r.logger.Info("successfully booked shift", "user", shift.UserID, "attempts", attempt)
			return Result{Success: true, Attempts: attempt, Response: out.Body}
		}

		lastErr = errors.New(out.Describe())
		if out.Kind == OutcomeRejected {
			r.logger.Warn(fmt.Sprintf("HTTP %d for user %s", out.StatusCode, shift.UserID))
		} else {
			r.logger.Warn("request error", "user", shift.UserID, "error", out.Err)
		}

		if attempt < r.maxRetries {
			if err := r.sleep(ctx, r.delay); err != nil {
				return Result{Attempts: attempt, LastError: fmt.Errorf("retry aborted after %s: %w", out.Describe(), err)}
			}
		}
	}

	r.logger.Error(fmt.Sprintf("failed to book shift for user %s after %d attempts", shift.UserID, r.maxRetries))
	return Result{Attempts: r.maxRetries, LastError: lastErr, Exhausted: true}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
