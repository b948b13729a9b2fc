package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"shift-booking-backend/internal/booking"
	"shift-booking-backend/internal/logging"
	"shift-booking-backend/internal/model"
	"shift-booking-backend/internal/store"
)

const alreadyExistsMessage = "Shift already exists"

// DuplicateChecker reports whether a shift is already booked remotely.
type DuplicateChecker interface {
	Exists(ctx context.Context, shift booking.Shift) (bool, error)
}

// RetryBooker books a shift with the retry policy applied.
type RetryBooker interface {
	BookWithRetry(ctx context.Context, shift booking.Shift) booking.Result
}

// Notifier is told about every request that reached completed.
type Notifier interface {
	Dispatch(requestID string)
}

// Dispatcher processes the pending items of a request concurrently. At most
// concurrency items are in flight across all requests, and items acquire a
// slot in the order they were stored.
type Dispatcher struct {
	store    store.Store
	checker  DuplicateChecker
	booker   RetryBooker
	sem      *semaphore.Weighted
	notifier Notifier
	logger   *logging.Logger
}

// NewDispatcher creates a Dispatcher. notifier may be nil.
func NewDispatcher(st store.Store, checker DuplicateChecker, booker RetryBooker, concurrency int, notifier Notifier, logger *logging.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		store:    st,
		checker:  checker,
		booker:   booker,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		notifier: notifier,
		logger:   logger,
	}
}

// ProcessRequest drives every pending item of the request to a terminal
// status. A failing item never stops the others. It returns once all started
// items have finished, or with the context error if ctx ended first.
func (d *Dispatcher) ProcessRequest(ctx context.Context, requestID string) error {
	if err := d.store.MarkProcessing(ctx, requestID); err != nil {
		return err
	}

	items, err := d.store.PendingItems(ctx, requestID)
	if err != nil {
		return err
	}

	log := d.logger.With("request_id", requestID)
	if len(items) == 0 {
		// Resumed after every item was already written; close the request out.
		d.refresh(ctx, log, requestID)
		return nil
	}
	log.Info("processing request", "pending", len(items))

	var wg sync.WaitGroup
	for _, item := range items {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(item model.ShiftItem) {
			defer wg.Done()
			defer d.sem.Release(1)
			d.processItem(ctx, log, item)
		}(item)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("request %s interrupted: %w", requestID, err)
	}
	return nil
}

func (d *Dispatcher) processItem(ctx context.Context, log *logging.Logger, item model.ShiftItem) {
	shift := shiftFromItem(item)
	log = log.With("item_id", item.ID, "user", item.UserID)
	log.Info("processing shift")

	exists, err := d.checker.Exists(ctx, shift)
	var result store.ItemResult
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		result = store.ItemResult{Status: model.ItemFailed, ErrorMessage: err.Error()}
	case exists:
		log.Info("shift already exists")
		result = store.ItemResult{Status: model.ItemSkipped, ErrorMessage: alreadyExistsMessage}
	default:
		res := d.booker.BookWithRetry(ctx, shift)
		switch {
		case res.Success:
			result = store.ItemResult{Status: model.ItemSuccess, Attempts: res.Attempts}
		case res.Exhausted:
			result = store.ItemResult{Status: model.ItemFailed, Attempts: res.Attempts, ErrorMessage: res.ErrorMessage()}
		default:
			// Interrupted before the policy ran out. The item stays pending
			// and is picked up again when the request is resumed.
			log.Warn("booking interrupted, leaving item pending", "attempts", res.Attempts, "error", res.LastError)
			return
		}
	}

	if err := d.store.MarkItem(ctx, item.ID, result); err != nil {
		if errors.Is(err, store.ErrItemNotPending) {
			log.Debug("item already processed")
		} else {
			log.Error("failed to record item result, leaving it pending", "error", err)
			return
		}
	}

	d.refresh(ctx, log, item.RequestID)
}

func (d *Dispatcher) refresh(ctx context.Context, log *logging.Logger, requestID string) {
	req, completed, err := d.store.RefreshAggregate(ctx, requestID)
	if err != nil {
		log.Error("failed to refresh request aggregate", "error", err)
		return
	}
	if !completed {
		return
	}

	log.Info("request completed",
		"total", req.TotalShifts,
		"successful", req.Successful,
		"skipped", req.Skipped(),
		"failed", req.Failed,
	)
	if d.notifier != nil {
		d.notifier.Dispatch(requestID)
	}
}

func shiftFromItem(item model.ShiftItem) booking.Shift {
	return booking.Shift{
		CompanyID: item.CompanyID,
		UserID:    item.UserID,
		StartTime: item.StartTime,
		EndTime:   item.EndTime,
		Action:    item.Action,
	}
}
