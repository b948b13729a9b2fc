package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"shift-booking-backend/internal/logging"
)

// Processor runs one request to completion.
type Processor interface {
	ProcessRequest(ctx context.Context, requestID string) error
}

// UnfinishedLister returns the ids of requests that are not completed.
type UnfinishedLister interface {
	UnfinishedRequests(ctx context.Context) ([]string, error)
}

// Scheduler feeds queued requests to a fixed set of workers and periodically
// re-queues requests left unfinished by a crash or a full queue.
type Scheduler struct {
	queue     *Queue
	processor Processor
	lister    UnfinishedLister
	workers   int
	interval  time.Duration
	logger    *logging.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(queue *Queue, processor Processor, lister UnfinishedLister, workers int, interval time.Duration, logger *logging.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		queue:     queue,
		processor: processor,
		lister:    lister,
		workers:   workers,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps for unfinished requests, starts the workers and blocks until ctx
// is cancelled and every worker has returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("starting scheduler", "workers", s.workers, "recover_interval", s.interval.String())
	s.Recover(ctx)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("scheduler shut down")
			return
		case <-ticker.C:
			s.Recover(ctx)
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	s.logger.Debug("worker started", "worker", id)
	for {
		select {
		case requestID := <-s.queue.Jobs():
			s.process(ctx, requestID)
		case <-ctx.Done():
			s.logger.Debug("worker shutting down", "worker", id)
			return
		}
	}
}

func (s *Scheduler) process(ctx context.Context, requestID string) {
	defer s.queue.Done(requestID)
	if err := s.processor.ProcessRequest(ctx, requestID); err != nil {
		s.logger.Error("failed to process request", "request_id", requestID, "error", err)
	}
}

// Recover queues every unfinished request and returns how many were offered.
func (s *Scheduler) Recover(ctx context.Context) int {
	ids, err := s.lister.UnfinishedRequests(ctx)
	if err != nil {
		s.logger.Error("recovery sweep failed", "error", err)
		return 0
	}

	offered := 0
	for _, id := range ids {
		if err := s.queue.Enqueue(id); err != nil {
			if errors.Is(err, ErrQueueFull) {
				s.logger.Warn("queue full during recovery sweep", "remaining", len(ids)-offered)
				break
			}
			s.logger.Error("failed to queue request", "request_id", id, "error", err)
			continue
		}
		offered++
	}
	if offered > 0 {
		s.logger.Info("recovery sweep queued requests", "count", offered)
	}
	return offered
}

// Drain processes queued requests on the calling goroutine until the queue
// is empty.
func (s *Scheduler) Drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case requestID := <-s.queue.Jobs():
			s.process(ctx, requestID)
		default:
			return nil
		}
	}
}
