package dispatch

import (
	"errors"
	"sync"
)

// ErrQueueFull is returned when the hand-off buffer has no room. The request
// stays pending in the store and is found by the next recovery sweep.
var ErrQueueFull = errors.New("dispatch queue is full")

// Queue hands request ids to the scheduler workers without blocking the
// caller. An id that is already queued or running is not queued twice.
type Queue struct {
	mu     sync.Mutex
	ids    chan string
	active map[string]struct{}
}

// NewQueue creates a queue holding at most size waiting ids.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		ids:    make(chan string, size),
		active: make(map[string]struct{}),
	}
}

// Enqueue adds requestID unless it is already known to the queue.
func (q *Queue) Enqueue(requestID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.active[requestID]; ok {
		return nil
	}

	select {
	case q.ids <- requestID:
		q.active[requestID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Jobs returns the channel workers read from.
func (q *Queue) Jobs() <-chan string {
	return q.ids
}

// Done forgets requestID once its processing has finished.
func (q *Queue) Done(requestID string) {
	q.mu.Lock()
	delete(q.active, requestID)
	q.mu.Unlock()
}

// Len returns the number of ids waiting to be picked up.
func (q *Queue) Len() int {
	return len(q.ids)
}
