package store

import (
	"errors"

	"shift-booking-backend/internal/model"
)

var (
	// ErrNotFound is returned when a request id is unknown.
	ErrNotFound = errors.New("request not found")
	// ErrItemNotPending is returned when an item already reached a terminal status.
	ErrItemNotPending = errors.New("shift item is not pending")
)

// ItemResult is the terminal outcome written to a single shift item.
type ItemResult struct {
	Status       model.ItemStatus
	Attempts     int
	ErrorMessage string
}

// statusCount is one row of the per-request aggregating query.
type statusCount struct {
	Status model.ItemStatus
	Count  int
}
