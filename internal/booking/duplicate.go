package booking

import (
	"context"
	"errors"
	"fmt"

	"shift-booking-backend/internal/logging"
)

// ErrDuplicateCheckUnavailable is returned by a fail-closed Checker when the
// existing shifts cannot be listed.
var ErrDuplicateCheckUnavailable = errors.New("duplicate check unavailable")

// Lister returns the shifts already booked remotely.
type Lister interface {
	ListExisting(ctx context.Context) ([]Shift, error)
}

// Checker decides whether a shift is already booked.
type Checker struct {
	lister     Lister
	failClosed bool
	logger     *logging.Logger
}

// NewChecker creates a duplicate checker. With failClosed false a list
// failure counts as an empty list.
func NewChecker(lister Lister, failClosed bool, logger *logging.Logger) *Checker {
	return &Checker{lister: lister, failClosed: failClosed, logger: logger}
}

// Exists fetches the current list and looks for candidate in it. The list is
// fetched on every call.
func (c *Checker) Exists(ctx context.Context, candidate Shift) (bool, error) {
	existing, err := c.lister.ListExisting(ctx)
	if err != nil {
		if c.failClosed {
			return false, fmt.Errorf("%w: %v", ErrDuplicateCheckUnavailable, err)
		}
		c.logger.Warn("error fetching existing shifts, assuming none", "user", candidate.UserID, "error", err)
		return false, nil
	}

	c.logger.Debug("existing shifts", "user", candidate.UserID, "count", len(existing))
	return ShiftExists(candidate, existing), nil
}
