package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"shift-booking-backend/internal/jobs"
	"shift-booking-backend/internal/logging"
	"shift-booking-backend/internal/model"
)

// Submitter accepts a batch of shifts for asynchronous booking.
type Submitter interface {
	Submit(ctx context.Context, shifts []jobs.ShiftInput) (string, error)
}

// StatusReporter returns the current view of a request.
type StatusReporter interface {
	Status(ctx context.Context, rawID string) (*jobs.RequestView, error)
}

// SubscriptionStore persists browser push subscriptions.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub *model.PushSubscription, requestID string) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	intake        Submitter
	reporter      StatusReporter
	subscriptions SubscriptionStore
	webpush       *webpush.Options
	logger        *logging.Logger
}

// NewHandler creates a new API handler.
func NewHandler(intake Submitter, reporter StatusReporter, subscriptions SubscriptionStore, webpushOptions *webpush.Options, logger *logging.Logger) *Handler {
	return &Handler{
		intake:        intake,
		reporter:      reporter,
		subscriptions: subscriptions,
		webpush:       webpushOptions,
		logger:        logger,
	}
}
