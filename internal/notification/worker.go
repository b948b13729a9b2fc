package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"shift-booking-backend/internal/logging"
	"shift-booking-backend/internal/model"
	"shift-booking-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body pushed to subscribers when a request completes.
type Payload struct {
	Title      string `json:"title"`
	RequestID  string `json:"requestId"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// WorkerPool manages a pool of workers for sending completion notifications.
type WorkerPool struct {
	size    int
	jobs    chan string
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	logger  *logging.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st store.Store, webpushOptions *webpush.Options, logger *logging.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*16),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("notification worker started", "worker", id)
	for {
		select {
		case requestID := <-wp.jobs:
			wp.sendNotificationsForRequest(ctx, requestID)
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a completed request for notification. It never blocks;
// when the buffer is full the notification is dropped.
func (wp *WorkerPool) Dispatch(requestID string) {
	select {
	case wp.jobs <- requestID:
	default:
		wp.logger.Warn("notification queue full, dropping notification", "request_id", requestID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForRequest(ctx context.Context, requestID string) {
	log := wp.logger.With("request_id", requestID)

	subscriptions, err := wp.store.SubscriptionsForRequest(ctx, requestID)
	if err != nil {
		log.Error("error fetching subscriptions", "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	req, err := wp.store.GetRequest(ctx, requestID)
	if err != nil {
		log.Error("error fetching request", "error", err)
		return
	}

	payload, err := json.Marshal(newPayload(req))
	if err != nil {
		log.Error("error encoding notification", "error", err)
		return
	}

	log.Info("sending notifications", "count", len(subscriptions))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, log, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, log *logging.Logger, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Error("error sending notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}

func newPayload(req *model.Request) Payload {
	return Payload{
		Title:      "Shift booking completed",
		RequestID:  req.ID,
		Total:      req.TotalShifts,
		Successful: req.Successful,
		Skipped:    req.Skipped(),
		Failed:     req.Failed,
	}
}
