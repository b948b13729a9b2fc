package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shift-booking-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	CreateRequest(ctx context.Context, req *model.Request, items []model.ShiftItem) error
	MarkProcessing(ctx context.Context, requestID string) error
	PendingItems(ctx context.Context, requestID string) ([]model.ShiftItem, error)
	MarkItem(ctx context.Context, itemID int64, result ItemResult) error
	RefreshAggregate(ctx context.Context, requestID string) (*model.Request, bool, error)
	GetRequest(ctx context.Context, requestID string) (*model.Request, error)
	ListItems(ctx context.Context, requestID string) ([]model.ShiftItem, error)
	UnfinishedRequests(ctx context.Context) ([]string, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription, requestID string) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForRequest(ctx context.Context, requestID string) ([]model.PushSubscription, error)

	Close() error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateRequest inserts the request and all of its items in one transaction.
func (s *gormStore) CreateRequest(ctx context.Context, req *model.Request, items []model.ShiftItem) error {
	req.Status = model.RequestPending
	req.TotalShifts = len(items)
	req.Processed, req.Successful, req.Failed = 0, 0, 0
	req.CompletedAt = nil

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(req).Error; err != nil {
			return fmt.Errorf("failed to create request %s: %w", req.ID, err)
		}
		if len(items) == 0 {
			return nil
		}

		for i := range items {
			items[i].ID = 0
			items[i].RequestID = req.ID
			items[i].Status = model.ItemPending
			items[i].Attempts = 0
			items[i].ErrorMessage = nil
			items[i].ProcessedAt = nil
		}
		if err := tx.CreateInBatches(&items, 100).Error; err != nil {
			return fmt.Errorf("failed to create items for request %s: %w", req.ID, err)
		}
		return nil
	})
}

// MarkProcessing moves a pending request to processing. Other states are left alone.
func (s *gormStore) MarkProcessing(ctx context.Context, requestID string) error {
	err := s.db.WithContext(ctx).
		Model(&model.Request{}).
		Where("id = ? AND status = ?", requestID, model.RequestPending).
		Update("status", model.RequestProcessing).Error
	if err != nil {
		return fmt.Errorf("failed to mark request %s processing: %w", requestID, err)
	}
	return nil
}

// PendingItems returns the request's unprocessed items in insertion order.
func (s *gormStore) PendingItems(ctx context.Context, requestID string) ([]model.ShiftItem, error) {
	var items []model.ShiftItem
	err := s.db.WithContext(ctx).
		Where("request_id = ? AND status = ?", requestID, model.ItemPending).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending items for request %s: %w", requestID, err)
	}
	return items, nil
}

// MarkItem writes an item's terminal status. The update only matches a pending
// row, so an item transitions exactly once.
func (s *gormStore) MarkItem(ctx context.Context, itemID int64, result ItemResult) error {
	if !result.Status.IsTerminal() {
		return fmt.Errorf("item %d: %q is not a terminal status", itemID, result.Status)
	}

	var errorMessage any
	if result.ErrorMessage != "" {
		errorMessage = result.ErrorMessage
	}

	res := s.db.WithContext(ctx).
		Model(&model.ShiftItem{}).
		Where("id = ? AND status = ?", itemID, model.ItemPending).
		Updates(map[string]any{
			"status":        result.Status,
			"attempts":      result.Attempts,
			"error_message": errorMessage,
			"processed_at":  s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update item %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrItemNotPending)
	}
	return nil
}

// RefreshAggregate recomputes the request counters from a single grouped count
// over its items. The write is guarded so a refresh based on an older read can
// never move counters backwards or reopen a completed request. The returned
// bool is true only for the call that completed the request.
func (s *gormStore) RefreshAggregate(ctx context.Context, requestID string) (*model.Request, bool, error) {
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if req.Status == model.RequestCompleted {
		return req, false, nil
	}

	var counts []statusCount
	if err := s.db.WithContext(ctx).
		Model(&model.ShiftItem{}).
		Select("status, COUNT(*) AS count").
		Where("request_id = ?", requestID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, false, fmt.Errorf("failed to count items for request %s: %w", requestID, err)
	}

	var processed, successful, failed int
	for _, c := range counts {
		switch c.Status {
		case model.ItemSuccess:
			successful += c.Count
		case model.ItemFailed:
			failed += c.Count
		}
		if c.Status.IsTerminal() {
			processed += c.Count
		}
	}

	updates := map[string]any{
		"processed":  processed,
		"successful": successful,
		"failed":     failed,
		"status":     model.RequestProcessing,
	}
	completing := processed >= req.TotalShifts
	if completing {
		updates["status"] = model.RequestCompleted
		updates["completed_at"] = s.now()
	}

	res := s.db.WithContext(ctx).
		Model(&model.Request{}).
		Where("id = ? AND processed <= ? AND status <> ?", requestID, processed, model.RequestCompleted).
		Updates(updates)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to update aggregate for request %s: %w", requestID, res.Error)
	}

	fresh, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	return fresh, completing && res.RowsAffected == 1, nil
}

// GetRequest loads a single request without its items.
func (s *gormStore) GetRequest(ctx context.Context, requestID string) (*model.Request, error) {
	var req model.Request
	if err := s.db.WithContext(ctx).First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load request %s: %w", requestID, err)
	}
	return &req, nil
}

// ListItems returns every item of a request in insertion order.
func (s *gormStore) ListItems(ctx context.Context, requestID string) ([]model.ShiftItem, error) {
	var items []model.ShiftItem
	if err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load items for request %s: %w", requestID, err)
	}
	return items, nil
}

// UnfinishedRequests returns the ids of every request not yet completed, oldest first.
func (s *gormStore) UnfinishedRequests(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&model.Request{}).
		Where("status <> ?", model.RequestCompleted).
		Order("created_at").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list unfinished requests: %w", err)
	}
	return ids, nil
}

// SaveSubscription upserts a push subscription and attaches it to a request.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription, requestID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.Request
		if err := tx.First(&req, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		return tx.Model(sub).Association("Requests").Append(&req)
	})
}

// DeleteSubscription removes a subscription and its request mappings.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Requests").Clear(); err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
}

// SubscriptionsForRequest returns every subscription attached to the request.
func (s *gormStore) SubscriptionsForRequest(ctx context.Context, requestID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_request_mapping srm ON srm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("srm.request_id = ?", requestID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions for request %s: %w", requestID, err)
	}
	return subscriptions, nil
}

// Close releases the underlying connection pool.
func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
