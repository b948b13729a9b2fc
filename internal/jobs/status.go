package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"shift-booking-backend/internal/logging"
	"shift-booking-backend/internal/model"
	"shift-booking-backend/internal/store"
)

// Summary holds the request counters.
type Summary struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// ItemView is the client-facing form of one shift item.
type ItemView struct {
	CompanyID    string     `json:"companyId"`
	UserID       string     `json:"userId"`
	StartTime    string     `json:"startTime"`
	EndTime      string     `json:"endTime"`
	Action       string     `json:"action"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
}

// RequestView is the client-facing form of a request and its items.
type RequestView struct {
	RequestID   string     `json:"requestId"`
	Status      string     `json:"status"`
	Summary     Summary    `json:"summary"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Items       []ItemView `json:"items"`
}

// Reporter answers status queries. Views of completed requests never change
// and are cached; all other views are read fresh.
type Reporter struct {
	store  store.Store
	cache  *cache.Cache
	logger *logging.Logger
}

// NewReporter creates a Reporter caching completed views for ttl.
func NewReporter(st store.Store, ttl time.Duration, logger *logging.Logger) *Reporter {
	return &Reporter{
		store:  st,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Status returns the view of the request identified by rawID.
func (r *Reporter) Status(ctx context.Context, rawID string) (*RequestView, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, newValidationError("invalid request id")
	}
	key := id.String()

	if cached, found := r.cache.Get(key); found {
		return cached.(*RequestView), nil
	}

	req, err := r.store.GetRequest(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items, err := r.store.ListItems(ctx, key)
	if err != nil {
		return nil, err
	}

	view := newRequestView(req, items)
	if req.Status == model.RequestCompleted {
		r.cache.Set(key, view, cache.DefaultExpiration)
		r.logger.Debug("cached completed request view", "request_id", key)
	}
	return view, nil
}

func newRequestView(req *model.Request, items []model.ShiftItem) *RequestView {
	view := &RequestView{
		RequestID: req.ID,
		Status:    string(req.Status),
		Summary: Summary{
			Total:      req.TotalShifts,
			Processed:  req.Processed,
			Successful: req.Successful,
			Skipped:    req.Skipped(),
			Failed:     req.Failed,
		},
		CreatedAt:   req.CreatedAt,
		CompletedAt: req.CompletedAt,
		Items:       make([]ItemView, len(items)),
	}
	for i, item := range items {
		view.Items[i] = ItemView{
			CompanyID:    item.CompanyID,
			UserID:       item.UserID,
			StartTime:    item.StartTime,
			EndTime:      item.EndTime,
			Action:       item.Action,
			Status:       string(item.Status),
			Attempts:     item.Attempts,
			ErrorMessage: item.ErrorMessage,
			ProcessedAt:  item.ProcessedAt,
		}
	}
	return view
}
