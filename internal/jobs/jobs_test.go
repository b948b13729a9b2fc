package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shift-booking-backend/internal/dispatch"
	"shift-booking-backend/internal/logging"
	"shift-booking-backend/internal/model"
	"shift-booking-backend/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, testDB.AutoMigrate(&model.Request{}, &model.ShiftItem{}, &model.PushSubscription{}))
	return store.NewGormStore(testDB)
}

// mockQueue is a mock implementation of the Enqueuer interface.
type mockQueue struct {
	mu          sync.Mutex
	ids         []string
	EnqueueFunc func(requestID string) error
}

func (m *mockQueue) Enqueue(requestID string) error {
	m.mu.Lock()
	m.ids = append(m.ids, requestID)
	m.mu.Unlock()
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(requestID)
	}
	return nil
}

// countingStore counts request reads on top of a real store.
type countingStore struct {
	store.Store
	gets int
}

func (c *countingStore) GetRequest(ctx context.Context, requestID string) (*model.Request, error) {
	c.gets++
	return c.Store.GetRequest(ctx, requestID)
}

func inputs(n int) []ShiftInput {
	shifts := make([]ShiftInput, n)
	for i := range shifts {
		shifts[i] = ShiftInput{
			CompanyID: "acme-corp",
			UserID:    fmt.Sprintf("user%03d", i+1),
			StartTime: "2025-06-15T08:00:00",
			EndTime:   "2025-06-15T16:00:00",
		}
	}
	return shifts
}

func newTestService(t *testing.T, st store.Store, queue Enqueuer) *Service {
	svc, err := NewService(st, queue, 10, logging.Nop())
	require.NoError(t, err)
	return svc
}

func TestService_Submit(t *testing.T) {
	st := newTestStore(t)
	queue := &mockQueue{}
	svc := newTestService(t, st, queue)

	shifts := inputs(10)
	shifts[2].Action = "remove"

	id, err := svc.Submit(context.Background(), shifts)
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, []string{id}, queue.ids)

	req, err := st.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.Status)
	assert.Equal(t, 10, req.TotalShifts)

	items, err := st.ListItems(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, items, 10)
	assert.Equal(t, "add", items[0].Action, "action defaults to add")
	assert.Equal(t, "remove", items[2].Action)
	assert.Equal(t, "user010", items[9].UserID)
}

func TestService_Submit_Validation(t *testing.T) {
	testCases := []struct {
		name            string
		shifts          []ShiftInput
		expectedMessage string
	}{
		{name: "too few shifts", shifts: inputs(9), expectedMessage: "At least 10 shifts required"},
		{name: "no shifts", shifts: nil, expectedMessage: "At least 10 shifts required"},
		{
			name: "missing user",
			shifts: func() []ShiftInput {
				s := inputs(10)
				s[3].UserID = ""
				return s
			}(),
			expectedMessage: "shift 3: userId is a required field",
		},
		{
			name: "missing end time",
			shifts: func() []ShiftInput {
				s := inputs(12)
				s[11].EndTime = ""
				return s
			}(),
			expectedMessage: "shift 11: endTime is a required field",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := newTestStore(t)
			queue := &mockQueue{}
			svc := newTestService(t, st, queue)

			id, err := svc.Submit(context.Background(), tc.shifts)
			assert.Empty(t, id)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.expectedMessage, validationErr.Message)

			unfinished, err := st.UnfinishedRequests(context.Background())
			require.NoError(t, err)
			assert.Empty(t, unfinished, "nothing is persisted")
			assert.Empty(t, queue.ids)
		})
	}
}

func TestService_Submit_QueueFull(t *testing.T) {
	st := newTestStore(t)
	queue := &mockQueue{EnqueueFunc: func(string) error { return dispatch.ErrQueueFull }}
	svc := newTestService(t, st, queue)

	id, err := svc.Submit(context.Background(), inputs(10))
	require.NoError(t, err, "a full queue does not reject the request")

	unfinished, err := st.UnfinishedRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{id}, unfinished)
}

func TestReporter_Status_Errors(t *testing.T) {
	reporter := NewReporter(newTestStore(t), time.Minute, logging.Nop())

	_, err := reporter.Status(context.Background(), "not-a-uuid")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = reporter.Status(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReporter_Status(t *testing.T) {
	st := newTestStore(t)
	counting := &countingStore{Store: st}
	reporter := NewReporter(counting, time.Minute, logging.Nop())
	svc := newTestService(t, st, &mockQueue{})
	ctx := context.Background()

	id, err := svc.Submit(ctx, inputs(10))
	require.NoError(t, err)

	view, err := reporter.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, view.RequestID)
	assert.Equal(t, "pending", view.Status)
	assert.Equal(t, Summary{Total: 10}, view.Summary)
	assert.Nil(t, view.CompletedAt)
	require.Len(t, view.Items, 10)
	assert.Equal(t, "user001", view.Items[0].UserID)
	assert.Equal(t, "pending", view.Items[0].Status)

	items, err := st.PendingItems(ctx, id)
	require.NoError(t, err)
	for i, item := range items {
		result := store.ItemResult{Status: model.ItemSuccess, Attempts: 1}
		switch {
		case i < 2:
			result = store.ItemResult{Status: model.ItemSkipped, ErrorMessage: "Shift already exists"}
		case i == 9:
			result = store.ItemResult{Status: model.ItemFailed, Attempts: 6, ErrorMessage: "Max retries exceeded: HTTP 500"}
		}
		require.NoError(t, st.MarkItem(ctx, item.ID, result))
	}
	_, completed, err := st.RefreshAggregate(ctx, id)
	require.NoError(t, err)
	require.True(t, completed)

	// The uppercase form names the same request.
	view, err = reporter.Status(ctx, strings.ToUpper(id))
	require.NoError(t, err)
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, Summary{Total: 10, Processed: 10, Successful: 7, Skipped: 2, Failed: 1}, view.Summary)
	assert.NotNil(t, view.CompletedAt)
	require.NotNil(t, view.Items[9].ErrorMessage)
	assert.Equal(t, "Max retries exceeded: HTTP 500", *view.Items[9].ErrorMessage)
	assert.Equal(t, 6, view.Items[9].Attempts)

	readsBefore := counting.gets
	cached, err := reporter.Status(ctx, id)
	require.NoError(t, err)
	assert.Same(t, view, cached, "completed views are served from the cache")
	assert.Equal(t, readsBefore, counting.gets)
}

func TestValidationError(t *testing.T) {
	var err error = newValidationError("bad input")
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "bad input", err.Error())
}
