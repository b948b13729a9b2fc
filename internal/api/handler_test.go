package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-booking-backend/config"
	"shift-booking-backend/internal/jobs"
	"shift-booking-backend/internal/logging"
	"shift-booking-backend/internal/model"
	"shift-booking-backend/internal/store"
)

const testRequestID = "3f1c2a9e-8d4b-4c6f-9a1e-2b7d5c8e0f13"

// mockSubmitter is a mock implementation of the Submitter interface.
type mockSubmitter struct {
	SubmitFunc func(ctx context.Context, shifts []jobs.ShiftInput) (string, error)
}

func (m *mockSubmitter) Submit(ctx context.Context, shifts []jobs.ShiftInput) (string, error) {
	return m.SubmitFunc(ctx, shifts)
}

// mockReporter is a mock implementation of the StatusReporter interface.
type mockReporter struct {
	StatusFunc func(ctx context.Context, rawID string) (*jobs.RequestView, error)
}

func (m *mockReporter) Status(ctx context.Context, rawID string) (*jobs.RequestView, error) {
	return m.StatusFunc(ctx, rawID)
}

// mockSubscriptions is a mock implementation of the SubscriptionStore interface.
type mockSubscriptions struct {
	SaveSubscriptionFunc   func(ctx context.Context, sub *model.PushSubscription, requestID string) error
	DeleteSubscriptionFunc func(ctx context.Context, endpoint string) error
}

func (m *mockSubscriptions) SaveSubscription(ctx context.Context, sub *model.PushSubscription, requestID string) error {
	return m.SaveSubscriptionFunc(ctx, sub, requestID)
}

func (m *mockSubscriptions) DeleteSubscription(ctx context.Context, endpoint string) error {
	return m.DeleteSubscriptionFunc(ctx, endpoint)
}

func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(h, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000})
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestBookShifts(t *testing.T) {
	var received []jobs.ShiftInput
	submitter := &mockSubmitter{
		SubmitFunc: func(ctx context.Context, shifts []jobs.ShiftInput) (string, error) {
			received = shifts
			if len(shifts) < 10 {
				return "", &jobs.ValidationError{Message: "At least 10 shifts required"}
			}
			return testRequestID, nil
		},
	}
	router := setupRouter(NewHandler(submitter, nil, nil, nil, logging.Nop()))

	t.Run("accepted", func(t *testing.T) {
		shifts := SampleShifts()
		body, _ := json.Marshal(map[string]any{"shifts": shifts})

		w := doRequest(router, http.MethodPost, "/api/book-shifts", string(body))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"requestId":"`+testRequestID+`","status":"accepted"}`, w.Body.String())
		assert.Equal(t, shifts, received)
	})

	t.Run("validation error", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/book-shifts", `{"shifts":[]}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"At least 10 shifts required"}`, w.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/book-shifts", `{"shifts":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
	})

	t.Run("missing shifts", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/book-shifts", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBookShifts_StoreFailure(t *testing.T) {
	submitter := &mockSubmitter{
		SubmitFunc: func(ctx context.Context, shifts []jobs.ShiftInput) (string, error) {
			return "", errors.New("db down")
		},
	}
	router := setupRouter(NewHandler(submitter, nil, nil, nil, logging.Nop()))

	body, _ := json.Marshal(map[string]any{"shifts": SampleShifts()})
	w := doRequest(router, http.MethodPost, "/api/book-shifts", string(body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to store request"}`, w.Body.String())
}

func TestTestBook(t *testing.T) {
	calls := 0
	submitter := &mockSubmitter{
		SubmitFunc: func(ctx context.Context, shifts []jobs.ShiftInput) (string, error) {
			calls++
			assert.Equal(t, SampleShifts(), shifts)
			return testRequestID, nil
		},
	}
	router := setupRouter(NewHandler(submitter, nil, nil, nil, logging.Nop()))

	w := doRequest(router, http.MethodPost, "/api/test-book", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Pass confirm=true to execute test booking"}`, w.Body.String())
	assert.Equal(t, 0, calls)

	w = doRequest(router, http.MethodPost, "/api/test-book?confirm=true", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, calls)
}

func TestGetRequestStatus(t *testing.T) {
	reporter := &mockReporter{
		StatusFunc: func(ctx context.Context, rawID string) (*jobs.RequestView, error) {
			switch rawID {
			case testRequestID:
				return &jobs.RequestView{
					RequestID: testRequestID,
					Status:    "processing",
					Summary:   jobs.Summary{Total: 10, Processed: 4, Successful: 3, Skipped: 1},
					Items:     []jobs.ItemView{},
				}, nil
			case "bad":
				return nil, &jobs.ValidationError{Message: "invalid request id"}
			case "boom":
				return nil, errors.New("db down")
			default:
				return nil, jobs.ErrNotFound
			}
		},
	}
	router := setupRouter(NewHandler(nil, reporter, nil, nil, logging.Nop()))

	testCases := []struct {
		name           string
		id             string
		expectedStatus int
		expectedBody   string
	}{
		{name: "found", id: testRequestID, expectedStatus: http.StatusOK},
		{name: "malformed id", id: "bad", expectedStatus: http.StatusBadRequest, expectedBody: `{"error":"invalid request id"}`},
		{name: "unknown id", id: "4b0c7d1e-0000-4000-8000-000000000000", expectedStatus: http.StatusNotFound, expectedBody: `{"error":"request not found"}`},
		{name: "store failure", id: "boom", expectedStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/api/requests/"+tc.id, "")

			assert.Equal(t, tc.expectedStatus, w.Code)
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, w.Body.String())
			}
		})
	}

	w := doRequest(router, http.MethodGet, "/api/requests/"+testRequestID, "")
	var view jobs.RequestView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "processing", view.Status)
	assert.Equal(t, 1, view.Summary.Skipped)
}

func TestPutRequestSubscription(t *testing.T) {
	var saved *model.PushSubscription
	subs := &mockSubscriptions{
		SaveSubscriptionFunc: func(ctx context.Context, sub *model.PushSubscription, requestID string) error {
			if requestID != testRequestID {
				return store.ErrNotFound
			}
			saved = sub
			return nil
		},
	}
	router := setupRouter(NewHandler(nil, nil, subs, nil, logging.Nop()))
	body := `{"endpoint":"https://push.example.com/a","p256dh":"key","auth":"secret"}`

	w := doRequest(router, http.MethodPut, "/api/requests/"+testRequestID+"/subscriptions", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, saved)
	assert.Equal(t, "https://push.example.com/a", saved.Endpoint)
	assert.Equal(t, "key", saved.P256DH)

	w = doRequest(router, http.MethodPut, "/api/requests/4b0c7d1e-0000-4000-8000-000000000000/subscriptions", body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPut, "/api/requests/not-a-uuid/subscriptions", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPut, "/api/requests/"+testRequestID+"/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestDeleteSubscription(t *testing.T) {
	var deleted string
	subs := &mockSubscriptions{
		DeleteSubscriptionFunc: func(ctx context.Context, endpoint string) error {
			deleted = endpoint
			return nil
		},
	}
	router := setupRouter(NewHandler(nil, nil, subs, nil, logging.Nop()))

	w := doRequest(router, http.MethodDelete, "/api/subscriptions", `{"endpoint":"https://push.example.com/a"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://push.example.com/a", deleted)

	w = doRequest(router, http.MethodDelete, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router := setupRouter(NewHandler(nil, nil, nil, nil, logging.Nop()))
	w := doRequest(router, http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	router = setupRouter(NewHandler(nil, nil, nil, &webpush.Options{VAPIDPublicKey: "pub"}, logging.Nop()))
	w = doRequest(router, http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"pub"}`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	router := setupRouter(NewHandler(nil, nil, nil, nil, logging.Nop()))
	w := doRequest(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
