package jobs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"

	"shift-booking-backend/internal/dispatch"
	"shift-booking-backend/internal/logging"
	"shift-booking-backend/internal/model"
	"shift-booking-backend/internal/store"
)

const defaultAction = "add"

// ShiftInput is one shift as submitted by a client.
type ShiftInput struct {
	CompanyID string `json:"companyId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Action    string `json:"action"`
}

// Enqueuer hands a persisted request over for asynchronous processing.
type Enqueuer interface {
	Enqueue(requestID string) error
}

// Service accepts booking batches.
type Service struct {
	store        store.Store
	queue        Enqueuer
	validate     *validator.Validate
	translator   ut.Translator
	minBatchSize int
	logger       *logging.Logger
}

// NewService creates the intake service.
func NewService(st store.Store, queue Enqueuer, minBatchSize int, logger *logging.Logger) (*Service, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register validation translations: %w", err)
	}

	return &Service{
		store:        st,
		queue:        queue,
		validate:     validate,
		translator:   trans,
		minBatchSize: minBatchSize,
		logger:       logger,
	}, nil
}

// Submit validates and persists a batch, queues it and returns its id
// without waiting for any booking. Nothing is persisted when validation fails.
func (s *Service) Submit(ctx context.Context, shifts []ShiftInput) (string, error) {
	if len(shifts) < s.minBatchSize {
		return "", newValidationError(fmt.Sprintf("At least %d shifts required", s.minBatchSize))
	}

	items := make([]model.ShiftItem, len(shifts))
	for i, shift := range shifts {
		if err := s.validateShift(i, shift); err != nil {
			return "", err
		}

		action := shift.Action
		if action == "" {
			action = defaultAction
		}
		items[i] = model.ShiftItem{
			CompanyID: shift.CompanyID,
			UserID:    shift.UserID,
			StartTime: shift.StartTime,
			EndTime:   shift.EndTime,
			Action:    action,
		}
	}

	req := &model.Request{ID: uuid.NewString()}
	if err := s.store.CreateRequest(ctx, req, items); err != nil {
		return "", err
	}
	log := s.logger.With("request_id", req.ID)
	log.Info("request accepted", "shifts", len(items))

	if err := s.queue.Enqueue(req.ID); err != nil {
		if errors.Is(err, dispatch.ErrQueueFull) {
			log.Warn("dispatch queue full, request left for the recovery sweep")
		} else {
			log.Error("failed to queue request", "error", err)
		}
	}

	return req.ID, nil
}

func (s *Service) validateShift(index int, shift ShiftInput) error {
	err := s.validate.Struct(shift)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return newValidationError(fmt.Sprintf("shift %d: %v", index, err))
	}
	return newValidationError(fmt.Sprintf("shift %d: %s", index, validationErrors[0].Translate(s.translator)))
}
