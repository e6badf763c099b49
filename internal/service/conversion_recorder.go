package service

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/idgen"
	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/repository"
	"go.uber.org/zap"
)

var (
	// ErrUnknownReference колбэк ссылается на несуществующую площадку или оффер
	ErrUnknownReference = errors.New("колбэк ссылается на неизвестную площадку или оффер")
	// ErrConversionFailed прочая ошибка хранилища, рекламодатель повторит запрос
	ErrConversionFailed = errors.New("не удалось записать конверсию")
)

// RecordResult итог обработки колбэка
type RecordResult struct {
	ConversionID string
	Duplicate    bool
}

// ConversionRecorder записывает колбэки не больше одного раза на кортеж
// (propertyId, offerId, userId, level)
type ConversionRecorder interface {
	Record(ctx context.Context, input models.CallbackInput) (*RecordResult, error)
}

// PostbackQueue принимает события о новых конверсиях
type PostbackQueue interface {
	Enqueue(ctx context.Context, event *models.PostbackEvent) error
}

type conversionRecorder struct {
	repo      repository.ConversionRepository
	minter    idgen.Minter
	postbacks PostbackQueue
	logger    *zap.Logger
	now       func() time.Time
}

// NewConversionRecorder postbacks может быть nil
func NewConversionRecorder(
	repo repository.ConversionRepository,
	minter idgen.Minter,
	postbacks PostbackQueue,
	logger *zap.Logger,
) ConversionRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &conversionRecorder{
		repo:      repo,
		minter:    minter,
		postbacks: postbacks,
		logger:    logger,
		now:       time.Now,
	}
}

// Record всегда сначала пытается вставить строку. Конфликт уникального
// индекса означает повтор колбэка и считается успехом.
func (r *conversionRecorder) Record(ctx context.Context, input models.CallbackInput) (*RecordResult, error) {
	conversion := &models.Conversion{
		ID:         r.minter.NewID(),
		PropertyID: input.PropertyID,
		OfferID:    input.OfferID,
		UserID:     input.UserID,
		Level:      input.Level,
		Status:     models.ConversionPending,
		CreatedAt:  r.now().UTC(),
	}

	outcome, err := r.repo.Insert(ctx, conversion)

	// В логи идёт только кортеж, без тела запроса
	fields := []zap.Field{
		zap.String("property_id", input.PropertyID),
		zap.String("offer_id", input.OfferID),
		zap.String("user_id", input.UserID),
		zap.Int("level", input.Level),
		zap.Stringer("outcome", outcome),
	}

	switch outcome {
	case models.OutcomeInserted:
		r.enqueuePostback(ctx, conversion)
		return &RecordResult{ConversionID: conversion.ID}, nil

	case models.OutcomeConflict:
		r.logger.Debug("Duplicate callback ignored", fields...)
		return &RecordResult{Duplicate: true}, nil

	case models.OutcomeForeignKeyViolation:
		r.logger.Error("Callback references unknown property or offer", append(fields, zap.Error(err))...)
		return nil, ErrUnknownReference

	default:
		if err == nil {
			err = errors.New("unexpected insert outcome")
		}
		r.logger.Error("Callback processing failed", append(fields, zap.Error(err))...)
		return nil, errors.Join(ErrConversionFailed, err)
	}
}

func (r *conversionRecorder) enqueuePostback(ctx context.Context, conversion *models.Conversion) {
	if r.postbacks == nil {
		return
	}

	event := &models.PostbackEvent{
		ConversionID: conversion.ID,
		PropertyID:   conversion.PropertyID,
		OfferID:      conversion.OfferID,
		UserID:       conversion.UserID,
		Level:        conversion.Level,
	}
	if err := r.postbacks.Enqueue(ctx, event); err != nil {
		r.logger.Debug("Postback not enqueued", zap.String("conversion_id", conversion.ID), zap.Error(err))
	}
}
