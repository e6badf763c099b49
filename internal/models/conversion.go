package models

import (
	"time"
)

const (
	ConversionPending   = 0
	ConversionCompleted = 1
)

type Conversion struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	OfferID    string    `json:"offer_id"`
	UserID     string    `json:"user_id"`
	Level      int       `json:"level"`
	Status     int       `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// CallbackInput уже провалидированный колбэк рекламодателя
type CallbackInput struct {
	PropertyID string
	OfferID    string
	UserID     string
	Level      int
}

// InsertOutcome результат попытки вставки конверсии
type InsertOutcome int

const (
	OutcomeFailed InsertOutcome = iota
	OutcomeInserted
	// OutcomeConflict строка для кортежа (property, offer, user, level) уже есть
	OutcomeConflict
	// OutcomeForeignKeyViolation property или offer не существует
	OutcomeForeignKeyViolation
)

func (o InsertOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeConflict:
		return "conflict"
	case OutcomeForeignKeyViolation:
		return "foreign_key_violation"
	default:
		return "failed"
	}
}

type ConversionWithRelations struct {
	Conversion
	OfferName    *string `json:"offer_name"`
	PropertyName *string `json:"property_name"`
}

type ConversionFilter struct {
	OwnerID        string
	Limit          int
	Offset         int
	PropertyFilter string
	OfferFilter    string
}

type ConversionPage struct {
	Data    []ConversionWithRelations `json:"data"`
	HasMore bool                      `json:"has_more"`
	Total   int64                     `json:"total"`
}

type ConversionStats struct {
	Total        int64 `json:"total"`
	Completed    int64 `json:"completed"`
	Pending      int64 `json:"pending"`
	UniqueOffers int64 `json:"unique_offers"`
}

// PostbackEvent уходит в диспетчер постбэков после новой конверсии
type PostbackEvent struct {
	ConversionID string
	PropertyID   string
	OfferID      string
	UserID       string
	Level        int
}
