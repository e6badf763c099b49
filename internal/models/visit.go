package models

import (
	"time"
)

// UnknownReferrer подставляется вместо отсутствующей половины токена
const UnknownReferrer = "unknown"

type Visit struct {
	ClickID   string    `json:"click_id"`
	OfferID   string    `json:"offer_id"`
	UID       string    `json:"uid"`
	PID       string    `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

type VisitWithOffer struct {
	Visit
	OfferTitle string `json:"offer_title"`
}
