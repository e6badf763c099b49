package models

import (
	"time"
)

type Property struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Link        string    `json:"link"`
	ImageLink   *string   `json:"image_link"`
	PostbackURL *string   `json:"postback_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PropertyInput struct {
	Name        string
	Link        string
	ImageLink   string
	PostbackURL string
}
