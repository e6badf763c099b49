package models

import (
	"time"
)

// TierStep одна подзадача внутри тира
type TierStep struct {
	Title string  `json:"title"`
	Coins float64 `json:"coins"`
}

// Tier группа шагов с общим номером уровня. В offers.tiers хранится
// упорядоченный по Level список.
type Tier struct {
	Level      int        `json:"level"`
	Steps      []TierStep `json:"steps"`
	MaxPerTask float64    `json:"max_per_task,omitempty"`
}

// CountryTargeting заполнен ровно один из списков
type CountryTargeting struct {
	Included []string `json:"included_countries"`
	Excluded []string `json:"excluded_countries"`
}

type Offer struct {
	ID           string           `json:"id"`
	OwnerID      string           `json:"owner_id,omitempty"`
	Title        string           `json:"title"`
	Link         string           `json:"link"`
	BannerImage  string           `json:"banner_image"`
	SquareImage  string           `json:"square_image"`
	RewardsValue string           `json:"rewards_value"`
	Tiers        []Tier           `json:"tiers"`
	Targeting    CountryTargeting `json:"targeting"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// OfferInput сырые данные формы оффера. Тиры приходят объектами с
// числовыми ключами, сервис превращает их в []Tier.
type OfferInput struct {
	Title              string
	Link               string
	BannerImage        string
	SquareImage        string
	RewardsValue       string
	TierWiseSteps      map[int][]TierStep
	MaxPerTaskTierWise map[int]float64
	IncludedCountries  []string
	ExcludedCountries  []string
}

type OfferStats struct {
	OfferID      string `json:"offer_id"`
	TotalVisits  int64  `json:"total_visits"`
	UniqueVisits int64  `json:"unique_visits"`
}

type DailyVisitStats struct {
	Date   string `json:"date"`
	Visits int64  `json:"visits"`
}
