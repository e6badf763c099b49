package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/idgen"
	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/repository"
	"go.uber.org/zap"
)

// Ошибки валидации офферов и площадок
var (
	ErrMissingFields    = errors.New("не заполнены обязательные поля")
	ErrInvalidURL       = errors.New("невалидный URL")
	ErrInvalidTiers     = errors.New("невалидные шаги тиров")
	ErrInvalidTargeting = errors.New("нужно заполнить ровно один список стран")
	ErrNotFound         = errors.New("не найдено или принадлежит другому владельцу")
	ErrInUse            = errors.New("есть связанные визиты или конверсии")
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
	publicPageSize   = 50
)

// OfferService CRUD офферов владельца и статистика визитов
type OfferService interface {
	CreateOffer(ctx context.Context, ownerID string, input *models.OfferInput) (*models.Offer, error)
	GetOffer(ctx context.Context, ownerID, id string) (*models.Offer, error)
	ListOffers(ctx context.Context, ownerID string) ([]models.Offer, error)
	UpdateOffer(ctx context.Context, ownerID, id string, input *models.OfferInput) (*models.Offer, error)
	DeleteOffer(ctx context.Context, ownerID, id string) error
	ListPublicOffers(ctx context.Context, page int) ([]models.Offer, error)
	GetPublicOffer(ctx context.Context, id string) (*models.Offer, error)
	GetStats(ctx context.Context, ownerID, id string) (*models.OfferStats, error)
	GetDailyStats(ctx context.Context, ownerID, id string, days int) ([]models.DailyVisitStats, error)
}

type offerService struct {
	offerRepo repository.OfferRepository
	visitRepo repository.VisitRepository
	cache     repository.OfferCache
	minter    idgen.Minter
	logger    *zap.Logger
}

// NewOfferService cache может быть nil
func NewOfferService(
	offerRepo repository.OfferRepository,
	visitRepo repository.VisitRepository,
	cache repository.OfferCache,
	minter idgen.Minter,
	logger *zap.Logger,
) OfferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &offerService{
		offerRepo: offerRepo,
		visitRepo: visitRepo,
		cache:     cache,
		minter:    minter,
		logger:    logger,
	}
}

func (s *offerService) CreateOffer(ctx context.Context, ownerID string, input *models.OfferInput) (*models.Offer, error) {
	offer, err := BuildOffer(input)
	if err != nil {
		return nil, err
	}

	offer.ID = s.minter.NewID()
	offer.OwnerID = ownerID
	offer.CreatedAt = time.Now().UTC()

	if err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, mapRepoError(err)
	}

	return offer, nil
}

func (s *offerService) GetOffer(ctx context.Context, ownerID, id string) (*models.Offer, error) {
	offer, err := s.offerRepo.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return offer, nil
}

func (s *offerService) ListOffers(ctx context.Context, ownerID string) ([]models.Offer, error) {
	return s.offerRepo.ListByOwner(ctx, ownerID)
}

func (s *offerService) UpdateOffer(ctx context.Context, ownerID, id string, input *models.OfferInput) (*models.Offer, error) {
	offer, err := BuildOffer(input)
	if err != nil {
		return nil, err
	}

	offer.ID = id
	offer.OwnerID = ownerID

	if err := s.offerRepo.Update(ctx, offer); err != nil {
		return nil, mapRepoError(err)
	}

	// Update вернул новый updated_at: запись прочитанной раньше версии
	// роутером кликов после этого будет отклонена кэшем
	s.invalidate(ctx, id, offer.UpdatedAt)
	return offer, nil
}

func (s *offerService) DeleteOffer(ctx context.Context, ownerID, id string) error {
	if err := s.offerRepo.Delete(ctx, id, ownerID); err != nil {
		return mapRepoError(err)
	}

	s.invalidate(ctx, id, time.Now().UTC())
	return nil
}

// ListPublicOffers публичный каталог, без owner_id
func (s *offerService) ListPublicOffers(ctx context.Context, page int) ([]models.Offer, error) {
	if page < 1 {
		page = 1
	}
	offers, err := s.offerRepo.ListAll(ctx, publicPageSize, (page-1)*publicPageSize)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		offers[i].OwnerID = ""
	}
	return offers, nil
}

func (s *offerService) GetPublicOffer(ctx context.Context, id string) (*models.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	offer.OwnerID = ""
	return offer, nil
}

func (s *offerService) GetStats(ctx context.Context, ownerID, id string) (*models.OfferStats, error) {
	if _, err := s.GetOffer(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.visitRepo.GetStats(ctx, id)
}

func (s *offerService) GetDailyStats(ctx context.Context, ownerID, id string, days int) ([]models.DailyVisitStats, error) {
	if _, err := s.GetOffer(ctx, ownerID, id); err != nil {
		return nil, err
	}
	if days < 1 || days > maxStatsDays {
		days = defaultStatsDays
	}
	return s.visitRepo.GetDailyStats(ctx, id, days)
}

func (s *offerService) invalidate(ctx context.Context, id string, version time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id, version); err != nil {
		s.logger.Warn("Failed to invalidate offer cache", zap.String("offer_id", id), zap.Error(err))
	}
}

// BuildOffer валидирует форму и собирает оффер с упорядоченными тирами
func BuildOffer(input *models.OfferInput) (*models.Offer, error) {
	offer := &models.Offer{
		Title:        strings.TrimSpace(input.Title),
		Link:         strings.TrimSpace(input.Link),
		BannerImage:  strings.TrimSpace(input.BannerImage),
		SquareImage:  strings.TrimSpace(input.SquareImage),
		RewardsValue: strings.TrimSpace(input.RewardsValue),
	}

	if offer.Title == "" || offer.Link == "" || offer.BannerImage == "" ||
		offer.SquareImage == "" || offer.RewardsValue == "" {
		return nil, ErrMissingFields
	}

	if err := validateURL(offer.Link); err != nil {
		return nil, err
	}

	tiers, err := BuildTiers(input.TierWiseSteps, input.MaxPerTaskTierWise)
	if err != nil {
		return nil, err
	}
	offer.Tiers = tiers

	targeting, err := BuildTargeting(input.IncludedCountries, input.ExcludedCountries)
	if err != nil {
		return nil, err
	}
	offer.Targeting = targeting

	return offer, nil
}

// BuildTiers превращает объекты "тир -> шаги" и "тир -> максимум" в
// отсортированный по уровню список
func BuildTiers(steps map[int][]models.TierStep, maxPerTask map[int]float64) ([]models.Tier, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: at least one tier required", ErrInvalidTiers)
	}

	tiers := make([]models.Tier, 0, len(steps))
	for level, tierSteps := range steps {
		if len(tierSteps) == 0 {
			return nil, fmt.Errorf("%w: tier %d must have steps", ErrInvalidTiers, level)
		}

		cleaned := make([]models.TierStep, 0, len(tierSteps))
		for _, step := range tierSteps {
			title := strings.TrimSpace(step.Title)
			if title == "" || !(step.Coins > 0) || math.IsInf(step.Coins, 0) {
				return nil, fmt.Errorf("%w: invalid step in tier %d", ErrInvalidTiers, level)
			}
			cleaned = append(cleaned, models.TierStep{Title: title, Coins: step.Coins})
		}

		tiers = append(tiers, models.Tier{Level: level, Steps: cleaned})
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Level < tiers[j].Level })

	for level, value := range maxPerTask {
		if !(value > 0) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("%w: invalid maxPerTask for tier %d", ErrInvalidTiers, level)
		}
		idx := sort.Search(len(tiers), func(i int) bool { return tiers[i].Level >= level })
		if idx == len(tiers) || tiers[idx].Level != level {
			return nil, fmt.Errorf("%w: maxPerTask for tier %d without steps", ErrInvalidTiers, level)
		}
		tiers[idx].MaxPerTask = value
	}

	return tiers, nil
}

// BuildTargeting нормализует коды стран, заполнен должен быть ровно один список
func BuildTargeting(included, excluded []string) (models.CountryTargeting, error) {
	targeting := models.CountryTargeting{
		Included: normalizeCountries(included),
		Excluded: normalizeCountries(excluded),
	}

	if (len(targeting.Included) == 0) == (len(targeting.Excluded) == 0) {
		return models.CountryTargeting{}, ErrInvalidTargeting
	}

	return targeting, nil
}

func normalizeCountries(codes []string) []string {
	result := []string{}
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		result = append(result, code)
	}
	return result
}

// validateURL принимает только абсолютные http(s) адреса
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrOfferNotFound), errors.Is(err, repository.ErrPropertyNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrOfferInUse), errors.Is(err, repository.ErrPropertyInUse):
		return ErrInUse
	case errors.Is(err, repository.ErrInvalidTargeting):
		return ErrInvalidTargeting
	default:
		return err
	}
}
