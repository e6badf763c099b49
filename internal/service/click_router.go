package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/idgen"
	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/repository"
	"go.uber.org/zap"
)

// ErrOfferNotFound оффер для клика не найден, визит не записывается
var ErrOfferNotFound = errors.New("оффер не найден")

const defaultOfferCacheTTL = 10 * time.Minute

// ClickRouter превращает (offerID, referrer) в записанный визит и адрес редиректа
type ClickRouter interface {
	Resolve(ctx context.Context, offerID, referrer string) (*models.Visit, string, error)
}

type clickRouter struct {
	offerRepo repository.OfferRepository
	cache     repository.OfferCache
	visitRepo repository.VisitRepository
	minter    idgen.Minter
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewClickRouter создаёт роутер кликов. cache может быть nil.
func NewClickRouter(
	offerRepo repository.OfferRepository,
	cache repository.OfferCache,
	visitRepo repository.VisitRepository,
	minter idgen.Minter,
	cacheTTL time.Duration,
	logger *zap.Logger,
) ClickRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultOfferCacheTTL
	}
	return &clickRouter{
		offerRepo: offerRepo,
		cache:     cache,
		visitRepo: visitRepo,
		minter:    minter,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// ParseReferrer делит токен "uid-pid" по первому дефису.
// Пустая или отсутствующая половина становится "unknown".
func ParseReferrer(token string) (uid, pid string) {
	uid, pid, _ = strings.Cut(token, "-")
	if uid == "" {
		uid = models.UnknownReferrer
	}
	if pid == "" {
		pid = models.UnknownReferrer
	}
	return uid, pid
}

// Resolve записывает визит и возвращает адрес назначения оффера.
// Визит пишется до ответа: без записи редиректа не будет.
func (r *clickRouter) Resolve(ctx context.Context, offerID, referrer string) (*models.Visit, string, error) {
	uid, pid := ParseReferrer(referrer)

	offer, err := r.getOffer(ctx, offerID)
	if err != nil {
		return nil, "", err
	}

	visit := &models.Visit{
		ClickID:   r.minter.NewID(),
		OfferID:   offer.ID,
		UID:       uid,
		PID:       pid,
		CreatedAt: r.now().UTC(),
	}

	if err := r.visitRepo.Insert(ctx, visit); err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return nil, "", ErrOfferNotFound
		}
		return nil, "", err
	}

	return visit, offer.Link, nil
}

// getOffer сначала смотрит в кэш, затем в БД
func (r *clickRouter) getOffer(ctx context.Context, offerID string) (*models.Offer, error) {
	if offerID == "" {
		return nil, ErrOfferNotFound
	}

	if r.cache != nil {
		offer, err := r.cache.Get(ctx, offerID)
		if err == nil {
			return offer, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			// Недоступный кэш не должен ломать редирект
			r.logger.Warn("Offer cache read failed", zap.String("offer_id", offerID), zap.Error(err))
		}
	}

	offer, err := r.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, offer, r.cacheTTL); err != nil {
			r.logger.Warn("Offer cache write failed", zap.String("offer_id", offerID), zap.Error(err))
		}
	}

	return offer, nil
}
