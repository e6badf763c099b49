package service

import (
	"context"

	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/repository"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// DashboardService выборки для кабинета владельца
type DashboardService interface {
	ListConversions(ctx context.Context, filter models.ConversionFilter) (*models.ConversionPage, error)
	ConversionStats(ctx context.Context, ownerID string) (*models.ConversionStats, error)
	ListVisits(ctx context.Context, ownerID string, limit, offset int) ([]models.VisitWithOffer, error)
}

type dashboardService struct {
	conversionRepo repository.ConversionRepository
	visitRepo      repository.VisitRepository
}

func NewDashboardService(conversionRepo repository.ConversionRepository, visitRepo repository.VisitRepository) DashboardService {
	return &dashboardService{
		conversionRepo: conversionRepo,
		visitRepo:      visitRepo,
	}
}

// ListConversions страница колбэков; hasMore считается по лишней строке
func (s *dashboardService) ListConversions(ctx context.Context, filter models.ConversionFilter) (*models.ConversionPage, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	limit := filter.Limit
	filter.Limit = limit + 1

	rows, total, err := s.conversionRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &models.ConversionPage{Data: rows, Total: total}
	if len(rows) > limit {
		page.HasMore = true
		page.Data = rows[:limit]
	}
	return page, nil
}

func (s *dashboardService) ConversionStats(ctx context.Context, ownerID string) (*models.ConversionStats, error) {
	return s.conversionRepo.GetStats(ctx, ownerID)
}

func (s *dashboardService) ListVisits(ctx context.Context, ownerID string, limit, offset int) ([]models.VisitWithOffer, error) {
	limit, offset = clampPage(limit, offset)
	return s.visitRepo.ListByOwner(ctx, ownerID, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
