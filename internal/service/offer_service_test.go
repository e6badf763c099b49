package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/idgen"
	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/SergeiKhy/offer-tracker/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOfferService() (service.OfferService, *mocks.MockOfferRepository, *mocks.MockVisitRepository, *mocks.MockOfferCache) {
	offers := mocks.NewMockOfferRepository()
	visits := mocks.NewMockVisitRepository(offers)
	cache := mocks.NewMockOfferCache()
	return service.NewOfferService(offers, visits, cache, idgen.NewUUIDMinter(), nil), offers, visits, cache
}

func validOfferInput() *models.OfferInput {
	return &models.OfferInput{
		Title:        "  Install the app ",
		Link:         "https://advertiser.example/go",
		BannerImage:  "https://cdn.example/banner.png",
		SquareImage:  "https://cdn.example/square.png",
		RewardsValue: "1000 coins",
		TierWiseSteps: map[int][]models.TierStep{
			2: {{Title: "Reach level 10", Coins: 300}},
			1: {{Title: "Install", Coins: 50}, {Title: "Register", Coins: 100}},
		},
		MaxPerTaskTierWise: map[int]float64{1: 150, 2: 300},
		IncludedCountries:  []string{"us", " GB ", "us"},
	}
}

// TestOfferService_CreateOffer_Success тиры упорядочены, страны нормализованы
func TestOfferService_CreateOffer_Success(t *testing.T) {
	svc, offers, _, _ := setupOfferService()

	offer, err := svc.CreateOffer(context.Background(), "owner-1", validOfferInput())
	require.NoError(t, err)

	assert.NotEmpty(t, offer.ID)
	assert.Equal(t, "owner-1", offer.OwnerID)
	assert.Equal(t, "Install the app", offer.Title)
	require.Len(t, offer.Tiers, 2)
	assert.Equal(t, 1, offer.Tiers[0].Level)
	assert.Equal(t, 150.0, offer.Tiers[0].MaxPerTask)
	assert.Len(t, offer.Tiers[0].Steps, 2)
	assert.Equal(t, 2, offer.Tiers[1].Level)
	assert.Equal(t, []string{"US", "GB"}, offer.Targeting.Included)
	assert.Empty(t, offer.Targeting.Excluded)
	assert.True(t, offers.Has(offer.ID))
}

// TestOfferService_CreateOffer_Validation отказ на невалидных формах
func TestOfferService_CreateOffer_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *models.OfferInput)
		err    error
	}{
		{"пустой заголовок", func(in *models.OfferInput) { in.Title = "  " }, service.ErrMissingFields},
		{"нет ссылки", func(in *models.OfferInput) { in.Link = "" }, service.ErrMissingFields},
		{"относительная ссылка", func(in *models.OfferInput) { in.Link = "/go" }, service.ErrInvalidURL},
		{"ftp ссылка", func(in *models.OfferInput) { in.Link = "ftp://example.com" }, service.ErrInvalidURL},
		{"нет тиров", func(in *models.OfferInput) { in.TierWiseSteps = nil }, service.ErrInvalidTiers},
		{"пустой тир", func(in *models.OfferInput) { in.TierWiseSteps[3] = nil }, service.ErrInvalidTiers},
		{"шаг без монет", func(in *models.OfferInput) {
			in.TierWiseSteps[1] = []models.TierStep{{Title: "Install", Coins: 0}}
		}, service.ErrInvalidTiers},
		{"шаг без названия", func(in *models.OfferInput) {
			in.TierWiseSteps[1] = []models.TierStep{{Title: " ", Coins: 10}}
		}, service.ErrInvalidTiers},
		{"отрицательный максимум", func(in *models.OfferInput) { in.MaxPerTaskTierWise[1] = -1 }, service.ErrInvalidTiers},
		{"максимум без тира", func(in *models.OfferInput) { in.MaxPerTaskTierWise[7] = 10 }, service.ErrInvalidTiers},
		{"нет стран", func(in *models.OfferInput) { in.IncludedCountries = nil }, service.ErrInvalidTargeting},
		{"оба списка стран", func(in *models.OfferInput) { in.ExcludedCountries = []string{"RU"} }, service.ErrInvalidTargeting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := setupOfferService()
			input := validOfferInput()
			tt.mutate(input)

			offer, err := svc.CreateOffer(context.Background(), "owner-1", input)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, offer)
		})
	}
}

// TestOfferService_ExcludedCountries список исключений тоже допустим
func TestOfferService_ExcludedCountries(t *testing.T) {
	svc, _, _, _ := setupOfferService()
	input := validOfferInput()
	input.IncludedCountries = []string{" "}
	input.ExcludedCountries = []string{"ru"}

	offer, err := svc.CreateOffer(context.Background(), "owner-1", input)
	require.NoError(t, err)
	assert.Empty(t, offer.Targeting.Included)
	assert.Equal(t, []string{"RU"}, offer.Targeting.Excluded)
}

// TestOfferService_OwnerScope чужой оффер не виден, не меняется и не удаляется
func TestOfferService_OwnerScope(t *testing.T) {
	svc, _, _, _ := setupOfferService()
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, "owner-1", validOfferInput())
	require.NoError(t, err)

	_, err = svc.GetOffer(ctx, "owner-2", offer.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = svc.UpdateOffer(ctx, "owner-2", offer.ID, validOfferInput())
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteOffer(ctx, "owner-2", offer.ID), service.ErrNotFound)

	list, err := svc.ListOffers(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestOfferService_UpdateInvalidatesCache смена ссылки сбрасывает кэш редиректа
func TestOfferService_UpdateInvalidatesCache(t *testing.T) {
	svc, _, _, cache := setupOfferService()
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, "owner-1", validOfferInput())
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, offer, 0))

	input := validOfferInput()
	input.Link = "https://advertiser.example/new"
	updated, err := svc.UpdateOffer(ctx, "owner-1", offer.ID, input)
	require.NoError(t, err)

	assert.Equal(t, "https://advertiser.example/new", updated.Link)
	assert.False(t, cache.Has(offer.ID))

	require.NoError(t, cache.Set(ctx, updated, 0))
	require.NoError(t, svc.DeleteOffer(ctx, "owner-1", offer.ID))
	assert.False(t, cache.Has(offer.ID))
}

// TestOfferService_UpdateRejectsStaleCacheWrite роутер прочитал оффер до
// обновления и пишет его в кэш после: старая ссылка в кэш не попадает
func TestOfferService_UpdateRejectsStaleCacheWrite(t *testing.T) {
	svc, offers, visits, cache := setupOfferService()
	router := service.NewClickRouter(offers, cache, visits, idgen.NewUUIDMinter(), time.Minute, nil)
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, "owner-1", validOfferInput())
	require.NoError(t, err)

	// Снимок оффера, который роутер успел прочитать из БД
	stale, err := offers.GetByID(ctx, offer.ID)
	require.NoError(t, err)

	input := validOfferInput()
	input.Link = "https://advertiser.example/new"
	_, err = svc.UpdateOffer(ctx, "owner-1", offer.ID, input)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, stale, time.Minute))
	assert.False(t, cache.Has(offer.ID))

	_, destination, err := router.Resolve(ctx, offer.ID, "u9-p1")
	require.NoError(t, err)
	assert.Equal(t, "https://advertiser.example/new", destination)

	// Следующий клик берёт из кэша уже новую версию
	assert.True(t, cache.Has(offer.ID))
	_, destination, err = router.Resolve(ctx, offer.ID, "u9-p1")
	require.NoError(t, err)
	assert.Equal(t, "https://advertiser.example/new", destination)
}

// TestOfferService_DeleteRejectsStaleCacheWrite удалённый оффер не возвращается в кэш
func TestOfferService_DeleteRejectsStaleCacheWrite(t *testing.T) {
	svc, offers, _, cache := setupOfferService()
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, "owner-1", validOfferInput())
	require.NoError(t, err)
	stale, err := offers.GetByID(ctx, offer.ID)
	require.NoError(t, err)

	// Версия удаления берётся из часов, она должна быть позже created_at
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, svc.DeleteOffer(ctx, "owner-1", offer.ID))
	require.NoError(t, cache.Set(ctx, stale, time.Minute))

	assert.False(t, cache.Has(offer.ID))
}

// TestOfferService_PublicOffersHideOwner публичный каталог без владельца
func TestOfferService_PublicOffersHideOwner(t *testing.T) {
	svc, _, _, _ := setupOfferService()
	ctx := context.Background()

	created, err := svc.CreateOffer(ctx, "owner-1", validOfferInput())
	require.NoError(t, err)

	list, err := svc.ListPublicOffers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].OwnerID)

	one, err := svc.GetPublicOffer(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, one.OwnerID)
}

// TestOfferService_Stats статистика визитов оффера
func TestOfferService_Stats(t *testing.T) {
	svc, offers, visits, _ := setupOfferService()
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, "owner-1", validOfferInput())
	require.NoError(t, err)

	router := service.NewClickRouter(offers, nil, visits, idgen.NewUUIDMinter(), 0, nil)
	for _, ref := range []string{"u1-p", "u1-p", "u2-p", ""} {
		_, _, err := router.Resolve(ctx, offer.ID, ref)
		require.NoError(t, err)
	}

	stats, err := svc.GetStats(ctx, "owner-1", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalVisits)
	assert.Equal(t, int64(2), stats.UniqueVisits)

	daily, err := svc.GetDailyStats(ctx, "owner-1", offer.ID, 500)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(4), daily[0].Visits)

	_, err = svc.GetStats(ctx, "owner-2", offer.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
